package oneapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/zcw199604/one-api-hub/internal/core"
)

// Detailed error classes attached to AutoDetectResult for UI triage.
const (
	detailNotLoggedIn     = "not_logged_in"
	detailNetworkError    = "network_error"
	detailInvalidResponse = "invalid_response"
	detailTokenCreation   = "token_creation_failed"
	detailStatusFailure   = "status_unavailable"
)

// AutoDetectAccount recovers credentials from the user's logged-in browser
// session: it reads the numeric user id (and any existing access token) from
// /api/user/self, then concurrently mints an access token when the account
// has none and pulls the public status endpoint for the default top-up
// exchange rate. Every failure path folds into a Success=false result.
func (a *Adapter) AutoDetectAccount(ctx context.Context, siteURL string) core.AutoDetectResult {
	body, err := a.session.FetchJSON(ctx, joinURL(siteURL, "/api/user/self"))
	if err != nil {
		return detectFailure("reading current user failed", err)
	}

	var self userSelfResponse
	if err := json.Unmarshal(body, &self); err != nil {
		return core.AutoDetectResult{
			Success:       false,
			Error:         fmt.Sprintf("unexpected /api/user/self response: %v", err),
			DetailedError: detailInvalidResponse,
		}
	}
	if !self.Success || self.Data.ID == 0 {
		return core.AutoDetectResult{
			Success:       false,
			Error:         fmt.Sprintf("site did not return a logged-in user: %s", failureMessage(self.Message)),
			DetailedError: detailNotLoggedIn,
		}
	}

	data := &core.AutoDetectData{
		Username:    self.Data.Username,
		AccessToken: self.Data.AccessToken,
		UserID:      strconv.FormatInt(self.Data.ID, 10),
	}

	// With the user id known, token creation and the status fetch are
	// independent; run them side by side.
	var (
		wg        sync.WaitGroup
		tokenErr  error
		statusErr error
		rate      float64
	)

	if data.AccessToken == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := a.createAccessTokenViaSession(ctx, siteURL)
			if err != nil {
				tokenErr = err
				return
			}
			data.AccessToken = token
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		info, err := a.GetSiteStatus(ctx, siteURL)
		if err != nil {
			statusErr = err
			return
		}
		if info != nil {
			rate = info.ExchangeRate
		}
	}()

	wg.Wait()

	if tokenErr != nil {
		return core.AutoDetectResult{
			Success:       false,
			Error:         fmt.Sprintf("creating access token failed: %v", tokenErr),
			DetailedError: detailTokenCreation,
		}
	}
	if statusErr != nil {
		return core.AutoDetectResult{
			Success:       false,
			Error:         fmt.Sprintf("reading site status failed: %v", statusErr),
			DetailedError: detailStatusFailure,
		}
	}

	data.ExchangeRate = rate
	return core.AutoDetectResult{Success: true, Data: data}
}

// createAccessTokenViaSession mints the system access token through the
// cookie-authenticated session, the same first-party context the detection
// itself runs in.
func (a *Adapter) createAccessTokenViaSession(ctx context.Context, siteURL string) (string, error) {
	body, err := a.session.FetchJSON(ctx, joinURL(siteURL, "/api/user/token"))
	if err != nil {
		return "", err
	}
	var resp accessTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding /api/user/token response: %w", err)
	}
	if !resp.Success || resp.Data == "" {
		return "", fmt.Errorf("/api/user/token: %s", failureMessage(resp.Message))
	}
	return resp.Data, nil
}

func detectFailure(prefix string, err error) core.AutoDetectResult {
	detail := detailNetworkError
	var statusErr *core.HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			detail = detailNotLoggedIn
		} else {
			detail = detailInvalidResponse
		}
	}
	return core.AutoDetectResult{
		Success:       false,
		Error:         fmt.Sprintf("%s: %v", prefix, err),
		DetailedError: detail,
	}
}
