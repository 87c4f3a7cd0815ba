package oneapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zcw199604/one-api-hub/internal/core"
)

type accessTokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// GetOrCreateAccessToken asks the site to mint (or return) the account's
// system access token.
func (a *Adapter) GetOrCreateAccessToken(ctx context.Context, creds core.SiteCredentials) (string, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return "", err
	}

	var resp accessTokenResponse
	if err := a.doGet(ctx, creds, "/api/user/token", &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data == "" {
		return "", fmt.Errorf("oneapi: /api/user/token: %s", failureMessage(resp.Message))
	}
	return resp.Data, nil
}

type tokenListResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    tokenList `json:"data"`
}

type tokenList struct {
	Items []core.APIToken
}

func (l *tokenList) UnmarshalJSON(data []byte) error {
	return unmarshalItemsOrArray(data, &l.Items)
}

// GetAPITokens lists the account's API tokens.
func (a *Adapter) GetAPITokens(ctx context.Context, creds core.SiteCredentials) ([]core.APIToken, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return nil, err
	}

	path := "/api/token/?p=1&size=100"
	var resp tokenListResponse
	if err := a.doGet(ctx, creds, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("oneapi: %s: %s", path, failureMessage(resp.Message))
	}
	return resp.Data.Items, nil
}

// writeResponse is the envelope of token create/update/delete calls. Unlike
// the read endpoints, the success flag is the only trusted signal: forks
// disagree on whether data is echoed back.
type writeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateAPIToken creates a new API token on the site.
func (a *Adapter) CreateAPIToken(ctx context.Context, creds core.SiteCredentials, token core.APIToken) error {
	if err := a.requireTokenAuth(creds); err != nil {
		return err
	}

	var resp writeResponse
	if err := a.doJSON(ctx, creds, http.MethodPost, "/api/token/", token, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("oneapi: POST /api/token/: %s", failureMessage(resp.Message))
	}
	return nil
}

// UpdateAPIToken updates an existing API token in place.
func (a *Adapter) UpdateAPIToken(ctx context.Context, creds core.SiteCredentials, token core.APIToken) error {
	if err := a.requireTokenAuth(creds); err != nil {
		return err
	}

	var resp writeResponse
	if err := a.doJSON(ctx, creds, http.MethodPut, "/api/token/", token, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("oneapi: PUT /api/token/: %s", failureMessage(resp.Message))
	}
	return nil
}

// DeleteAPIToken removes an API token by id.
func (a *Adapter) DeleteAPIToken(ctx context.Context, creds core.SiteCredentials, tokenID int64) error {
	if err := a.requireTokenAuth(creds); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/token/%d", tokenID)
	var resp writeResponse
	if err := a.doJSON(ctx, creds, http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("oneapi: DELETE %s: %s", path, failureMessage(resp.Message))
	}
	return nil
}
