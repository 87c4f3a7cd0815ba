// Package cubence implements the site adapter for cubence.com. The site
// exposes no token concept to this integration: every call rides the user's
// browser session cookies, and balances are accounted in integer micro-USD.
package cubence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/zcw199604/one-api-hub/internal/adapters/adapterbase"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/session"
)

const (
	AdapterID = "cubence"

	rawUnit          = "micro_usd"
	conversionFactor = 1_000_000 // micro-USD per USD

	siteDomain = "cubence.com"

	overviewPath  = "/api/dashboard/overview"
	analyticsPath = "/api/analytics/today"
)

type Adapter struct {
	adapterbase.Base
	session *session.Client
}

func New(sess *session.Client) *Adapter {
	return &Adapter{
		Base: adapterbase.New(core.AdapterMetadata{
			ID:        AdapterID,
			Name:      "Cubence",
			Version:   "1.0.0",
			SiteTypes: []string{"cubence"},
			Capabilities: []core.Capability{
				core.CapabilityAutoDetect,
				core.CapabilityBalance,
				core.CapabilityUsageStats,
			},
			Balance: &core.BalanceDescriptor{RawUnit: rawUnit, ConversionFactor: conversionFactor},
		}),
		session: sess,
	}
}

func (a *Adapter) requireCookieAuth(creds core.SiteCredentials) error {
	if creds.AuthKind != core.AuthKindCookie {
		return &core.AuthKindError{AdapterID: AdapterID, Required: core.AuthKindCookie, Got: creds.AuthKind}
	}
	return nil
}

type overviewResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Username           string   `json:"username"`
		TotalBalance       *int64   `json:"total_balance"`        // integer micro-USD; authoritative when present
		TotalBalanceDollar *float64 `json:"total_balance_dollar"` // floating USD; fallback only
	} `json:"data"`
}

type analyticsResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Consumption      float64 `json:"consumption"` // micro-USD
		PromptTokens     int64   `json:"prompt_tokens"`
		CompletionTokens int64   `json:"completion_tokens"`
		RequestCount     int64   `json:"request_count"`
	} `json:"data"`
}

// checkEnvelope applies the site's loose result convention: a present code
// other than 200 is a failure, a missing code with a present message is a
// failure, and a missing code alone is implicit success (some endpoint
// variants omit it).
func checkEnvelope(path string, code *int, message string) error {
	if code != nil {
		if *code != 200 {
			return fmt.Errorf("cubence: %s: code %d: %s", path, *code, failureMessage(message))
		}
		return nil
	}
	if message != "" {
		return fmt.Errorf("cubence: %s: %s", path, message)
	}
	return nil
}

func (a *Adapter) ValidateConnection(ctx context.Context, creds core.SiteCredentials) (core.ValidationResult, error) {
	if err := a.requireCookieAuth(creds); err != nil {
		return core.ValidationResult{}, err
	}

	var resp overviewResponse
	if err := a.fetch(ctx, creds.SiteURL, overviewPath, &resp); err != nil {
		if isAuthStatus(err) {
			return core.ValidationResult{OK: false, Message: "browser session rejected; sign in to the site first"}, nil
		}
		return core.ValidationResult{}, err
	}
	if err := checkEnvelope(overviewPath, resp.Code, resp.Message); err != nil {
		return core.ValidationResult{OK: false, Message: err.Error()}, nil
	}
	return core.ValidationResult{OK: true, Username: resp.Data.Username}, nil
}

// GetAccountBalance reads the dashboard overview. The integer micro-USD
// field wins; when the site only reports a floating dollar amount, the raw
// value is derived by rounding dollars times the conversion factor.
func (a *Adapter) GetAccountBalance(ctx context.Context, creds core.SiteCredentials) (core.BalanceInfo, error) {
	if err := a.requireCookieAuth(creds); err != nil {
		return core.BalanceInfo{}, err
	}

	var resp overviewResponse
	if err := a.fetch(ctx, creds.SiteURL, overviewPath, &resp); err != nil {
		return core.BalanceInfo{}, err
	}
	if err := checkEnvelope(overviewPath, resp.Code, resp.Message); err != nil {
		return core.BalanceInfo{}, err
	}

	var raw float64
	switch {
	case resp.Data.TotalBalance != nil:
		raw = float64(*resp.Data.TotalBalance)
	case resp.Data.TotalBalanceDollar != nil:
		raw = math.Round(*resp.Data.TotalBalanceDollar * conversionFactor)
	default:
		return core.BalanceInfo{}, fmt.Errorf("cubence: %s: response has neither total_balance nor total_balance_dollar", overviewPath)
	}
	return core.NewBalanceInfo(raw, a.Metadata().Balance), nil
}

// GetUsageStats reads the today-analytics endpoint. The window argument is
// accepted for contract symmetry but the endpoint only serves the current
// local day.
func (a *Adapter) GetUsageStats(ctx context.Context, creds core.SiteCredentials, _ core.TimeRange) (core.UsageStats, error) {
	if err := a.requireCookieAuth(creds); err != nil {
		return core.UsageStats{}, err
	}

	var resp analyticsResponse
	if err := a.fetch(ctx, creds.SiteURL, analyticsPath, &resp); err != nil {
		return core.UsageStats{}, err
	}
	if err := checkEnvelope(analyticsPath, resp.Code, resp.Message); err != nil {
		return core.UsageStats{}, err
	}

	return core.UsageStats{
		RawConsumption:   resp.Data.Consumption,
		RawUnit:          rawUnit,
		ConversionFactor: conversionFactor,
		PromptTokens:     resp.Data.PromptTokens,
		CompletionTokens: resp.Data.CompletionTokens,
		RequestCount:     resp.Data.RequestCount,
	}, nil
}

// AutoDetectAccount confirms a live browser session and recovers the
// username. The site has no token concept, so the access token and user id
// stay empty placeholders.
func (a *Adapter) AutoDetectAccount(ctx context.Context, siteURL string) core.AutoDetectResult {
	var resp overviewResponse
	if err := a.fetch(ctx, siteURL, overviewPath, &resp); err != nil {
		return core.AutoDetectResult{Success: false, Error: fmt.Sprintf("reading dashboard overview failed: %v", err)}
	}
	if err := checkEnvelope(overviewPath, resp.Code, resp.Message); err != nil {
		return core.AutoDetectResult{Success: false, Error: err.Error()}
	}
	if resp.Data.Username == "" {
		return core.AutoDetectResult{Success: false, Error: "no logged-in Cubence session found"}
	}
	return core.AutoDetectResult{
		Success: true,
		Data:    &core.AutoDetectData{Username: resp.Data.Username, AccessToken: "", UserID: ""},
	}
}

// GetSiteStatus matches by hostname only — cubence.com or any subdomain —
// so registry probes stay free of network calls.
func (a *Adapter) GetSiteStatus(_ context.Context, siteURL string) (*core.SiteStatusInfo, error) {
	parsed, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return nil, nil
	}
	host := strings.ToLower(parsed.Hostname())
	if host != siteDomain && !strings.HasSuffix(host, "."+siteDomain) {
		return nil, nil
	}
	return &core.SiteStatusInfo{SiteType: AdapterID, Host: host, SystemName: "Cubence"}, nil
}

func (a *Adapter) fetch(ctx context.Context, siteURL, path string, out any) error {
	endpoint := strings.TrimRight(strings.TrimSpace(siteURL), "/") + path
	body, err := a.session.FetchJSON(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("cubence: %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cubence: decoding %s response: %w", path, err)
	}
	return nil
}

func failureMessage(msg string) string {
	if msg == "" {
		return "request failed"
	}
	return msg
}

func isAuthStatus(err error) bool {
	var statusErr *core.HTTPStatusError
	return errors.As(err, &statusErr) && (statusErr.StatusCode == 401 || statusErr.StatusCode == 403)
}
