// Package oneapi implements the site adapter for One API and its forks
// (New API, Veloera, One-Hub, Done-Hub). The forks share the same JSON
// envelope — {"success": bool, "message": string, "data": …} — and the same
// quota accounting: 500,000 quota points per USD.
//
// Authenticated endpoints require both an Authorization bearer token and the
// numeric user id in the New-Api-User header.
package oneapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zcw199604/one-api-hub/internal/adapters/adapterbase"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/session"
)

const (
	AdapterID = "one-api"

	rawUnit          = "quota_points"
	conversionFactor = 500000 // quota points per USD

	defaultTimeout = 15 * time.Second
)

// SiteTypes lists the fork families this adapter answers for.
var SiteTypes = []string{"one-api", "new-api", "veloera", "one-hub", "done-hub"}

type Adapter struct {
	adapterbase.Base
	httpClient *http.Client
	session    *session.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithHTTPClient(hc *http.Client) Option {
	return func(a *Adapter) { a.httpClient = hc }
}

func New(sess *session.Client, opts ...Option) *Adapter {
	a := &Adapter{
		Base: adapterbase.New(core.AdapterMetadata{
			ID:        AdapterID,
			Name:      "One API family",
			Version:   "1.0.0",
			SiteTypes: SiteTypes,
			Capabilities: []core.Capability{
				core.CapabilityAutoDetect,
				core.CapabilityBalance,
				core.CapabilityUsageStats,
				core.CapabilityTokenManagement,
				core.CapabilityModelList,
				core.CapabilityModelPricing,
			},
			Balance: &core.BalanceDescriptor{RawUnit: rawUnit, ConversionFactor: conversionFactor},
		}),
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    sess,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) requireTokenAuth(creds core.SiteCredentials) error {
	if creds.AuthKind != core.AuthKindOneAPIToken {
		return &core.AuthKindError{AdapterID: AdapterID, Required: core.AuthKindOneAPIToken, Got: creds.AuthKind}
	}
	return nil
}

type userSelfResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ID          int64   `json:"id"`
		Username    string  `json:"username"`
		DisplayName string  `json:"display_name"`
		Quota       float64 `json:"quota"`
		UsedQuota   float64 `json:"used_quota"`
		AccessToken string  `json:"access_token"`
	} `json:"data"`
}

func (a *Adapter) ValidateConnection(ctx context.Context, creds core.SiteCredentials) (core.ValidationResult, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return core.ValidationResult{}, err
	}

	var resp userSelfResponse
	err := a.doGet(ctx, creds, "/api/user/self", &resp)
	if err != nil {
		var statusErr *core.HTTPStatusError
		// 401/403 are the expected shape of bad credentials, not a fault.
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return core.ValidationResult{OK: false, Message: fmt.Sprintf("authentication rejected (HTTP %d)", statusErr.StatusCode)}, nil
		}
		return core.ValidationResult{}, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "site reported success=false for /api/user/self"
		}
		return core.ValidationResult{OK: false, Message: msg}, nil
	}
	return core.ValidationResult{OK: true, Username: resp.Data.Username}, nil
}

func (a *Adapter) GetAccountBalance(ctx context.Context, creds core.SiteCredentials) (core.BalanceInfo, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return core.BalanceInfo{}, err
	}

	var resp userSelfResponse
	if err := a.doGet(ctx, creds, "/api/user/self", &resp); err != nil {
		return core.BalanceInfo{}, err
	}
	if !resp.Success {
		return core.BalanceInfo{}, fmt.Errorf("oneapi: /api/user/self: %s", failureMessage(resp.Message))
	}
	return core.NewBalanceInfo(resp.Data.Quota, a.Metadata().Balance), nil
}

type modelsResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    []string `json:"data"`
}

// GetAvailableModels returns the model names the account may call.
func (a *Adapter) GetAvailableModels(ctx context.Context, creds core.SiteCredentials) ([]string, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return nil, err
	}

	var resp modelsResponse
	if err := a.doGet(ctx, creds, "/api/user/models", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("oneapi: /api/user/models: %s", failureMessage(resp.Message))
	}
	return resp.Data, nil
}

type pricingResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    []core.ModelPrice `json:"data"`
}

// GetModelPricing is a pass-through typed fetch of the site's pricing table.
func (a *Adapter) GetModelPricing(ctx context.Context, creds core.SiteCredentials) ([]core.ModelPrice, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return nil, err
	}

	var resp pricingResponse
	if err := a.doGet(ctx, creds, "/api/pricing", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("oneapi: /api/pricing: %s", failureMessage(resp.Message))
	}
	return resp.Data, nil
}

// GetSiteStatus probes /api/status without credentials. A URL that does not
// answer with the family's status envelope is reported as "not this site"
// rather than an error, so the registry can probe speculatively.
func (a *Adapter) GetSiteStatus(ctx context.Context, siteURL string) (*core.SiteStatusInfo, error) {
	statusURL := joinURL(siteURL, "/api/status")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oneapi: creating status request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oneapi: probing %s: %w", statusURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("oneapi: reading %s: %w", statusURL, err)
	}

	var status struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &status) != nil || !status.Success || len(status.Data) == 0 {
		return nil, nil
	}

	var data struct {
		SystemName string `json:"system_name"`
		Version    string `json:"version"`
	}
	if json.Unmarshal(status.Data, &data) != nil {
		return nil, nil
	}

	info := &core.SiteStatusInfo{
		SiteType:   AdapterID,
		Host:       hostOf(siteURL),
		SystemName: data.SystemName,
		Version:    data.Version,
	}
	if rate, ok := exchangeRateFromStatus(status.Data); ok {
		info.ExchangeRate = rate
	}
	return info, nil
}

// exchangeRateFromStatus extracts the site's default top-up ratio from the
// status payload. Forks disagree on the field name, so known names are tried
// in order; values may arrive as numbers or numeric strings.
func exchangeRateFromStatus(raw json.RawMessage) (float64, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return 0, false
	}
	for _, name := range []string{"topup_ratio", "topup_rate", "price"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		var asNumber float64
		if json.Unmarshal(value, &asNumber) == nil && asNumber > 0 {
			return asNumber, true
		}
		var asString string
		if json.Unmarshal(value, &asString) == nil {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(asString), 64); err == nil && parsed > 0 {
				return parsed, true
			}
		}
	}
	return 0, false
}

// doGet issues an authenticated GET and decodes the JSON body into out.
func (a *Adapter) doGet(ctx context.Context, creds core.SiteCredentials, path string, out any) error {
	return a.doJSON(ctx, creds, http.MethodGet, path, nil, out)
}

func (a *Adapter) doJSON(ctx context.Context, creds core.SiteCredentials, method, path string, payload, out any) error {
	endpoint := joinURL(creds.SiteURL, path)

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("oneapi: encoding %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("oneapi: creating %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("New-Api-User", strconv.FormatInt(creds.UserID, 10))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oneapi: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("oneapi: reading %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.HTTPStatusError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("oneapi: decoding %s response: %w", path, err)
	}
	return nil
}

func failureMessage(msg string) string {
	if msg == "" {
		return "success=false"
	}
	return msg
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func hostOf(siteURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(siteURL, "https://"), "http://")
	if idx := strings.IndexAny(trimmed, "/?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}
