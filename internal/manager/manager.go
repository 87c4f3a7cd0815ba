// Package manager orchestrates account flows across the adapter registry
// and the account store: auto-detection, validate-and-save, and refresh.
// The manager holds no account state of its own.
package manager

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/zcw199604/one-api-hub/internal/adapters"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/store"
)

const (
	// SiteTypeAuto asks the manager to resolve the site type by probing.
	SiteTypeAuto = "auto"

	defaultSiteType  = "one-api"
	defaultOpTimeout = 30 * time.Second
	cubenceSiteType  = "cubence"
)

type Manager struct {
	registry *adapters.Registry
	accounts store.AccountStore
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout bounds each per-account operation during refresh fan-out.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

func New(registry *adapters.Registry, accounts store.AccountStore, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		accounts: accounts,
		timeout:  defaultOpTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SaveParams is the user-supplied input of a save/update flow.
type SaveParams struct {
	URL           string
	SiteName      string
	SiteType      string // empty or "auto" resolves by probing
	Username      string // optional; wins over the validation response
	UserID        string // numeric string for one-api-token auth
	AccessToken   string
	APIKey        string
	ExchangeRate  float64
	AdapterConfig map[string]string
}

// Result is the user-facing outcome of save/update flows. Failures are
// carried in Error, never as a panic or a bare error escaping the manager.
type Result struct {
	Success bool
	Error   string
	Account *core.SiteAccount
}

func failure(phase string, err error) Result {
	return Result{Success: false, Error: fmt.Sprintf("%s: %v", phase, err)}
}

func failuref(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// resolveSiteType applies the routing precedence: an explicit non-auto
// value is used as-is, otherwise probing decides, otherwise the one-api
// family is assumed.
func (m *Manager) resolveSiteType(ctx context.Context, explicit, siteURL string) string {
	siteType := strings.ToLower(strings.TrimSpace(explicit))
	if siteType != "" && siteType != SiteTypeAuto {
		return siteType
	}
	if detected := m.registry.DetectSiteType(ctx, siteURL); detected != "" {
		return detected
	}
	return defaultSiteType
}

// AutoDetectAccount resolves the effective site type, requires the adapter
// to support auto-detection, and delegates. The resolved site type is
// stamped onto the result for downstream use.
func (m *Manager) AutoDetectAccount(ctx context.Context, siteURL, siteType string) core.AutoDetectResult {
	resolved := m.resolveSiteType(ctx, siteType, siteURL)

	adapter := m.registry.Get(resolved)
	if err := core.AssertCapability(adapter, core.CapabilityAutoDetect); err != nil {
		return core.AutoDetectResult{
			Success:       false,
			SiteType:      resolved,
			Error:         err.Error(),
			DetailedError: "capability_not_supported",
		}
	}

	result := adapter.(core.AutoDetector).AutoDetectAccount(ctx, siteURL)
	result.SiteType = resolved
	return result
}

// buildCredentials maps save parameters onto the credential variant the
// resolved site type needs. All structural problems are caught here, before
// any network call.
func buildCredentials(siteType string, params SaveParams) (core.SiteCredentials, error) {
	creds := core.SiteCredentials{
		SiteURL:       strings.TrimRight(strings.TrimSpace(params.URL), "/"),
		AdapterConfig: params.AdapterConfig,
	}

	switch {
	case siteType == cubenceSiteType:
		creds.AuthKind = core.AuthKindCookie
	case strings.TrimSpace(params.APIKey) != "":
		creds.AuthKind = core.AuthKindAPIKey
		creds.APIKey = strings.TrimSpace(params.APIKey)
	default:
		userID := strings.TrimSpace(params.UserID)
		accessToken := strings.TrimSpace(params.AccessToken)
		if userID == "" || accessToken == "" {
			return core.SiteCredentials{}, fmt.Errorf("user id and access token are both required")
		}
		parsed, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			return core.SiteCredentials{}, fmt.Errorf("user id %q is not numeric", userID)
		}
		creds.AuthKind = core.AuthKindOneAPIToken
		creds.UserID = parsed
		creds.AccessToken = accessToken
	}
	return creds, nil
}

// ValidateAndSaveAccount validates credentials against the live site and
// persists a new account record on success.
func (m *Manager) ValidateAndSaveAccount(ctx context.Context, params SaveParams) Result {
	return m.validateAndPersist(ctx, "", params)
}

// ValidateAndUpdateAccount re-runs the validation flow and merges the
// outcome into an existing account.
func (m *Manager) ValidateAndUpdateAccount(ctx context.Context, accountID string, params SaveParams) Result {
	if strings.TrimSpace(accountID) == "" {
		return failuref("invalid parameters: account id is required")
	}
	return m.validateAndPersist(ctx, accountID, params)
}

func (m *Manager) validateAndPersist(ctx context.Context, accountID string, params SaveParams) Result {
	url := strings.TrimSpace(params.URL)
	siteName := strings.TrimSpace(params.SiteName)
	if url == "" || siteName == "" {
		return failuref("invalid parameters: url and site name are required")
	}

	siteType := m.resolveSiteType(ctx, params.SiteType, url)

	creds, err := buildCredentials(siteType, params)
	if err != nil {
		return failure("building credentials", err)
	}

	adapter := m.registry.Get(siteType)
	if adapter == nil {
		return failuref("resolving adapter: no adapter for site type %q", siteType)
	}

	validation, err := adapter.ValidateConnection(ctx, creds)
	if err != nil {
		return failure("validating connection", err)
	}
	if !validation.OK {
		return failuref("validating connection: %s", validation.Message)
	}

	username := strings.TrimSpace(params.Username)
	if username == "" {
		username = strings.TrimSpace(validation.Username)
	}
	if username == "" {
		return failuref("resolving username: no username supplied and the site did not report one")
	}

	balance, usage, err := m.fetchBalanceAndUsage(ctx, adapter, creds)
	if err != nil {
		return failure("fetching account data", err)
	}

	account := core.SiteAccount{
		SiteName:      siteName,
		SiteURL:       creds.SiteURL,
		SiteType:      siteType,
		AdapterConfig: params.AdapterConfig,
		HealthStatus:  core.HealthHealthy,
		ExchangeRate:  params.ExchangeRate,
		LastSyncTime:  m.now(),
		AccountInfo: core.AccountInfo{
			Username:              username,
			UserID:                creds.UserID,
			AccessToken:           creds.AccessToken,
			APIKey:                creds.APIKey,
			Quota:                 balance.RawBalance,
			TodayQuota:            usage.RawConsumption,
			TodayPromptTokens:     usage.PromptTokens,
			TodayCompletionTokens: usage.CompletionTokens,
			TodayRequests:         usage.RequestCount,
		},
	}

	if accountID == "" {
		if err := m.accounts.AddAccount(ctx, &account); err != nil {
			return failure("saving account", err)
		}
		return Result{Success: true, Account: &account}
	}

	existing, err := m.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return failure("loading account", err)
	}
	if existing == nil {
		return failuref("loading account: account %s not found", accountID)
	}
	account.ID = existing.ID
	account.CreatedAt = existing.CreatedAt
	if account.ExchangeRate == 0 {
		account.ExchangeRate = existing.ExchangeRate
	}
	if err := m.accounts.UpdateAccount(ctx, &account); err != nil {
		return failure("updating account", err)
	}
	return Result{Success: true, Account: &account}
}

// credentialsFromAccount rebuilds the credential variant from a persisted
// record, mirroring buildCredentials but sourced from storage.
func credentialsFromAccount(account *core.SiteAccount) (core.SiteCredentials, error) {
	creds := core.SiteCredentials{
		SiteURL:       account.SiteURL,
		AdapterConfig: account.AdapterConfig,
	}

	switch {
	case account.SiteType == cubenceSiteType:
		creds.AuthKind = core.AuthKindCookie
		creds.UserID = account.AccountInfo.UserID
	case account.AccountInfo.APIKey != "":
		creds.AuthKind = core.AuthKindAPIKey
		creds.APIKey = account.AccountInfo.APIKey
	default:
		if account.AccountInfo.UserID == 0 || account.AccountInfo.AccessToken == "" {
			return core.SiteCredentials{}, fmt.Errorf("account %s has no stored token credentials", account.ID)
		}
		creds.AuthKind = core.AuthKindOneAPIToken
		creds.UserID = account.AccountInfo.UserID
		creds.AccessToken = account.AccountInfo.AccessToken
	}
	return creds, nil
}

// CredentialsFor rebuilds the credential variant stored with an account,
// for callers driving adapter operations outside the refresh flows.
func (m *Manager) CredentialsFor(account *core.SiteAccount) (core.SiteCredentials, error) {
	return credentialsFromAccount(account)
}

// RefreshAccount re-fetches balance and usage for one stored account. On
// success the merged record is written back with a healthy status; on
// failure only the health status and sync time are touched, so stale but
// known-good data survives.
func (m *Manager) RefreshAccount(ctx context.Context, accountID string) error {
	account, err := m.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("manager: loading account %s: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("manager: account %s not found", accountID)
	}

	refreshErr := m.refreshLoaded(ctx, account)
	if refreshErr != nil {
		status := core.ClassifyHealth(refreshErr)
		if err := m.accounts.UpdateAccountHealth(ctx, account.ID, status, m.now()); err != nil {
			log.Printf("[manager] persisting health for %s failed: %v", account.ID, err)
		}
		return refreshErr
	}
	return nil
}

func (m *Manager) refreshLoaded(ctx context.Context, account *core.SiteAccount) error {
	adapter := m.registry.Get(account.SiteType)
	if adapter == nil {
		return fmt.Errorf("manager: no adapter for site type %q", account.SiteType)
	}

	creds, err := credentialsFromAccount(account)
	if err != nil {
		return err
	}

	balance, usage, err := m.fetchBalanceAndUsage(ctx, adapter, creds)
	if err != nil {
		return err
	}

	account.AccountInfo.Quota = balance.RawBalance
	account.AccountInfo.TodayQuota = usage.RawConsumption
	account.AccountInfo.TodayPromptTokens = usage.PromptTokens
	account.AccountInfo.TodayCompletionTokens = usage.CompletionTokens
	account.AccountInfo.TodayRequests = usage.RequestCount
	account.HealthStatus = core.HealthHealthy
	account.LastSyncTime = m.now()

	if err := m.accounts.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("manager: persisting refresh for %s: %w", account.ID, err)
	}
	return nil
}

// fetchBalanceAndUsage runs the two independent reads side by side. An
// adapter lacking either capability contributes zero values, not an error.
func (m *Manager) fetchBalanceAndUsage(ctx context.Context, adapter core.SiteAdapter, creds core.SiteCredentials) (core.BalanceInfo, core.UsageStats, error) {
	var (
		wg         sync.WaitGroup
		balance    core.BalanceInfo
		usage      core.UsageStats
		balanceErr error
		usageErr   error
	)

	if fetcher, ok := adapter.(core.BalanceFetcher); ok && adapter.Metadata().Has(core.CapabilityBalance) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balance, balanceErr = fetcher.GetAccountBalance(ctx, creds)
		}()
	}

	if fetcher, ok := adapter.(core.UsageFetcher); ok && adapter.Metadata().Has(core.CapabilityUsageStats) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, usageErr = fetcher.GetUsageStats(ctx, creds, core.TodayRange(m.now()))
		}()
	}

	wg.Wait()

	if balanceErr != nil {
		return core.BalanceInfo{}, core.UsageStats{}, balanceErr
	}
	if usageErr != nil {
		return core.BalanceInfo{}, core.UsageStats{}, usageErr
	}
	return balance, usage, nil
}

// RefreshSummary tallies a fan-out refresh.
type RefreshSummary struct {
	Success int
	Failed  int
}

// RefreshAllAccounts refreshes every stored account concurrently with an
// all-settled strategy: one account's failure never aborts the others.
func (m *Manager) RefreshAllAccounts(ctx context.Context) (RefreshSummary, error) {
	accounts, err := m.accounts.GetAllAccounts(ctx)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("manager: listing accounts: %w", err)
	}

	results := make([]error, len(accounts))
	var wg sync.WaitGroup
	for i, account := range accounts {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			opCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			if err := m.RefreshAccount(opCtx, id); err != nil {
				log.Printf("[manager] refresh of %s failed: %v", id, err)
				results[i] = err
			}
		}(i, account.ID)
	}
	wg.Wait()

	succeeded := lo.CountBy(results, func(err error) bool { return err == nil })
	return RefreshSummary{Success: succeeded, Failed: len(results) - succeeded}, nil
}
