package core

import (
	"math"
	"time"
)

// Capability names an optional behavior a site adapter may support.
// Declaring a capability is a promise that the adapter implements the
// matching operation interface; the registry verifies this at registration.
type Capability string

const (
	CapabilityAutoDetect      Capability = "auto_detect"
	CapabilityBalance         Capability = "balance"
	CapabilityUsageStats      Capability = "usage_stats"
	CapabilityTokenManagement Capability = "token_management"
	CapabilityModelList       Capability = "model_list"
	CapabilityModelPricing    Capability = "model_pricing"
)

// BalanceDescriptor defines how an adapter's native quota unit maps to USD:
// balanceUSD = rawBalance / ConversionFactor.
type BalanceDescriptor struct {
	RawUnit          string
	ConversionFactor float64
}

// AdapterMetadata is the immutable descriptor of a registered adapter.
type AdapterMetadata struct {
	ID           string
	Name         string
	Version      string
	SiteTypes    []string // site-type keys this adapter answers for
	Capabilities []Capability
	Balance      *BalanceDescriptor
}

func (m AdapterMetadata) Has(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// AuthKind tags the credential variant carried by SiteCredentials.
type AuthKind string

const (
	AuthKindOneAPIToken AuthKind = "one-api-token"
	AuthKindAPIKey      AuthKind = "api-key"
	AuthKindCookie      AuthKind = "cookie" // browser session auth
)

// SiteCredentials is the input to every adapter operation.
// An adapter must reject credentials whose AuthKind it does not support
// before issuing any network call.
type SiteCredentials struct {
	SiteURL string // base URL, no path

	AuthKind    AuthKind
	UserID      int64  // one-api-token, optionally cookie
	AccessToken string // one-api-token
	APIKey      string // api-key

	AdapterConfig map[string]string // adapter-specific extensions
}

// BalanceInfo carries a raw quota value in the adapter's declared unit plus
// its USD projection.
type BalanceInfo struct {
	RawBalance       float64 `json:"raw_balance"`
	RawUnit          string  `json:"raw_unit"`
	ConversionFactor float64 `json:"conversion_factor,omitempty"`
	BalanceUSD       float64 `json:"balance_usd,omitempty"`
}

// NewBalanceInfo computes the USD projection from the descriptor.
func NewBalanceInfo(raw float64, desc *BalanceDescriptor) BalanceInfo {
	info := BalanceInfo{RawBalance: raw}
	if desc == nil {
		return info
	}
	info.RawUnit = desc.RawUnit
	info.ConversionFactor = desc.ConversionFactor
	if desc.ConversionFactor > 0 {
		info.BalanceUSD = raw / desc.ConversionFactor
	}
	return info
}

// UsageStats aggregates consumption over a time window.
type UsageStats struct {
	RawConsumption   float64 `json:"raw_consumption"`
	RawUnit          string  `json:"raw_unit"`
	ConversionFactor float64 `json:"conversion_factor,omitempty"`
	PromptTokens     int64   `json:"prompt_tokens,omitempty"`
	CompletionTokens int64   `json:"completion_tokens,omitempty"`
	RequestCount     int64   `json:"request_count,omitempty"`
}

// TimeRange is a half-open-ish window in epoch seconds, inclusive on both
// ends by convention of the upstream log endpoints.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// TodayRange returns the local calendar-day window [00:00:00, 23:59:59.999]
// converted to epoch seconds.
func TodayRange(now time.Time) TimeRange {
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return TimeRange{Start: start.Unix(), End: end.Unix()}
}

// AutoDetectData is the credential material recovered from a logged-in
// browser session.
type AutoDetectData struct {
	Username     string  `json:"username"`
	AccessToken  string  `json:"access_token"`
	UserID       string  `json:"user_id"`
	ExchangeRate float64 `json:"exchange_rate,omitempty"` // site-reported CNY per USD top-up ratio
}

// AutoDetectResult is the never-fails envelope of an auto-detection attempt:
// all failure paths resolve into Success=false rather than an error return.
type AutoDetectResult struct {
	Success       bool            `json:"success"`
	SiteType      string          `json:"site_type,omitempty"` // filled in by the orchestrator
	Data          *AutoDetectData `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	DetailedError string          `json:"detailed_error,omitempty"`
}

// SiteStatusInfo is what a status probe learns about a site. A nil result
// means "not this adapter's site".
type SiteStatusInfo struct {
	SiteType     string  `json:"site_type"`
	Host         string  `json:"host"`
	SystemName   string  `json:"system_name,omitempty"`
	Version      string  `json:"version,omitempty"`
	ExchangeRate float64 `json:"exchange_rate,omitempty"`
}

// ValidationResult reports a connectivity+auth check. Expected auth failures
// come back as OK=false with a message, not as an error.
type ValidationResult struct {
	OK       bool
	Message  string
	Username string // surfaced when the check response includes it
}

// APIToken is a site-side API token as exposed by token-management adapters.
type APIToken struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Key            string  `json:"key,omitempty"`
	Status         int     `json:"status"`
	RemainQuota    float64 `json:"remain_quota"`
	UnlimitedQuota bool    `json:"unlimited_quota"`
	UsedQuota      float64 `json:"used_quota"`
	ExpiredTime    int64   `json:"expired_time"`
	CreatedTime    int64   `json:"created_time"`
}

// ModelPrice describes per-model pricing as reported by a site.
type ModelPrice struct {
	Model           string  `json:"model_name"`
	Type            string  `json:"quota_type,omitempty"`
	Ratio           float64 `json:"model_ratio,omitempty"`
	CompletionRatio float64 `json:"completion_ratio,omitempty"`
	Price           float64 `json:"model_price,omitempty"`
}

// HealthStatus is the coarse classification attached to an account after its
// most recent refresh.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
	HealthUnknown HealthStatus = "unknown"
)

// AccountInfo holds the adapter-agnostic normalized fields persisted with an
// account and overwritten on every refresh.
type AccountInfo struct {
	Username              string  `json:"username"`
	UserID                int64   `json:"id,omitempty"`
	AccessToken           string  `json:"access_token,omitempty"`
	APIKey                string  `json:"api_key,omitempty"`
	Quota                 float64 `json:"quota"`
	TodayQuota            float64 `json:"today_quota"`
	TodayPromptTokens     int64   `json:"today_prompt_tokens"`
	TodayCompletionTokens int64   `json:"today_completion_tokens"`
	TodayRequests         int64   `json:"today_requests"`
}

// SiteAccount is the persisted account record.
type SiteAccount struct {
	ID            string            `json:"id"`
	SiteName      string            `json:"site_name"`
	SiteURL       string            `json:"site_url"`
	SiteType      string            `json:"site_type"`
	AdapterConfig map[string]string `json:"adapter_config,omitempty"`
	HealthStatus  HealthStatus      `json:"health_status"`
	ExchangeRate  float64           `json:"exchange_rate,omitempty"`
	AccountInfo   AccountInfo       `json:"account_info"`
	LastSyncTime  time.Time         `json:"last_sync_time"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// BalanceUSD converts the stored raw quota using the adapter descriptor.
func (a SiteAccount) BalanceUSD(desc *BalanceDescriptor) float64 {
	if desc == nil || desc.ConversionFactor <= 0 {
		return 0
	}
	return a.AccountInfo.Quota / desc.ConversionFactor
}

// BalanceCNY projects the USD balance through the account's stored top-up
// exchange rate. Zero when no rate is known.
func (a SiteAccount) BalanceCNY(desc *BalanceDescriptor) float64 {
	if a.ExchangeRate <= 0 {
		return 0
	}
	usd := a.BalanceUSD(desc)
	return math.Round(usd*a.ExchangeRate*100) / 100
}
