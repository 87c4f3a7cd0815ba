package core

import "context"

// SiteAdapter is the contract every site integration implements. Optional
// behaviors live on the capability interfaces below; declaring a capability
// in Metadata() promises the adapter also satisfies the matching interface.
// The registry re-checks that pairing at registration time.
type SiteAdapter interface {
	Metadata() AdapterMetadata

	// ValidateConnection is a cheap connectivity+auth check. Expected auth
	// failures return OK=false with a message; only transport-level or
	// programming errors surface as error.
	ValidateConnection(ctx context.Context, creds SiteCredentials) (ValidationResult, error)
}

// BalanceFetcher is implemented by adapters declaring CapabilityBalance.
type BalanceFetcher interface {
	GetAccountBalance(ctx context.Context, creds SiteCredentials) (BalanceInfo, error)
}

// UsageFetcher is implemented by adapters declaring CapabilityUsageStats.
type UsageFetcher interface {
	GetUsageStats(ctx context.Context, creds SiteCredentials, window TimeRange) (UsageStats, error)
}

// AutoDetector is implemented by adapters declaring CapabilityAutoDetect.
// AutoDetectAccount never returns an error: every failure path folds into
// AutoDetectResult{Success: false}.
type AutoDetector interface {
	AutoDetectAccount(ctx context.Context, siteURL string) AutoDetectResult
}

// TokenManager bundles the access-token bootstrap with the full token CRUD
// surface. Keeping all five operations on one interface makes the
// "all-or-nothing" rule for CapabilityTokenManagement a compile-time fact.
type TokenManager interface {
	GetOrCreateAccessToken(ctx context.Context, creds SiteCredentials) (string, error)
	GetAPITokens(ctx context.Context, creds SiteCredentials) ([]APIToken, error)
	CreateAPIToken(ctx context.Context, creds SiteCredentials, token APIToken) error
	UpdateAPIToken(ctx context.Context, creds SiteCredentials, token APIToken) error
	DeleteAPIToken(ctx context.Context, creds SiteCredentials, tokenID int64) error
}

// ModelLister is implemented by adapters declaring CapabilityModelList.
type ModelLister interface {
	GetAvailableModels(ctx context.Context, creds SiteCredentials) ([]string, error)
}

// ModelPricer is implemented by adapters declaring CapabilityModelPricing.
type ModelPricer interface {
	GetModelPricing(ctx context.Context, creds SiteCredentials) ([]ModelPrice, error)
}

// StatusProber answers whether a URL belongs to this adapter's site family.
// Probes must be side-effect-free and safe against arbitrary URLs: a foreign
// URL yields (nil, nil) or an error, never a panic. Used for UI status
// display and by the registry's site-type auto-detection.
type StatusProber interface {
	GetSiteStatus(ctx context.Context, siteURL string) (*SiteStatusInfo, error)
}

// capabilityImplemented reports whether the adapter satisfies the interface
// backing cap.
func capabilityImplemented(adapter SiteAdapter, cap Capability) bool {
	switch cap {
	case CapabilityAutoDetect:
		_, ok := adapter.(AutoDetector)
		return ok
	case CapabilityBalance:
		_, ok := adapter.(BalanceFetcher)
		return ok
	case CapabilityUsageStats:
		_, ok := adapter.(UsageFetcher)
		return ok
	case CapabilityTokenManagement:
		_, ok := adapter.(TokenManager)
		return ok
	case CapabilityModelList:
		_, ok := adapter.(ModelLister)
		return ok
	case CapabilityModelPricing:
		_, ok := adapter.(ModelPricer)
		return ok
	}
	return false
}

// AssertCapability guards optional operations: it fails with a
// *CapabilityError when the adapter is absent, does not declare cap, or
// (defense-in-depth) declares it without implementing the backing interface.
func AssertCapability(adapter SiteAdapter, cap Capability) error {
	if adapter == nil {
		return &CapabilityError{Capability: cap}
	}
	meta := adapter.Metadata()
	if !meta.Has(cap) || !capabilityImplemented(adapter, cap) {
		return &CapabilityError{AdapterID: meta.ID, Capability: cap}
	}
	return nil
}
