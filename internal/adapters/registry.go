// Package adapters holds the site-adapter registry and the built-in
// adapters for the supported site families.
package adapters

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/zcw199604/one-api-hub/internal/adapters/cubence"
	"github.com/zcw199604/one-api-hub/internal/adapters/oneapi"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/session"
)

// Registry routes site-type keys to adapters. It is written once at startup
// and read-only thereafter; construct it explicitly and hand it to the
// orchestrator rather than reaching for a global.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]core.SiteAdapter
	bySiteType map[string]core.SiteAdapter
	order      []core.SiteAdapter // registration order, drives probe precedence
}

func New() *Registry {
	return &Registry{
		byID:       make(map[string]core.SiteAdapter),
		bySiteType: make(map[string]core.SiteAdapter),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry with both built-in adapters,
// constructed exactly once on first access.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewWithSession(session.NewClient())
		if err != nil {
			// Built-in wiring errors are programmer errors, not runtime
			// conditions.
			panic(fmt.Sprintf("adapters: registering built-in: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewWithSession builds a registry holding the built-in adapters, all
// sharing the given session client.
func NewWithSession(sess *session.Client) (*Registry, error) {
	r := New()
	for _, adapter := range []core.SiteAdapter{oneapi.New(sess), cubence.New(sess)} {
		if err := r.Register(adapter); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and installs an adapter. Every failure here is a
// structural error in adapter wiring and is fatal to the registration: an
// empty or duplicate id, a site type already claimed by another adapter, or
// a declared capability without its backing implementation.
func (r *Registry) Register(adapter core.SiteAdapter) error {
	if adapter == nil {
		return fmt.Errorf("adapters: nil adapter")
	}
	meta := adapter.Metadata()

	id := strings.TrimSpace(meta.ID)
	if id == "" {
		return fmt.Errorf("adapters: adapter has empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("adapters: adapter id %q already registered", id)
	}

	siteTypes := make([]string, 0, len(meta.SiteTypes))
	seen := make(map[string]struct{}, len(meta.SiteTypes))
	for _, siteType := range meta.SiteTypes {
		key := normalizeSiteType(siteType)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("adapters: adapter %q claims site type %q twice", id, key)
		}
		if claimed, exists := r.bySiteType[key]; exists {
			return fmt.Errorf("adapters: site type %q already claimed by adapter %q", key, claimed.Metadata().ID)
		}
		seen[key] = struct{}{}
		siteTypes = append(siteTypes, key)
	}
	if len(siteTypes) == 0 {
		return fmt.Errorf("adapters: adapter %q declares no site types", id)
	}

	for _, cap := range meta.Capabilities {
		if err := core.AssertCapability(adapter, cap); err != nil {
			return fmt.Errorf("adapters: adapter %q declares capability %q without implementing it: %w", id, cap, err)
		}
	}

	r.byID[id] = adapter
	for _, key := range siteTypes {
		r.bySiteType[key] = adapter
	}
	r.order = append(r.order, adapter)
	return nil
}

// Get resolves a site type to its adapter; the lookup is trimmed and
// case-insensitive, and unknown types return nil rather than an error.
func (r *Registry) Get(siteType string) core.SiteAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySiteType[normalizeSiteType(siteType)]
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []core.SiteAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.SiteAdapter(nil), r.order...)
}

// SiteTypes returns the sorted, deduplicated set of supported site types.
func (r *Registry) SiteTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := lo.Uniq(lo.Keys(r.bySiteType))
	sort.Strings(types)
	return types
}

// DetectSiteType probes every adapter implementing StatusProber against the
// URL, in registration order, and returns the site type of the first
// positive probe. Probe failures are non-matches: the next adapter is tried
// and the failure is only logged. Returns "" when no adapter claims the URL.
func (r *Registry) DetectSiteType(ctx context.Context, siteURL string) string {
	for _, adapter := range r.All() {
		prober, ok := adapter.(core.StatusProber)
		if !ok {
			continue
		}
		info, err := prober.GetSiteStatus(ctx, siteURL)
		if err != nil {
			log.Printf("[adapters] probe %s against %s failed: %v", adapter.Metadata().ID, siteURL, err)
			continue
		}
		if info == nil {
			continue
		}
		if info.SiteType != "" {
			return info.SiteType
		}
		return adapter.Metadata().ID
	}
	return ""
}

func normalizeSiteType(siteType string) string {
	return strings.ToLower(strings.TrimSpace(siteType))
}
