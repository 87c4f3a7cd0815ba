package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zcw199604/one-api-hub/internal/core"
)

type fakeAdapter struct {
	meta      core.AdapterMetadata
	probe     *core.SiteStatusInfo
	probeErr  error
	probeHits int
}

func (f *fakeAdapter) Metadata() core.AdapterMetadata { return f.meta }

func (f *fakeAdapter) ValidateConnection(context.Context, core.SiteCredentials) (core.ValidationResult, error) {
	return core.ValidationResult{OK: true}, nil
}

func (f *fakeAdapter) GetSiteStatus(context.Context, string) (*core.SiteStatusInfo, error) {
	f.probeHits++
	return f.probe, f.probeErr
}

func newFake(id string, siteTypes ...string) *fakeAdapter {
	return &fakeAdapter{meta: core.AdapterMetadata{ID: id, SiteTypes: siteTypes}}
}

func TestRegister_EmptyID(t *testing.T) {
	r := New()
	if err := r.Register(newFake("  ", "a")); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestRegister_DuplicateID(t *testing.T) {
	r := New()
	if err := r.Register(newFake("dup", "a")); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}
	if err := r.Register(newFake("dup", "b")); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestRegister_DuplicateSiteType(t *testing.T) {
	r := New()
	if err := r.Register(newFake("first", "shared")); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}
	err := r.Register(newFake("second", "other", "SHARED"))
	if err == nil {
		t.Fatal("expected error for duplicate site type")
	}
	if !strings.Contains(err.Error(), "shared") {
		t.Errorf("error %q should name the contested site type", err)
	}
}

func TestRegister_SelfDuplicateSiteType(t *testing.T) {
	// The same site type listed twice by one adapter (here differing only
	// in case) is a wiring mistake, not a collapsible alias.
	r := New()
	err := r.Register(newFake("doubled", "one-api", "ONE-API"))
	if err == nil {
		t.Fatal("expected error for an adapter claiming a site type twice")
	}
	if !strings.Contains(err.Error(), "one-api") {
		t.Errorf("error %q should name the doubled site type", err)
	}
}

func TestRegister_CapabilityWithoutImplementation(t *testing.T) {
	// Declares token management but implements none of the token surface;
	// since the whole CRUD set lives on one interface, a partial
	// implementation is impossible and the declaration alone must fail.
	adapter := newFake("tokens", "tokens-site")
	adapter.meta.Capabilities = []core.Capability{core.CapabilityTokenManagement}

	r := New()
	if err := r.Register(adapter); err == nil {
		t.Fatal("expected registration failure for unbacked capability")
	}
}

func TestGet_TrimmedCaseInsensitive(t *testing.T) {
	r := New()
	adapter := newFake("one", "one-api")
	if err := r.Register(adapter); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if got := r.Get("  One-API "); got != core.SiteAdapter(adapter) {
		t.Errorf("Get() = %v, want the registered adapter", got)
	}
	if got := r.Get("unknown"); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}
}

func TestSiteTypes_SortedDeduplicated(t *testing.T) {
	r := New()
	if err := r.Register(newFake("b-adapter", "zeta", "alpha")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := r.Register(newFake("a-adapter", "mid")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got := r.SiteTypes()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("SiteTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SiteTypes() = %v, want %v", got, want)
		}
	}
}

func TestDetectSiteType_FirstMatchWins(t *testing.T) {
	miss := newFake("miss", "miss-site")
	hit := newFake("hit", "hit-site")
	hit.probe = &core.SiteStatusInfo{SiteType: "hit-site"}

	r := New()
	for _, a := range []*fakeAdapter{miss, hit} {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}

	if got := r.DetectSiteType(context.Background(), "https://example.com"); got != "hit-site" {
		t.Errorf("DetectSiteType() = %q, want hit-site", got)
	}
	if miss.probeHits != 1 {
		t.Errorf("miss probed %d times, want 1", miss.probeHits)
	}
}

func TestDetectSiteType_ProbeErrorIsNonMatch(t *testing.T) {
	broken := newFake("broken", "broken-site")
	broken.probeErr = errors.New("connection reset")
	hit := newFake("hit", "hit-site")
	hit.probe = &core.SiteStatusInfo{SiteType: "hit-site"}

	r := New()
	for _, a := range []*fakeAdapter{broken, hit} {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}

	if got := r.DetectSiteType(context.Background(), "https://example.com"); got != "hit-site" {
		t.Errorf("DetectSiteType() = %q, want hit-site despite the failing probe", got)
	}
}

func TestDetectSiteType_NoMatch(t *testing.T) {
	r := New()
	if err := r.Register(newFake("miss", "miss-site")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if got := r.DetectSiteType(context.Background(), "https://example.com"); got != "" {
		t.Errorf("DetectSiteType() = %q, want empty", got)
	}
}

func TestDefault_BuiltinsAndIdempotence(t *testing.T) {
	first := Default()
	second := Default()
	if first != second {
		t.Fatal("Default() must return the same registry on every call")
	}

	if first.Get("one-api") == nil {
		t.Error("one-api site type not registered")
	}
	if first.Get("new-api") == nil {
		t.Error("new-api site type not registered")
	}
	if first.Get("cubence") == nil {
		t.Error("cubence site type not registered")
	}

	oneAPI := first.Get("one-api").Metadata()
	cubenceMeta := first.Get("cubence").Metadata()
	if oneAPI.ID == cubenceMeta.ID {
		t.Error("built-in adapters must have distinct ids")
	}
}
