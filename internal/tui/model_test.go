package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zcw199604/one-api-hub/internal/adapters"
	"github.com/zcw199604/one-api-hub/internal/config"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/manager"
)

type stubAdapter struct{ meta core.AdapterMetadata }

func (s *stubAdapter) Metadata() core.AdapterMetadata { return s.meta }

func (s *stubAdapter) ValidateConnection(context.Context, core.SiteCredentials) (core.ValidationResult, error) {
	return core.ValidationResult{OK: true}, nil
}

type stubStore struct{ accounts []core.SiteAccount }

func (s *stubStore) GetAllAccounts(context.Context) ([]core.SiteAccount, error) { return s.accounts, nil }
func (s *stubStore) GetAccountByID(context.Context, string) (*core.SiteAccount, error) {
	return nil, nil
}
func (s *stubStore) AddAccount(context.Context, *core.SiteAccount) error    { return nil }
func (s *stubStore) UpdateAccount(context.Context, *core.SiteAccount) error { return nil }
func (s *stubStore) UpdateAccountHealth(context.Context, string, core.HealthStatus, time.Time) error {
	return nil
}
func (s *stubStore) DeleteAccount(context.Context, string) error { return nil }

func testModel(t *testing.T, accounts ...core.SiteAccount) Model {
	t.Helper()
	registry := adapters.New()
	err := registry.Register(&stubAdapter{meta: core.AdapterMetadata{
		ID:        "one-api",
		Name:      "One API",
		SiteTypes: []string{"one-api"},
		Balance:   &core.BalanceDescriptor{RawUnit: "quota_points", ConversionFactor: 500000},
	}})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	st := &stubStore{accounts: accounts}
	mgr := manager.New(registry, st)
	return NewModel(config.DefaultConfig(), registry, mgr, st)
}

func demoAccount() core.SiteAccount {
	return core.SiteAccount{
		ID:           "acct-1",
		SiteName:     "My Relay",
		SiteType:     "one-api",
		HealthStatus: core.HealthHealthy,
		AccountInfo: core.AccountInfo{
			Username:      "alice",
			Quota:         1_000_000, // $2.00
			TodayQuota:    250_000,   // $0.50
			TodayRequests: 7,
		},
	}
}

func TestViewRendersAccountRow(t *testing.T) {
	m := testModel(t)
	updated, _ := m.Update(accountsLoadedMsg{demoAccount()})
	view := updated.View()

	for _, want := range []string{"My Relay", "alice", "$2.00", "$0.50", "healthy"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewEmptyState(t *testing.T) {
	m := testModel(t)
	if view := m.View(); !strings.Contains(view, "no accounts yet") {
		t.Errorf("view missing empty state:\n%s", view)
	}
}

func TestQuitKey(t *testing.T) {
	m := testModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q must produce a command")
	}
	if msg := cmd(); msg != (tea.QuitMsg{}) {
		t.Errorf("msg = %#v, want tea.QuitMsg", msg)
	}
}

func TestRefreshFinishedUpdatesStatus(t *testing.T) {
	m := testModel(t)
	updated, cmd := m.Update(refreshFinishedMsg{summary: manager.RefreshSummary{Success: 2, Failed: 1}})

	view := updated.View()
	if !strings.Contains(view, "refreshed 2 ok, 1 failed") {
		t.Errorf("status missing from view:\n%s", view)
	}
	if cmd == nil {
		t.Error("a finished refresh must trigger an account reload")
	}
}

func TestConfigReloadSwitchesCurrency(t *testing.T) {
	m := testModel(t)

	cfg := config.DefaultConfig()
	cfg.Currency = "CNY"
	cfg.DefaultExchangeRate = 7.0

	updated, _ := m.Update(ConfigReloadedMsg(cfg))
	updated, _ = updated.(Model).Update(accountsLoadedMsg{demoAccount()})

	if view := updated.View(); !strings.Contains(view, "¥14.00") {
		t.Errorf("view missing CNY balance (2.00 × 7.0):\n%s", view)
	}
}

func TestCurrencyKeyTogglesAndPersists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	m := testModel(t)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd == nil {
		t.Fatal("c must produce a persist command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("persist failed: %#v", msg)
	}

	updated, _ = updated.(Model).Update(accountsLoadedMsg{demoAccount()})
	if view := updated.View(); !strings.Contains(view, "¥14.00") {
		t.Errorf("view missing CNY balance after toggle:\n%s", view)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Currency != "CNY" {
		t.Errorf("Currency = %q, want CNY persisted to disk", cfg.Currency)
	}

	// A second toggle goes back to USD.
	updated, cmd = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if msg := cmd(); msg != nil {
		t.Fatalf("persist failed: %#v", msg)
	}
	if view := updated.View(); !strings.Contains(view, "$2.00") {
		t.Errorf("view missing USD balance after second toggle:\n%s", view)
	}
}

func TestFormatSync(t *testing.T) {
	if got := formatSync(time.Time{}); got != "never" {
		t.Errorf("formatSync(zero) = %q", got)
	}
	if got := formatSync(time.Now().Add(-30 * time.Second)); got != "just now" {
		t.Errorf("formatSync(30s) = %q", got)
	}
	if got := formatSync(time.Now().Add(-5 * time.Minute)); got != "5m ago" {
		t.Errorf("formatSync(5m) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a very long site name", 10); len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncate(long) = %q", got)
	}
}
