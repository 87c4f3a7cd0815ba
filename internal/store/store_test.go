package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zcw199604/one-api-hub/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAccount() *core.SiteAccount {
	return &core.SiteAccount{
		SiteName:     "My Relay",
		SiteURL:      "https://relay.example.com",
		SiteType:     "new-api",
		HealthStatus: core.HealthHealthy,
		ExchangeRate: 7.2,
		AccountInfo: core.AccountInfo{
			Username:    "alice",
			UserID:      12,
			AccessToken: "sk-abc",
			Quota:       1_000_000,
		},
		AdapterConfig: map[string]string{"note": "test"},
	}
}

func TestAddAndGetAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	account := sampleAccount()
	if err := s.AddAccount(ctx, account); err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}
	if account.ID == "" {
		t.Fatal("AddAccount() must assign an id")
	}

	got, err := s.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID() error: %v", err)
	}
	if got == nil {
		t.Fatal("account not found after insert")
	}
	if got.SiteName != "My Relay" || got.SiteType != "new-api" {
		t.Errorf("got %+v", got)
	}
	if got.AccountInfo.Username != "alice" || got.AccountInfo.Quota != 1_000_000 {
		t.Errorf("AccountInfo = %+v", got.AccountInfo)
	}
	if got.AdapterConfig["note"] != "test" {
		t.Errorf("AdapterConfig = %+v", got.AdapterConfig)
	}
	if got.ExchangeRate != 7.2 {
		t.Errorf("ExchangeRate = %v", got.ExchangeRate)
	}
}

func TestGetAccountByID_Missing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetAccountByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetAccountByID() error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for an unknown id", got)
	}
}

func TestUpdateAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	account := sampleAccount()
	if err := s.AddAccount(ctx, account); err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}

	account.AccountInfo.Quota = 500_000
	account.HealthStatus = core.HealthWarning
	if err := s.UpdateAccount(ctx, account); err != nil {
		t.Fatalf("UpdateAccount() error: %v", err)
	}

	got, err := s.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID() error: %v", err)
	}
	if got.AccountInfo.Quota != 500_000 {
		t.Errorf("Quota = %v, want 500000", got.AccountInfo.Quota)
	}
	if got.HealthStatus != core.HealthWarning {
		t.Errorf("HealthStatus = %q, want warning", got.HealthStatus)
	}
}

func TestUpdateAccountHealth_LeavesDataAlone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	account := sampleAccount()
	if err := s.AddAccount(ctx, account); err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}

	syncTime := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpdateAccountHealth(ctx, account.ID, core.HealthError, syncTime); err != nil {
		t.Fatalf("UpdateAccountHealth() error: %v", err)
	}

	got, err := s.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID() error: %v", err)
	}
	if got.HealthStatus != core.HealthError {
		t.Errorf("HealthStatus = %q, want error", got.HealthStatus)
	}
	if got.AccountInfo.Quota != 1_000_000 {
		t.Errorf("Quota = %v, stale balance must survive a health-only update", got.AccountInfo.Quota)
	}
	if !got.LastSyncTime.Equal(syncTime) {
		t.Errorf("LastSyncTime = %v, want %v", got.LastSyncTime, syncTime)
	}
}

func TestDeleteAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	account := sampleAccount()
	if err := s.AddAccount(ctx, account); err != nil {
		t.Fatalf("AddAccount() error: %v", err)
	}
	if err := s.DeleteAccount(ctx, account.ID); err != nil {
		t.Fatalf("DeleteAccount() error: %v", err)
	}
	if err := s.DeleteAccount(ctx, account.ID); err == nil {
		t.Error("second delete should report not found")
	}

	accounts, err := s.GetAllAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAllAccounts() error: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("accounts = %+v, want empty", accounts)
	}
}

func TestGetAllAccounts_Ordering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Hour
		s.now = func() time.Time { return base.Add(offset) }
		account := sampleAccount()
		account.SiteName = string(rune('a' + i))
		if err := s.AddAccount(ctx, account); err != nil {
			t.Fatalf("AddAccount() error: %v", err)
		}
	}

	accounts, err := s.GetAllAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAllAccounts() error: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("len = %d, want 3", len(accounts))
	}
	for i, want := range []string{"a", "b", "c"} {
		if accounts[i].SiteName != want {
			t.Errorf("accounts[%d].SiteName = %q, want %q", i, accounts[i].SiteName, want)
		}
	}
}
