package core

import (
	"math"
	"testing"
	"time"
)

func TestTodayRange_LocalDayBoundaries(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, loc)

	window := TodayRange(now)

	wantStart := time.Date(2026, 3, 14, 0, 0, 0, 0, loc).Unix()
	if window.Start != wantStart {
		t.Errorf("Start = %d, want %d", window.Start, wantStart)
	}
	// End falls inside the same local day, one millisecond before midnight.
	if window.End != wantStart+24*3600-1 {
		t.Errorf("End = %d, want %d", window.End, wantStart+24*3600-1)
	}
}

func TestNewBalanceInfo_QuotaPointsConversion(t *testing.T) {
	desc := &BalanceDescriptor{RawUnit: "quota_points", ConversionFactor: 500000}

	info := NewBalanceInfo(1_000_000, desc)

	if info.BalanceUSD != 2.00 {
		t.Errorf("BalanceUSD = %v, want 2.00", info.BalanceUSD)
	}
	if info.RawUnit != "quota_points" {
		t.Errorf("RawUnit = %q, want quota_points", info.RawUnit)
	}
}

func TestNewBalanceInfo_MicroUSDConversion(t *testing.T) {
	desc := &BalanceDescriptor{RawUnit: "micro_usd", ConversionFactor: 1_000_000}

	info := NewBalanceInfo(2_500_000, desc)

	if info.BalanceUSD != 2.50 {
		t.Errorf("BalanceUSD = %v, want 2.50", info.BalanceUSD)
	}
}

func TestNewBalanceInfo_NilDescriptor(t *testing.T) {
	info := NewBalanceInfo(42, nil)
	if info.BalanceUSD != 0 || info.RawUnit != "" {
		t.Errorf("nil descriptor should leave projection empty, got %+v", info)
	}
}

func TestMetadataHas(t *testing.T) {
	meta := AdapterMetadata{Capabilities: []Capability{CapabilityBalance, CapabilityAutoDetect}}

	if !meta.Has(CapabilityBalance) {
		t.Error("Has(balance) = false, want true")
	}
	if meta.Has(CapabilityTokenManagement) {
		t.Error("Has(token_management) = true, want false")
	}
}

func TestSiteAccountBalanceProjections(t *testing.T) {
	acct := SiteAccount{
		ExchangeRate: 7.2,
		AccountInfo:  AccountInfo{Quota: 1_000_000},
	}
	desc := &BalanceDescriptor{RawUnit: "quota_points", ConversionFactor: 500000}

	if usd := acct.BalanceUSD(desc); usd != 2.00 {
		t.Errorf("BalanceUSD = %v, want 2.00", usd)
	}
	if cny := acct.BalanceCNY(desc); math.Abs(cny-14.40) > 1e-9 {
		t.Errorf("BalanceCNY = %v, want 14.40", cny)
	}

	acct.ExchangeRate = 0
	if cny := acct.BalanceCNY(desc); cny != 0 {
		t.Errorf("BalanceCNY with no rate = %v, want 0", cny)
	}
}
