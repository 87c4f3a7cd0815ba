// Package tui renders the account dashboard: one row per stored account
// with balance, today's usage, and health, refreshed on an interval.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zcw199604/one-api-hub/internal/adapters"
	"github.com/zcw199604/one-api-hub/internal/config"
	"github.com/zcw199604/one-api-hub/internal/core"
	"github.com/zcw199604/one-api-hub/internal/manager"
	"github.com/zcw199604/one-api-hub/internal/store"
)

type accountsLoadedMsg []core.SiteAccount

type loadFailedMsg struct{ err error }

type refreshFinishedMsg struct {
	summary manager.RefreshSummary
	err     error
}

type tickMsg time.Time

type persistFailedMsg struct{ err error }

// ConfigReloadedMsg carries a freshly loaded settings file into the running
// dashboard; the config watcher sends it.
type ConfigReloadedMsg config.Config

type Model struct {
	cfg      config.Config
	registry *adapters.Registry
	manager  *manager.Manager
	accounts store.AccountStore

	rows       []core.SiteAccount
	status     string
	width      int
	refreshing bool
}

func NewModel(cfg config.Config, registry *adapters.Registry, mgr *manager.Manager, accounts store.AccountStore) Model {
	return Model{
		cfg:      cfg,
		registry: registry,
		manager:  mgr,
		accounts: accounts,
		status:   "loading accounts",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadAccounts(), m.tick())
}

func (m Model) loadAccounts() tea.Cmd {
	return func() tea.Msg {
		accounts, err := m.accounts.GetAllAccounts(context.Background())
		if err != nil {
			return loadFailedMsg{err: err}
		}
		return accountsLoadedMsg(accounts)
	}
}

func (m Model) refreshAll() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.manager.RefreshAllAccounts(context.Background())
		return refreshFinishedMsg{summary: summary, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	interval := time.Duration(m.cfg.UI.RefreshIntervalSeconds) * time.Second
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			m.status = "refreshing"
			return m, m.refreshAll()
		case "c":
			m.cfg.Currency = toggleCurrency(m.cfg.Currency)
			m.status = "currency: " + m.cfg.Currency
			return m, persistCurrency(m.cfg.Currency)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		if m.refreshing {
			return m, m.tick()
		}
		m.refreshing = true
		m.status = "refreshing"
		return m, tea.Batch(m.refreshAll(), m.tick())

	case refreshFinishedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.status = fmt.Sprintf("refresh failed: %v", msg.err)
			return m, m.loadAccounts()
		}
		m.status = fmt.Sprintf("refreshed %d ok, %d failed", msg.summary.Success, msg.summary.Failed)
		return m, m.loadAccounts()

	case accountsLoadedMsg:
		m.rows = msg

	case loadFailedMsg:
		m.status = fmt.Sprintf("loading accounts failed: %v", msg.err)

	case persistFailedMsg:
		m.status = fmt.Sprintf("saving settings failed: %v", msg.err)

	case ConfigReloadedMsg:
		m.cfg = config.Config(msg)
		m.status = "settings reloaded"
	}

	return m, nil
}

const rowFormat = "%-20s %-10s %-14s %12s %12s %8s %-8s %s"

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("One API Hub"))
	b.WriteString("\n\n")

	header := fmt.Sprintf(rowFormat, "SITE", "TYPE", "USER", "BALANCE", "TODAY", "REQS", "HEALTH", "SYNCED")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(rowStyle.Render("no accounts yet; add one with `oneapihub add`"))
		b.WriteString("\n")
	}

	for _, account := range m.rows {
		b.WriteString(m.renderRow(account))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(m.status + "  ·  r refresh · c currency · q quit"))
	return b.String()
}

func (m Model) renderRow(account core.SiteAccount) string {
	desc := m.balanceDescriptor(account.SiteType)

	balance, low := m.formatBalance(account, desc)
	today := formatMoney(convertRaw(account.AccountInfo.TodayQuota, desc), "$")

	left := fmt.Sprintf("%-20s %-10s %-14s %12s %12s %8s ",
		truncate(account.SiteName, 20),
		truncate(account.SiteType, 10),
		truncate(account.AccountInfo.Username, 14),
		balance,
		today,
		fmt.Sprintf("%d", account.AccountInfo.TodayRequests),
	)

	style := rowStyle
	if low {
		style = lowBalanceStyle
	}

	// Health keeps its own color regardless of the balance highlight.
	health := healthStyleFor(string(account.HealthStatus)).Render(fmt.Sprintf("%-8s", account.HealthStatus))
	return style.Render(left) + health + " " + style.Render(formatSync(account.LastSyncTime))
}

func (m Model) balanceDescriptor(siteType string) *core.BalanceDescriptor {
	adapter := m.registry.Get(siteType)
	if adapter == nil {
		return nil
	}
	return adapter.Metadata().Balance
}

// formatBalance renders the stored balance in the configured display
// currency and reports whether it is under the low-balance threshold.
func (m Model) formatBalance(account core.SiteAccount, desc *core.BalanceDescriptor) (string, bool) {
	usd := account.BalanceUSD(desc)
	low := usd < m.cfg.UI.LowBalanceUSD

	if m.cfg.Currency == "CNY" {
		rate := account.ExchangeRate
		if rate <= 0 {
			rate = m.cfg.DefaultExchangeRate
		}
		return formatMoney(usd*rate, "¥"), low
	}
	return formatMoney(usd, "$"), low
}

func toggleCurrency(currency string) string {
	if currency == "CNY" {
		return "USD"
	}
	return "CNY"
}

// persistCurrency writes the toggled currency back to the settings file so
// the choice survives restarts.
func persistCurrency(currency string) tea.Cmd {
	return func() tea.Msg {
		if err := config.SaveCurrency(currency); err != nil {
			return persistFailedMsg{err: err}
		}
		return nil
	}
}

func convertRaw(raw float64, desc *core.BalanceDescriptor) float64 {
	if desc == nil || desc.ConversionFactor <= 0 {
		return 0
	}
	return raw / desc.ConversionFactor
}

func formatMoney(amount float64, symbol string) string {
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

func formatSync(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
