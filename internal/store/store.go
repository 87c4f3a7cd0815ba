// Package store persists site accounts in a local SQLite database.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zcw199604/one-api-hub/internal/core"
)

// AccountStore is the persistence contract the account manager depends on.
type AccountStore interface {
	GetAllAccounts(ctx context.Context) ([]core.SiteAccount, error)
	GetAccountByID(ctx context.Context, id string) (*core.SiteAccount, error)
	AddAccount(ctx context.Context, account *core.SiteAccount) error
	UpdateAccount(ctx context.Context, account *core.SiteAccount) error
	// UpdateAccountHealth touches only the health/timestamp columns so a
	// failed refresh cannot clobber previously known-good balance data.
	UpdateAccountHealth(ctx context.Context, id string, status core.HealthStatus, syncTime time.Time) error
	DeleteAccount(ctx context.Context, id string) error
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ AccountStore = (*Store)(nil)

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "oneapihub", "accounts.db")
}

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening DB: %w", err)
	}

	s := NewStore(db)
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS site_accounts (
			id TEXT PRIMARY KEY,
			site_name TEXT NOT NULL,
			site_url TEXT NOT NULL,
			site_type TEXT NOT NULL,
			adapter_config TEXT NOT NULL DEFAULT '{}',
			health_status TEXT NOT NULL DEFAULT 'unknown',
			exchange_rate REAL NOT NULL DEFAULT 0,
			account_info TEXT NOT NULL DEFAULT '{}',
			last_sync_time TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_site_accounts_site_type ON site_accounts(site_type);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: initializing schema: %w", err)
		}
	}
	return nil
}

const accountColumns = `id, site_name, site_url, site_type, adapter_config, health_status,
	exchange_rate, account_info, last_sync_time, created_at, updated_at`

func (s *Store) GetAllAccounts(ctx context.Context) ([]core.SiteAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM site_accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.SiteAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*core.SiteAccount, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM site_accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) AddAccount(ctx context.Context, account *core.SiteAccount) error {
	if account.ID == "" {
		account.ID = newID()
	}
	now := s.now()
	account.CreatedAt = now
	account.UpdatedAt = now

	configJSON, infoJSON, err := encodeAccount(account)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.SiteName, account.SiteURL, account.SiteType,
		configJSON, string(account.HealthStatus), account.ExchangeRate, infoJSON,
		formatTime(account.LastSyncTime), formatTime(account.CreatedAt), formatTime(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: inserting account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *core.SiteAccount) error {
	account.UpdatedAt = s.now()

	configJSON, infoJSON, err := encodeAccount(account)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE site_accounts SET site_name = ?, site_url = ?, site_type = ?, adapter_config = ?,
			health_status = ?, exchange_rate = ?, account_info = ?, last_sync_time = ?, updated_at = ?
		 WHERE id = ?`,
		account.SiteName, account.SiteURL, account.SiteType, configJSON,
		string(account.HealthStatus), account.ExchangeRate, infoJSON,
		formatTime(account.LastSyncTime), formatTime(account.UpdatedAt), account.ID,
	)
	if err != nil {
		return fmt.Errorf("store: updating account %s: %w", account.ID, err)
	}
	return requireRow(result, account.ID)
}

func (s *Store) UpdateAccountHealth(ctx context.Context, id string, status core.HealthStatus, syncTime time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE site_accounts SET health_status = ?, last_sync_time = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(syncTime), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("store: updating health for %s: %w", id, err)
	}
	return requireRow(result, id)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM site_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting account %s: %w", id, err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: checking rows for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("store: account %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.SiteAccount, error) {
	var account core.SiteAccount
	var configJSON, infoJSON, healthStatus string
	var lastSync, createdAt, updatedAt sql.NullString
	err := row.Scan(
		&account.ID, &account.SiteName, &account.SiteURL, &account.SiteType,
		&configJSON, &healthStatus, &account.ExchangeRate, &infoJSON,
		&lastSync, &createdAt, &updatedAt,
	)
	if err != nil {
		return core.SiteAccount{}, err
	}

	account.HealthStatus = core.HealthStatus(healthStatus)
	if configJSON != "" && configJSON != "{}" {
		if err := json.Unmarshal([]byte(configJSON), &account.AdapterConfig); err != nil {
			return core.SiteAccount{}, fmt.Errorf("store: decoding adapter_config for %s: %w", account.ID, err)
		}
	}
	if infoJSON != "" {
		if err := json.Unmarshal([]byte(infoJSON), &account.AccountInfo); err != nil {
			return core.SiteAccount{}, fmt.Errorf("store: decoding account_info for %s: %w", account.ID, err)
		}
	}
	account.LastSyncTime = parseTime(lastSync)
	account.CreatedAt = parseTime(createdAt)
	account.UpdatedAt = parseTime(updatedAt)
	return account, nil
}

func encodeAccount(account *core.SiteAccount) (configJSON, infoJSON string, err error) {
	config := account.AdapterConfig
	if config == nil {
		config = map[string]string{}
	}
	configBytes, err := json.Marshal(config)
	if err != nil {
		return "", "", fmt.Errorf("store: encoding adapter_config: %w", err)
	}
	infoBytes, err := json.Marshal(account.AccountInfo)
	if err != nil {
		return "", "", fmt.Errorf("store: encoding account_info: %w", err)
	}
	return string(configBytes), string(infoBytes), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func newID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("acct-%d", time.Now().UnixNano())
	}
	return "acct-" + hex.EncodeToString(buf)
}
