// Package config reads and writes the app settings and manual session
// overrides under the user config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

type UIConfig struct {
	RefreshIntervalSeconds int     `json:"refresh_interval_seconds"`
	LowBalanceUSD          float64 `json:"low_balance_usd"` // highlight accounts below this
}

type Config struct {
	UI                    UIConfig `json:"ui"`
	Currency              string   `json:"currency"` // "USD" or "CNY"
	DefaultExchangeRate   float64  `json:"default_exchange_rate"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"`
	DatabasePath          string   `json:"database_path,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Currency:              "USD",
		DefaultExchangeRate:   7.0,
		RequestTimeoutSeconds: 30,
		UI: UIConfig{
			RefreshIntervalSeconds: 60,
			LowBalanceUSD:          1.0,
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "oneapihub")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "oneapihub")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.UI.RefreshIntervalSeconds <= 0 {
		cfg.UI.RefreshIntervalSeconds = 60
	}
	if cfg.UI.LowBalanceUSD < 0 {
		cfg.UI.LowBalanceUSD = 0
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	if cfg.Currency != "USD" && cfg.Currency != "CNY" {
		cfg.Currency = "USD"
	}
	if cfg.DefaultExchangeRate <= 0 {
		cfg.DefaultExchangeRate = DefaultConfig().DefaultExchangeRate
	}

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveCurrency persists the display currency into the config file
// (read-modify-write).
func SaveCurrency(currency string) error {
	return SaveCurrencyTo(ConfigPath(), currency)
}

func SaveCurrencyTo(path, currency string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.Currency = currency
	return SaveTo(path, cfg)
}
