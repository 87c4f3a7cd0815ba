package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zcw199604/one-api-hub/internal/adapters"
	"github.com/zcw199604/one-api-hub/internal/config"
	"github.com/zcw199604/one-api-hub/internal/manager"
	"github.com/zcw199604/one-api-hub/internal/session"
	"github.com/zcw199604/one-api-hub/internal/store"
)

func main() {
	if os.Getenv("ONEAPIHUB_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	root := cobra.Command{
		Use:   "oneapihub",
		Short: "oneapihub aggregates balances and usage across OneAPI-family relay sites.",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return runDashboard(a)
		},
		SilenceUsage: true,
	}

	root.AddCommand(
		newAddCommand(),
		newListCommand(),
		newRefreshCommand(),
		newDeleteCommand(),
		newDetectCommand(),
		newTokenCommand(),
		newSessionCommand(),
		newModelsCommand(),
		newPricingCommand(),
		newVersionCommand(),
		newUpdateCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg      config.Config
	store    *store.Store
	registry *adapters.Registry
	manager  *manager.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", config.ConfigPath(), err)
	}

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = store.DefaultPath()
	}
	st, err := store.OpenStore(dbPath)
	if err != nil {
		return nil, err
	}

	sess := session.NewClient(session.WithCookieSource(cookieSource()))
	registry, err := adapters.NewWithSession(sess)
	if err != nil {
		st.Close()
		return nil, err
	}

	mgr := manager.New(registry, st,
		manager.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second))

	return &app{cfg: cfg, store: st, registry: registry, manager: mgr}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[cli] closing store: %v", err)
	}
}

// cookieSource prefers manually saved session cookies over browser stores,
// so headless machines can still authenticate cookie-based sites.
func cookieSource() func(ctx context.Context, host string) ([]*http.Cookie, error) {
	sessions, err := config.LoadSessions()
	if err != nil {
		log.Printf("[cli] loading sessions: %v", err)
	}
	return func(ctx context.Context, host string) ([]*http.Cookie, error) {
		if header, ok := sessions.Cookies[host]; ok {
			cookies, err := http.ParseCookie(header)
			if err == nil {
				return cookies, nil
			}
			log.Printf("[cli] bad saved cookie header for %s: %v", host, err)
		}
		return session.BrowserCookies(ctx, host)
	}
}
