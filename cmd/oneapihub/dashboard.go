package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zcw199604/one-api-hub/internal/config"
	"github.com/zcw199604/one-api-hub/internal/tui"
)

func runDashboard(a *app) error {
	model := tui.NewModel(a.cfg, a.registry, a.manager, a.store)
	program := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tui.WatchConfig(ctx, config.ConfigPath(), program.Send); err != nil {
		log.Printf("[cli] settings watch unavailable: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		program.Quit()
	}()

	_, err := program.Run()
	return err
}
