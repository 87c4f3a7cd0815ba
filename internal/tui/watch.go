package tui

import (
	"context"
	"log"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/zcw199604/one-api-hub/internal/config"
)

// WatchConfig reloads the settings file whenever it changes on disk and
// sends the result to the running program. Editors replace files rather
// than writing in place, so the watch is on the parent directory.
func WatchConfig(ctx context.Context, path string, send func(tea.Msg)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := config.LoadFrom(path)
				if err != nil {
					log.Printf("[tui] reloading settings: %v", err)
					continue
				}
				send(ConfigReloadedMsg(cfg))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[tui] settings watcher: %v", err)
			}
		}
	}()
	return nil
}
