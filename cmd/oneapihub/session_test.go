package main

import (
	"testing"

	"github.com/zcw199604/one-api-hub/internal/config"
)

func TestSessionSetAndClear(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	set := newSessionSetCommand()
	set.SetArgs([]string{"cubence.com", "session=abc"})
	if err := set.Execute(); err != nil {
		t.Fatalf("session set error: %v", err)
	}

	sessions, err := config.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions() error: %v", err)
	}
	if sessions.Cookies["cubence.com"] != "session=abc" {
		t.Errorf("Cookies = %v, want the saved header", sessions.Cookies)
	}

	clear := newSessionClearCommand()
	clear.SetArgs([]string{"cubence.com"})
	if err := clear.Execute(); err != nil {
		t.Fatalf("session clear error: %v", err)
	}

	sessions, err = config.LoadSessions()
	if err != nil {
		t.Fatalf("LoadSessions() error: %v", err)
	}
	if _, ok := sessions.Cookies["cubence.com"]; ok {
		t.Error("cleared domain still present")
	}
}

func TestSessionSetRequiresBothArgs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	set := newSessionSetCommand()
	set.SetArgs([]string{"cubence.com"})
	set.SilenceErrors = true
	set.SilenceUsage = true
	if err := set.Execute(); err == nil {
		t.Fatal("session set must require a domain and a cookie header")
	}
}
