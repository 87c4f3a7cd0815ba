package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sessions holds manually supplied cookie headers, keyed by site domain.
// They back up the browser cookie stores on headless machines where no
// browser profile exists.
type Sessions struct {
	Cookies map[string]string `json:"cookies"` // domain → raw Cookie header
}

// sessMu guards read-modify-write cycles on the sessions file.
var sessMu sync.Mutex

func SessionsPath() string {
	return filepath.Join(ConfigDir(), "sessions.json")
}

func LoadSessions() (Sessions, error) {
	return LoadSessionsFrom(SessionsPath())
}

func LoadSessionsFrom(path string) (Sessions, error) {
	sessions := Sessions{Cookies: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessions, nil
		}
		return sessions, fmt.Errorf("reading sessions: %w", err)
	}

	if err := json.Unmarshal(data, &sessions); err != nil {
		return Sessions{Cookies: make(map[string]string)}, fmt.Errorf("parsing sessions %s: %w", path, err)
	}

	if sessions.Cookies == nil {
		sessions.Cookies = make(map[string]string)
	}

	return sessions, nil
}

func SaveSessionCookie(domain, cookieHeader string) error {
	return SaveSessionCookieTo(SessionsPath(), domain, cookieHeader)
}

func SaveSessionCookieTo(path, domain, cookieHeader string) error {
	sessMu.Lock()
	defer sessMu.Unlock()

	sessions, err := LoadSessionsFrom(path)
	if err != nil {
		sessions = Sessions{Cookies: make(map[string]string)}
	}

	sessions.Cookies[domain] = cookieHeader

	return writeSessions(path, sessions)
}

func DeleteSessionCookie(domain string) error {
	return DeleteSessionCookieFrom(SessionsPath(), domain)
}

func DeleteSessionCookieFrom(path, domain string) error {
	sessMu.Lock()
	defer sessMu.Unlock()

	sessions, err := LoadSessionsFrom(path)
	if err != nil {
		return err
	}

	delete(sessions.Cookies, domain)

	return writeSessions(path, sessions)
}

func writeSessions(path string, sessions Sessions) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sessions dir: %w", err)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}
	data = append(data, '\n')

	// Cookie headers are credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing sessions: %w", err)
	}
	return nil
}
