// Package session performs cookie-authenticated JSON fetches against relay
// sites. The direct path sends the request through an http.Client whose
// cookie jar is seeded from the user's browser profiles (via kooky); when
// that fails, the request is delegated to an external session-context
// executor under a bounded timeout. The fallback is the exceptional path,
// not the default.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register all cookie-store finders

	"github.com/zcw199604/one-api-hub/internal/core"
)

const (
	defaultRequestTimeout  = 15 * time.Second
	defaultFallbackTimeout = 30 * time.Second
	maxResponseBytes       = 4 << 20
)

// Executor is the external session-context collaborator: it resolves a URL
// inside a first-party context where the site's HttpOnly/SameSite cookies
// apply. Implementations own whatever window/process lifecycle they need.
type Executor interface {
	FetchJSON(ctx context.Context, fetchURL string) ([]byte, error)
}

// Client fetches JSON with browser-session cookies attached.
type Client struct {
	httpClient      *http.Client
	executor        Executor
	fallbackTimeout time.Duration
	cookieSource    func(ctx context.Context, host string) ([]*http.Cookie, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the direct-path HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithExecutor installs the fallback session-context executor.
func WithExecutor(exec Executor) Option {
	return func(c *Client) { c.executor = exec }
}

// WithFallbackTimeout bounds how long a fallback fetch may run.
func WithFallbackTimeout(d time.Duration) Option {
	return func(c *Client) { c.fallbackTimeout = d }
}

// WithCookieSource replaces the browser cookie lookup (tests).
func WithCookieSource(src func(ctx context.Context, host string) ([]*http.Cookie, error)) Option {
	return func(c *Client) { c.cookieSource = src }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: defaultRequestTimeout},
		fallbackTimeout: defaultFallbackTimeout,
		cookieSource:    BrowserCookies,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON attempts a direct cookie-authenticated GET; on any failure it
// delegates to the configured executor. Both paths return the raw body for
// the caller to decode.
func (c *Client) FetchJSON(ctx context.Context, fetchURL string) ([]byte, error) {
	body, directErr := c.fetchDirect(ctx, fetchURL)
	if directErr == nil {
		return body, nil
	}

	if c.executor == nil {
		return nil, directErr
	}

	log.Printf("[session] direct fetch of %s failed (%v), delegating to session executor", fetchURL, directErr)

	execCtx, cancel := context.WithTimeout(ctx, c.fallbackTimeout)
	defer cancel()

	body, execErr := c.executor.FetchJSON(execCtx, fetchURL)
	if execErr != nil {
		return nil, fmt.Errorf("session: direct fetch failed (%v); executor fallback failed: %w", directErr, execErr)
	}
	return body, nil
}

func (c *Client) fetchDirect(ctx context.Context, fetchURL string) ([]byte, error) {
	parsed, err := url.Parse(fetchURL)
	if err != nil {
		return nil, fmt.Errorf("session: parsing %s: %w", fetchURL, err)
	}

	client := c.httpClient
	if cookies, err := c.cookieSource(ctx, parsed.Hostname()); err != nil {
		log.Printf("[session] no browser cookies for %s: %v", parsed.Hostname(), err)
	} else if len(cookies) > 0 {
		jar, jarErr := cookiejar.New(nil)
		if jarErr == nil {
			jar.SetCookies(parsed, cookies)
			clone := *client
			clone.Jar = jar
			client = &clone
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("session: creating request for %s: %w", fetchURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: fetching %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", fetchURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.HTTPStatusError{Endpoint: fetchURL, StatusCode: resp.StatusCode}
	}
	return body, nil
}

// BrowserCookies reads cookies for host (and its parent domain) from every
// browser cookie store kooky can find on the workstation.
func BrowserCookies(ctx context.Context, host string) ([]*http.Cookie, error) {
	domain := baseDomain(host)
	if domain == "" {
		return nil, fmt.Errorf("session: no cookie domain for host %q", host)
	}

	cookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil {
		return nil, fmt.Errorf("session: reading browser cookies for %s: %w", domain, err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cookie := c.Cookie
		out = append(out, &http.Cookie{Name: cookie.Name, Value: cookie.Value, Path: cookie.Path, Domain: cookie.Domain})
	}
	return out, nil
}

// baseDomain strips at most one subdomain label so foo.cubence.com shares
// cookies with cubence.com. IP addresses and bare hosts pass through.
func baseDomain(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
