package core

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// AuthKindError reports credentials whose auth variant does not match what
// the adapter requires. It is always raised before any network call.
type AuthKindError struct {
	AdapterID string
	Required  AuthKind
	Got       AuthKind
}

func (e *AuthKindError) Error() string {
	return fmt.Sprintf("%s: requires %q credentials, got %q", e.AdapterID, e.Required, e.Got)
}

// HTTPStatusError reports a non-2xx response from a site endpoint.
type HTTPStatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
}

// CapabilityError reports an operation invoked on an adapter that does not
// support it. Raised by AssertCapability; always catchable by the caller.
type CapabilityError struct {
	AdapterID  string
	Capability Capability
}

func (e *CapabilityError) Error() string {
	if e.AdapterID == "" {
		return fmt.Sprintf("no adapter available for capability %q", e.Capability)
	}
	return fmt.Sprintf("adapter %q does not support capability %q", e.AdapterID, e.Capability)
}

// IsCapabilityError reports whether err wraps a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

// ClassifyHealth maps a refresh failure onto the account health status:
// transport-level failures are "error", non-2xx responses are "warning",
// anything else is "unknown". A nil error means the refresh succeeded.
func ClassifyHealth(err error) HealthStatus {
	if err == nil {
		return HealthHealthy
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return HealthWarning
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return HealthError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return HealthError
	}
	return HealthUnknown
}
