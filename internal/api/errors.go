// Package api provides the authenticated HTTP transport for the Bongo Cloud
// REST API: bearer token attachment, refresh-on-expiry, response-header token
// rotation, and typed endpoint wrappers.
package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport-level failure classification.
// Use errors.Is(err, api.ErrServer) to check.
var (
	// ErrUnauthenticated means no usable access token could be obtained
	// after a refresh attempt.
	ErrUnauthenticated = errors.New("api: not authenticated")

	// ErrServer marks an HTTP 5xx response. Server errors are surfaced as
	// errors rather than envelopes because no structured body can be trusted.
	ErrServer = errors.New("api: server error")

	// ErrTransport marks a network-level failure (connection refused, reset,
	// canceled request).
	ErrTransport = errors.New("api: transport error")
)

// Error wraps a sentinel with the HTTP status and the raw response body
// for diagnostics.
type Error struct {
	Status  int
	Message string
	Err     error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
	}

	return fmt.Sprintf("api: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
