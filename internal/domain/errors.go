package domain

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	// ErrInvalidIdentifier indicates a malformed post reference.
	ErrInvalidIdentifier = errors.New("invalid post identifier")
)

// Lookup errors. These are absorbed into placeholders wherever possible.
var (
	// ErrNotFound indicates that nothing matched.
	ErrNotFound = errors.New("not found")

	// ErrNoSurface indicates there is no active rendering surface to work on.
	ErrNoSurface = fmt.Errorf("no active surface: %w", ErrNotFound)

	// ErrSurfaceAccess indicates the surface exists but could not be read.
	ErrSurfaceAccess = errors.New("surface access failed")
)

// Remote service errors
var (
	// ErrTimeout indicates the outbound call exceeded its bound.
	ErrTimeout = errors.New("remote call timed out")

	// ErrRemoteService indicates a non-success status or an unusable reply.
	ErrRemoteService = errors.New("remote service error")

	// ErrRetryExhausted is returned once the retry cap is hit.
	ErrRetryExhausted = errors.New("retries exhausted")
)

// Scanner errors
var (
	// ErrScanInProgress rejects a scan while another one is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// RemoteServiceError carries the status of a failed remote call.
type RemoteServiceError struct {
	StatusCode int
	Body       string
}

func (e *RemoteServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote service returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrRemoteService.
func (e *RemoteServiceError) Unwrap() error {
	return ErrRemoteService
}
