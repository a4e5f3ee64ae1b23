package soda

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nucstore/nucstore_sdk_go/internal/httpx"
)

var (
	// ErrConfiguration indicates missing or unusable client configuration,
	// typically unset credential environment variables.
	ErrConfiguration = errors.New("soda: configuration error")
	// ErrAuth indicates the service rejected the supplied credentials.
	ErrAuth = errors.New("soda: authentication rejected")
	// ErrNotFound indicates an absent collection, document or metadata.
	ErrNotFound = errors.New("soda: not found")
	// ErrConflict indicates a duplicate collection or metadata document.
	ErrConflict = errors.New("soda: conflict")
	// ErrValidation indicates a malformed document rejected at the boundary.
	ErrValidation = errors.New("soda: validation failed")
	// ErrTransient indicates a network or server failure the caller may
	// retry. The client never retries automatically unless a retry policy
	// was configured explicitly.
	ErrTransient = errors.New("soda: transient failure")
)

// wrapTransport maps transport-level failures onto the error taxonomy.
// Context cancellation passes through untouched so callers can distinguish
// their own deadlines from service failures.
func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if httpErr.Retryable() {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return err
	}
	// URL errors, refused connections, timeouts.
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
