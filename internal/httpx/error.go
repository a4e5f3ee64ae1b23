package httpx

import (
	"fmt"
	"io"
	"net/http"
)

// HTTPError represents a non-2xx HTTP response returned by the database
// service. The body is drained and closed before the error is returned.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
	Header     http.Header
}

func newHTTPError(resp *http.Response) *HTTPError {
	defer closeBody(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		body = nil
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		Header:     resp.Header.Clone(),
	}
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
	}
	return fmt.Sprintf("http error: status=%d", e.StatusCode)
}

// Retryable reports whether the response indicates a transient condition.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		(e.StatusCode >= 500 && e.StatusCode <= 599)
}
