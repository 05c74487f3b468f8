package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
	APIError   *APIError
}

func (e *StatusError) Error() string {
	if e.APIError != nil && e.APIError.Message != "" {
		return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.APIError.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.APIError == nil {
		return nil
	}
	return e.APIError
}

// RateLimited reports whether the provider throttled the request.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err carries a 429 from the provider.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RateLimited()
	}
	return false
}
