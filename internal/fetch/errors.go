package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted wraps the last transient failure once every attempt is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrCircuitOpen is returned without touching the network while a source's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ClientError is a non-retryable 4xx response (anything but 429).
type ClientError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// TransientError is a retryable failure: a 5xx or 429 response, or a network error.
type TransientError struct {
	StatusCode int // zero for network errors
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient is the default retryability predicate.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
