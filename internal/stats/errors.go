package stats

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure outcomes a refresh cycle can surface to the host.
var (
	// ErrAuthRequired means the account's credentials are invalid or revoked.
	// The host must prompt for re-authorization; retrying is pointless.
	ErrAuthRequired = errors.New("spotify reauthorization required")

	// ErrUpdateFailed is a transient remote or network failure. The previous
	// snapshot stays authoritative and the next tick retries naturally.
	ErrUpdateFailed = errors.New("spotify update failed")
)

// APIError is a remote API failure carrying the HTTP status the service
// returned. The spotify package maps transport errors onto it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify api error (status %d): %s", e.Status, e.Message)
}

// classify maps an error from the session provider or a bucket fetch onto
// the cycle-level taxonomy. A 401 from the API means the bearer token is no
// longer honored; everything else not already classified is transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrUpdateFailed) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}
