package sync

import (
	"context"
	"errors"
	"fmt"

	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/pos"
)

// Error codes recorded on failed jobs and surfaced to polling clients.
const (
	CodeConfiguration    = "CONFIGURATION_ERROR"
	CodeUpstreamAuth     = "UPSTREAM_AUTH_ERROR"
	CodeTransientNetwork = "TRANSIENT_NETWORK_ERROR"
	CodeStorage          = "STORAGE_ERROR"
	CodeTimeout          = "TIMEOUT_ERROR"
)

// storageError marks a failure of our own data store, as opposed to the
// provider's.
type storageError struct {
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("storage failure: %v", e.err)
}

func (e *storageError) Unwrap() error {
	return e.err
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return &storageError{err: err}
}

// classifyError maps a job failure onto the error taxonomy.
func classifyError(err error) string {
	var missingFields *credential.MissingCredentialFieldsError
	var authErr *pos.UpstreamAuthError
	var transientErr *pos.TransientNetworkError
	var storeErr *storageError

	switch {
	case errors.As(err, &missingFields),
		errors.Is(err, credential.ErrMalformedCiphertext),
		errors.Is(err, credential.ErrAuthenticationFailed),
		errors.Is(err, credential.ErrKeyTooShort),
		errors.Is(err, ErrNoCredentials):
		return CodeConfiguration
	case errors.As(err, &authErr):
		return CodeUpstreamAuth
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &transientErr):
		return CodeTransientNetwork
	case errors.As(err, &storeErr):
		return CodeStorage
	default:
		return CodeTransientNetwork
	}
}

// ErrNoCredentials means the tenant has never connected a POS account or has
// deactivated the connection.
var ErrNoCredentials = errors.New("no active POS credentials configured for this restaurant")
