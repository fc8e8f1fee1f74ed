package pos

import "fmt"

// UpstreamAuthError means the provider rejected the credentials. Never
// retried: the credentials are likely invalid or revoked.
type UpstreamAuthError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("POS provider rejected authentication (HTTP %d): %s", e.StatusCode, e.Body)
}

// TransientNetworkError wraps a transport failure or provider 5xx. Retryable
// at the page level with backoff, and at the job level via the attempts
// counter.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient POS provider error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}
