package install

import (
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sfarHD14/cmdstanpy/internal/backoff"
)

const (
	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 5 * time.Second
	retryMaxRetries      = 3
	retryBackoffFactor   = 2.0
)

// newRetryPolicy creates the standard retry policy for release API
// calls: exponential backoff with full jitter.
func newRetryPolicy() backoff.RetryPolicy {
	base := backoff.NewExponentialBackoffPolicy(retryInitialInterval)
	base.BackoffFactor = retryBackoffFactor
	base.MaxInterval = retryMaxInterval
	base.MaxRetries = retryMaxRetries
	return backoff.WithJitter(base, backoff.FullJitter)
}

// httpError carries an HTTP status code for retry classification.
type httpError struct {
	statusCode int
	message    string
}

func (e *httpError) Error() string { return e.message }

// isRetriableError classifies errors for retry decisions:
//   - httpError 429, 500-504 → retry
//   - httpError other (4xx) → never retry
//   - everything else (network, io) → retry
func isRetriableError(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		return he.statusCode == 429 || (he.statusCode >= 500 && he.statusCode <= 504)
	}
	return true
}

// classifyResponse maps a non-2xx response to an httpError.
func classifyResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &httpError{
		statusCode: resp.StatusCode(),
		message:    "unexpected status " + resp.Status(),
	}
}
