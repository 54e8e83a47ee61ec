package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CallError reports that the external model could not be reached after the
// configured number of attempts. The pipeline degrades the affected frame
// to a warning rather than aborting the run.
type CallError struct {
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("external call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retrying wraps an Extractor with bounded exponential backoff and a
// per-attempt timeout. Transient failures (network, rate limits) are
// retried; a response that fails schema parsing is permanent, since
// re-sending the same frame is what produced it.
type Retrying struct {
	next       Extractor
	maxRetries uint64
	timeout    time.Duration

	// initialInterval is only overridden by tests to keep them fast.
	initialInterval time.Duration
}

// NewRetrying creates a retrying decorator around an extraction backend.
// maxRetries is the number of attempts after the first; timeout bounds
// each individual attempt.
func NewRetrying(next Extractor, maxRetries int, timeout time.Duration) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{
		next:            next,
		maxRetries:      uint64(maxRetries),
		timeout:         timeout,
		initialInterval: backoff.DefaultInitialInterval,
	}
}

// ExtractItems calls the wrapped backend until it succeeds, returns a
// permanent error, or the attempt budget is spent.
func (r *Retrying) ExtractItems(ctx context.Context, png []byte) ([]LineItem, error) {
	var items []LineItem
	attempts := 0

	op := func() error {
		attempts++
		attemptCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		out, err := r.next.ExtractItems(attemptCtx, png)
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				return backoff.Permanent(err)
			}
			return err
		}
		items = out
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialInterval

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxRetries), ctx))
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}
		return nil, &CallError{Attempts: attempts, Err: err}
	}
	return items, nil
}

// Close closes the wrapped extractor
func (r *Retrying) Close() error {
	return r.next.Close()
}
