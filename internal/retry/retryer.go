// Package retry runs hosted API operations repeatedly when they fail with a
// transient error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 2 * time.Second
	// DefaultMaxWait is the longest time the Retryer waits for a rate
	// limit to be reset.
	DefaultMaxWait = time.Minute
)

// Retryer executes a function repeatedly until it was successful, it failed
// with a non-retryable error or the maximum number of attempts was reached.
// The wait time between attempts is constant.
type Retryer struct {
	logger      *zap.Logger
	maxAttempts uint
	interval    time.Duration
	maxWait     time.Duration
	isRetryable func(error) bool
}

type Option func(*Retryer)

// WithMaxAttempts sets the number of times an operation is executed at
// most. Values <1 are treated as 1.
func WithMaxAttempts(n uint) Option {
	return func(r *Retryer) {
		r.maxAttempts = n
	}
}

// WithInterval sets the wait time between 2 attempts.
func WithInterval(d time.Duration) Option {
	return func(r *Retryer) {
		r.interval = d
	}
}

// WithMaxWait sets the longest time that is waited for the retry time of a
// mergeerr.RetryableError. Operations that can not be retried earlier fail
// immediately.
func WithMaxWait(d time.Duration) Option {
	return func(r *Retryer) {
		r.maxWait = d
	}
}

// WithClassifier replaces the predicate that decides if an error is
// transient. The default is IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(r *Retryer) {
		r.isRetryable = fn
	}
}

func New(opts ...Option) *Retryer {
	r := Retryer{
		logger:      zap.L().Named("retryer"),
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		maxWait:     DefaultMaxWait,
		isRetryable: IsRetryable,
	}

	for _, o := range opts {
		o(&r)
	}

	if r.maxAttempts == 0 {
		r.maxAttempts = 1
	}

	return &r
}

// IsRetryable returns true if err wraps a mergeerr.RetryableError.
func IsRetryable(err error) bool {
	var retryErr *mergeerr.RetryableError
	return errors.As(err, &retryErr)
}

// Run executes fn until it was successful, it returned an error that is not
// retryable, the maximum number of attempts was reached or ctx was
// cancelled. The error of the last attempt is returned.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	logger := r.logger.With(logF...)

	// WithMaxRetries(b, 0) retries forever
	var b backoff.BackOff = &backoff.StopBackOff{}
	if r.maxAttempts > 1 {
		b = backoff.WithMaxRetries(
			backoff.NewConstantBackOff(r.interval),
			uint64(r.maxAttempts-1),
		)
	}
	bo := backoff.WithContext(b, ctx)

	op := func() error {
		tryCnt++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}

		if !r.isRetryable(err) {
			logger.Debug(
				"operation failed, not retryable",
				logfields.Event("operation_failed"),
				zap.Uint("try_count", tryCnt),
				zap.Error(err),
			)

			return backoff.Permanent(err)
		}

		if tryCnt < r.maxAttempts {
			if err := r.waitUntilRetryable(ctx, err); err != nil {
				return backoff.Permanent(err)
			}
		}

		return err
	}

	notify := func(err error, retryIn time.Duration) {
		logger.Info(
			"operation failed, retry scheduled",
			logfields.Event("operation_retry_scheduled"),
			zap.Uint("try_count", tryCnt),
			zap.Uint("max_attempts", r.maxAttempts),
			zap.Duration("retry_in", retryIn),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, bo, notify)
	if err != nil && tryCnt == r.maxAttempts && r.isRetryable(err) {
		logger.Warn(
			"giving up retrying operation, maximum attempts reached",
			logfields.Event("operation_retries_exhausted"),
			zap.Uint("try_count", tryCnt),
			zap.Error(err),
		)
	}

	return err
}

// waitUntilRetryable blocks until the retry time of err minus the constant
// interval is reached. It returns an error if the wait time exceeds
// maxWait or ctx is cancelled.
func (r *Retryer) waitUntilRetryable(ctx context.Context, err error) error {
	retryErr, ok := mergeerr.AsRetryable(err)
	if !ok {
		return nil
	}

	wait := retryErr.WaitTime(time.Now()) - r.interval
	if wait <= 0 {
		return nil
	}

	if wait > r.maxWait {
		return fmt.Errorf("operation can not be retried before %s: %w", retryErr.After.Format(time.RFC3339), err)
	}

	r.logger.Info(
		"waiting for rate limit reset",
		logfields.Event("rate_limit_wait"),
		zap.Duration("wait", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetries runs fn via r.Run and returns its result.
func WithRetries[T any](ctx context.Context, r *Retryer, fn func(context.Context) (T, error), logF ...zap.Field) (T, error) {
	var result T

	err := r.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}, logF)

	return result, err
}
