package repository

import (
	"context"
	"time"
)

const (
	defaultTxAttempts = 3
	defaultTxTimeout  = 10 * time.Second
	retryBaseDelay    = 20 * time.Millisecond
)

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts sets how many times a transaction is run when it fails with a retryable error.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout bounds how long a single transaction may run.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// RunTransaction executes run with retry on write-write conflicts.
//
// Caller cancellation is only honoured before the first attempt and between attempts; an
// attempt in flight runs on a detached context bounded by the timeout so that it always ends
// in a commit or a rollback.
func RunTransaction(ctx context.Context, run func(ctx context.Context) error, opts ...TxOption) error {
	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var err error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = runAttempt(ctx, cfg.timeout, run)
		if !IsRetryable(err) || attempt == cfg.attempts {
			return err
		}

		timer := time.NewTimer(time.Duration(attempt) * retryBaseDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, run func(ctx context.Context) error) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return run(txCtx)
}
