package services

import (
	"context"
	"time"

	"decal_manager/internal/logging"
	"decal_manager/internal/repository"

	"go.uber.org/zap"
)

// Deps bundles the collaborators shared by the order engines.
type Deps struct {
	Store         repository.Store
	Locker        Locker
	Logger        *zap.Logger
	Notifier      Notifier
	StageCache    StageCache
	StageCacheTTL time.Duration
	TxOptions     []repository.TxOption
	Clock         func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = NoopNotifier{}
	}
	if d.StageCacheTTL <= 0 {
		d.StageCacheTTL = 24 * time.Hour
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) now() time.Time {
	return d.Clock().UTC()
}

func (d Deps) log(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, d.Logger)
}

// withLocks runs fn while holding the given lock keys.
func (d Deps) withLocks(ctx context.Context, keys []string, fn func() error) error {
	release, err := d.Locker.Acquire(ctx, keys...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return lockErr(err)
	}
	defer release()
	return fn()
}

// transaction runs fn in a store transaction and classifies the failure.
func (d Deps) transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return storeErr(d.Store.Transaction(ctx, fn, d.TxOptions...))
}

type lockError struct{ err error }

func (e lockError) Error() string { return "lock unavailable: " + e.err.Error() }
func (e lockError) Unwrap() error { return ErrConcurrentUpdate }

func lockErr(err error) error {
	return lockError{err: err}
}
