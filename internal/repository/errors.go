package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleWrite means a versioned row changed between read and write.
	ErrStaleWrite = errors.New("stale write")
	// ErrStockGuard means a stock decrement would drive quantity on hand below zero.
	ErrStockGuard = errors.New("stock guard violated")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// IsRetryable reports whether a transaction failed on a write-write race and may be re-run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleWrite) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
