package services

import (
	"errors"
	"fmt"

	"decal_manager/internal/repository"
)

// Error classes. Every error returned by the engines wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	// ErrConflict is a business-rule violation; retrying the same input fails the same way.
	ErrConflict = errors.New("business rule conflict")
	// ErrConcurrentUpdate is a detected write-write race; the request may be re-issued.
	ErrConcurrentUpdate = errors.New("concurrent update, retry the request")
)

// Business-rule conflicts.
var (
	ErrInsufficientStock     = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrSlotAlreadyBooked     = fmt.Errorf("%w: technician slot already booked", ErrConflict)
	ErrIllegalTransition     = fmt.Errorf("%w: illegal stage transition", ErrConflict)
	ErrTerminalStage         = fmt.Errorf("%w: order is already at the terminal stage", ErrConflict)
	ErrWorkUnitCompleted     = fmt.Errorf("%w: completed work units cannot be removed", ErrConflict)
	ErrOrderHasCompletedWork = fmt.Errorf("%w: order has completed work units", ErrConflict)
	ErrDuplicate             = fmt.Errorf("%w: already exists", ErrConflict)
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientStockError names the product that cannot cover a request.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Unit        string
	Available   int
	Required    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (product %d): available %d %s, required %d %s, short by %d %s",
		e.ProductName, e.ProductID, e.Available, e.Unit, e.Required, e.Unit, e.Deficit(), e.Unit)
}

func (e *InsufficientStockError) Deficit() int {
	return e.Required - e.Available
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// lookupErr maps a repository lookup failure to the engine taxonomy.
func lookupErr(err error, entity string, id uint) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %d: %w", entity, id, err)
}

// storeErr classifies a failed transaction.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsRetryable(err):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	case errors.Is(err, repository.ErrDuplicate) && !errors.Is(err, ErrConflict):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
