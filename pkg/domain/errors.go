package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound           *notFoundError
	ErrStoreUnavailable         = errors.New("counter store unavailable")
	ErrLedgerUnavailable        = errors.New("ledger unavailable")
	ErrInvalidInput             = errors.New("invalid input")
	ErrWriteConfirmationTimeout = errors.New("ledger write confirmation timed out")
	ErrManualEntryProtected     = errors.New("manual block entries cannot be swept")
)

type notFoundError struct {
	EntityType string
	ID         string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.EntityType, e.ID)
}

func NewNotFoundError(entityType string, id string) error {
	return &notFoundError{
		EntityType: entityType,
		ID:         id,
	}
}

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFoundError *notFoundError
	ok := errors.As(err, &notFoundError)
	return ok
}
