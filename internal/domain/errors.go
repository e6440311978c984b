package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSymbolNotFound     = errors.New("stock symbol not found")
	ErrInsufficientShares = errors.New("insufficient shares to sell")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrPersistence        = errors.New("persistence failure")

	ErrInvalidUsername = errors.New("username is required")
	ErrUsernameTaken   = errors.New("username already exists")
)

// PersistenceError wraps a storage failure. errors.Is(err, ErrPersistence) holds for it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

const (
	KindUserNotFound       = "UserNotFound"
	KindSymbolNotFound     = "SymbolNotFound"
	KindInsufficientShares = "InsufficientShares"
	KindInvalidQuantity    = "InvalidQuantity"
	KindPersistenceFailure = "PersistenceFailure"
	KindInvalidUsername    = "InvalidUsername"
	KindUsernameTaken      = "UsernameTaken"
	KindUnknown            = "Unknown"
)

// ErrorKind maps an engine error to a stable name for transports.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrSymbolNotFound):
		return KindSymbolNotFound
	case errors.Is(err, ErrInsufficientShares):
		return KindInsufficientShares
	case errors.Is(err, ErrInvalidUsername):
		return KindInvalidUsername
	case errors.Is(err, ErrUsernameTaken):
		return KindUsernameTaken
	case errors.Is(err, ErrPersistence):
		return KindPersistenceFailure
	default:
		return KindUnknown
	}
}
