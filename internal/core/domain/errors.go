package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrFileNotFound     = errors.New("source file not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrIntegrity        = errors.New("integrity violation")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsTerminalKind reports whether err must not be retried: missing or
// unparseable input will not heal on a second attempt, and an integrity
// violation is a correctness bug signal, not a transient condition.
func IsTerminalKind(err error) bool {
	return IsKind(err, ErrFileNotFound) ||
		IsKind(err, ErrInvalidInput) ||
		IsKind(err, ErrIntegrity)
}
