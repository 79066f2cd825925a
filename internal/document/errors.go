package document

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned (wrapped) by repositories and the store when a
	// document id does not exist.
	ErrNotFound = errors.New("document not found")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Missing required argument '%s'", e.Field)
}

// NewValidationError builds a ValidationError for field with the given message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// NotFoundError names the id an operation targeted.
type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Document with id='%d' not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DecodeError is returned by the codec for a record that cannot be decoded.
// Key is the storage key the bytes were read from.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StorageError wraps an I/O failure reported by a repository backend.
type StorageError struct {
	Op  string
	ID  uint64
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %d: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
