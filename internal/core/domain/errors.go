package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingHeader     = errors.New("missing header")
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrEmptyContent      = errors.New("empty content")
	ErrUnmappableContent = errors.New("unmappable content")
	ErrMappingEngine     = errors.New("mapping engine failure")
	ErrStoreWrite        = errors.New("store write failure")
	ErrStoreRead         = errors.New("store read failure")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrFileStorage       = errors.New("file storage failure")
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

// UserError carries the message shown to the caller next to its kind.
type UserError struct {
	Kind    error
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

// NewUserError builds an error of the given kind whose text is safe to return to clients.
func NewUserError(kind error, message string) error {
	return &UserError{Kind: kind, Message: message}
}

// PublicMessage returns the client-facing message of err, falling back to its text.
func PublicMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
