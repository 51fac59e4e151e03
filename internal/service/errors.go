package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Handlers branch on these with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
)

// Service errors.
var (
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrNotOwner        = fmt.Errorf("only the author may modify this post: %w", ErrForbidden)
	ErrUnauthenticated = fmt.Errorf("authentication required: %w", ErrForbidden)
)

// ValidationError reports invalid input fields keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
