package authoring

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

var (
	// ErrInput matches every *InputError.
	ErrInput = errors.New("invalid input")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for unknown sessions.
	ErrNotFound = state.ErrNotFound
)

// InputError rejects a malformed request before any LLM call is made.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInput) true.
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// ConflictError reports that stored state forbids the operation: the
// section is locked, out of pathway order, or the draft lacks a fresh
// passing verdict. The caller should reload before retrying.
type ConflictError struct {
	Kind   models.SectionKind
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Kind == "" {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict on %s: %s", e.Kind, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func inputErr(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

func conflict(kind models.SectionKind, err error) error {
	return &ConflictError{Kind: kind, Reason: err.Error(), Err: err}
}
