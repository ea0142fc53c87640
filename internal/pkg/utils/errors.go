package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates unknown recording ID
	ErrNotFound = errors.New("not found")
	// ErrWrongTransition indicates a status move the pipeline does not allow
	ErrWrongTransition = errors.New("wrong status transition")
)

// ValidationError indicates bad input, it is returned before any state change
type ValidationError struct {
	Field string
	Msg   string
}

// NewValidationError creates new error
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Msg
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Msg)
}

// PersistenceError indicates storage failure on create
type PersistenceError struct {
	err error
}

// NewPersistenceError creates new error
func NewPersistenceError(err error) error {
	return &PersistenceError{err: err}
}

func (e *PersistenceError) Error() string {
	return "persistence error: " + e.err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.err
}

// StageError indicates a failed transcription or analysis collaborator call
type StageError struct {
	Stage string
	err   error
}

// NewStageError creates new error
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, err: err}
}

func (e *StageError) Error() string {
	return e.Stage + " failed: " + e.err.Error()
}

func (e *StageError) Unwrap() error {
	return e.err
}

// IsValidation checks if err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
