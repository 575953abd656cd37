package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a product or dataset does not exist.
var ErrNotFound = errors.New("not found")

// FilterErrorKind classifies a rejected filter.
type FilterErrorKind string

const (
	FilterInvalid  FilterErrorKind = "invalid"
	FilterNotFound FilterErrorKind = "not_found"
)

// FilterError reports a client filter that cannot be served.
type FilterError struct {
	Kind    FilterErrorKind
	Field   string
	Message string
}

func (e *FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotFound) match unknown products.
func (e *FilterError) Unwrap() error {
	if e.Kind == FilterNotFound {
		return ErrNotFound
	}
	return nil
}

// InvalidFilter builds a FilterError of kind FilterInvalid.
func InvalidFilter(field, format string, args ...any) *FilterError {
	return &FilterError{Kind: FilterInvalid, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CursorError reports a pagination token that cannot be honoured.
// Clients are expected to restart pagination from the first page.
type CursorError struct {
	Reason string
	Err    error
}

func (e *CursorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cursor: %s: %v", e.Reason, e.Err)
	}
	return "invalid cursor: " + e.Reason
}

func (e *CursorError) Unwrap() error {
	return e.Err
}

// SourceError reports a failure of the record source, including a
// violation of its ordering contract.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("record source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err was caused by the request.
func IsClientError(err error) bool {
	var fe *FilterError
	var ce *CursorError
	return errors.As(err, &fe) || errors.As(err, &ce)
}
