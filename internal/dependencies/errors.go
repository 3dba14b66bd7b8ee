package dependencies

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a dependencies-table error that callers branch on.
//
// Storage failures are not wrapped in Error; they propagate as the driver
// returned them (wrapped with fmt.Errorf context).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Packages lists every unresolvable package identifier.
	Packages []string

	// Column is the rejected column name.
	Column string
}

// ErrorCode categorizes dependencies-table errors.
type ErrorCode string

const (
	// ErrCodeUnresolvableDependency indicates declared package identifiers
	// with no row in the identifier table.
	ErrCodeUnresolvableDependency ErrorCode = "UNRESOLVABLE_DEPENDENCY"

	// ErrCodeInvalidColumn indicates a reference check on a column the
	// relation does not have.
	ErrCodeInvalidColumn ErrorCode = "INVALID_COLUMN"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnresolvableDependency returns true if err is an unresolvable dependency
// error. Uses errors.As to handle wrapped errors.
func IsUnresolvableDependency(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnresolvableDependency
	}
	return false
}

// IsInvalidColumn returns true if err is an invalid column error.
func IsInvalidColumn(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeInvalidColumn
	}
	return false
}

// MissingPackages returns the unresolvable identifiers carried by err, or nil.
func MissingPackages(err error) []string {
	var de *Error
	if errors.As(err, &de) && de.Code == ErrCodeUnresolvableDependency {
		return de.Packages
	}
	return nil
}

// NewUnresolvableDependencyError creates an Error naming every missing
// package identifier.
func NewUnresolvableDependencyError(packages []string) *Error {
	return &Error{
		Code:     ErrCodeUnresolvableDependency,
		Message:  "missing packages " + strings.Join(packages, ", "),
		Packages: packages,
	}
}

// NewInvalidColumnError creates an Error for an unknown reference column.
func NewInvalidColumnError(column string) *Error {
	return &Error{
		Code:    ErrCodeInvalidColumn,
		Message: fmt.Sprintf("%s has no reference column %q", TableName, column),
		Column:  column,
	}
}
