// Package dErrors provides coded domain errors shared across services.
//
// Codes carry pipeline semantics: fatal resolution failures abort a request,
// stage-local codes degrade only the stage that raised them. Handlers map
// codes to HTTP statuses without inspecting error strings.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// Fatal resolution errors: the pipeline aborts before Intersecting.
	CodeCommuneNotFound Code = "commune_not_found"
	CodeParcelNotFound  Code = "parcel_not_found"
	CodeInvalidGeometry Code = "invalid_geometry"

	// Stage-local errors: the affected stage degrades, the request continues.
	CodeUnknownSchema          Code = "unknown_schema"
	CodeUnknownLayer           Code = "unknown_layer"
	CodeRegulationLookupFailed Code = "regulation_lookup_failed"
	CodeCompositionFailed      Code = "composition_failed"

	// Transport and plumbing codes.
	CodeBadRequest Code = "bad_request"
	CodeValidation Code = "validation_failed"
	CodeNotFound   Code = "not_found"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal_error"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is supports errors.Is against another coded error by code equality.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// Fatal reports whether the code aborts the pipeline before Intersecting.
func Fatal(code Code) bool {
	switch code {
	case CodeCommuneNotFound, CodeParcelNotFound, CodeInvalidGeometry:
		return true
	}
	return false
}
