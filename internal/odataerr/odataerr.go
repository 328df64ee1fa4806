package odataerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the error kinds the client can report.
// These can be used with errors.Is() for error handling.
var (
	// ErrUnsupportedExpression indicates an expression node outside the translatable grammar.
	ErrUnsupportedExpression = errors.New("odata: unsupported expression")

	// ErrUnknownNavigation indicates a navigation property missing from the schema.
	ErrUnknownNavigation = errors.New("odata: unknown navigation property")

	// ErrUnknownProperty indicates a structural property missing from the schema.
	ErrUnknownProperty = errors.New("odata: unknown property")

	// ErrUnknownEntitySet indicates an entity set or singleton missing from the schema.
	ErrUnknownEntitySet = errors.New("odata: unknown entity set")

	// ErrUnknownType indicates a type cast target missing from the schema.
	ErrUnknownType = errors.New("odata: unknown type")

	// ErrKeyMismatch indicates key values that do not match the declared key properties.
	ErrKeyMismatch = errors.New("odata: key mismatch")

	// ErrConcurrencyConflict indicates a failed or missing ETag precondition.
	// Maps to HTTP 412 Precondition Failed and 428 Precondition Required.
	ErrConcurrencyConflict = errors.New("odata: concurrency conflict")

	// ErrChangesetFailure indicates that a write inside a batch changeset failed
	// and the whole changeset was rolled back.
	ErrChangesetFailure = errors.New("odata: changeset failure")

	// ErrAmbiguousResource indicates an update or delete that matched more than one entity.
	ErrAmbiguousResource = errors.New("odata: ambiguous resource")

	// ErrEntityNotFound indicates the addressed entity does not exist.
	// Maps to HTTP 404 Not Found.
	ErrEntityNotFound = errors.New("odata: entity not found")

	// ErrBatchReplay indicates a batch continuation issued a different command
	// than the one recorded for it.
	ErrBatchReplay = errors.New("odata: batch replay mismatch")
)

// ExpressionError reports an expression that could not be translated.
type ExpressionError struct {
	// Mode is the translation mode (filter, select, expand, orderby, value bag).
	Mode string

	// Node describes the offending expression node.
	Node string

	// Reason optionally explains why the node is unsupported.
	Reason string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	msg := fmt.Sprintf("%v: %s in %s", ErrUnsupportedExpression, e.Node, e.Mode)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns ErrUnsupportedExpression.
func (e *ExpressionError) Unwrap() error {
	return ErrUnsupportedExpression
}

// ResolutionError reports a command segment that could not be resolved against the schema.
type ResolutionError struct {
	// Segment is the resource path segment or property path being resolved.
	Segment string

	// Message is a human-readable error description.
	Message string

	// Err is the error kind (ErrKeyMismatch, ErrUnknownNavigation, ...).
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s: %s", e.Err, e.Segment, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Segment)
}

// Unwrap returns the error kind.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ErrorDetail represents additional error information in an OData error response.
type ErrorDetail struct {
	// Code is a service-defined error code for this detail.
	Code string

	// Target identifies the specific part of the request causing this error.
	Target string

	// Message is a human-readable description of this specific error.
	Message string
}

// ODataError is a server-reported error: the HTTP status, the OData error code and
// the server's diagnostic message.
type ODataError struct {
	// StatusCode is the HTTP status code the server answered with.
	StatusCode int

	// Code is the OData-specific error code from the error body.
	Code string

	// Message is the server's diagnostic message.
	Message string

	// Target optionally identifies the part of the request that caused the error.
	Target string

	// Details provides additional error information reported by the server.
	Details []ErrorDetail

	// Err is the error kind derived from the status, if any.
	Err error
}

// Error implements the error interface.
func (e *ODataError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %d %s", e.Err, e.StatusCode, msg)
	}
	return fmt.Sprintf("odata: %d %s", e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is() and errors.As().
func (e *ODataError) Unwrap() error {
	return e.Err
}

// KindForStatus maps a response status code to the error kind it represents.
// Returns nil for statuses without a dedicated kind.
func KindForStatus(statusCode int) error {
	switch statusCode {
	case http.StatusNotFound:
		return ErrEntityNotFound
	case http.StatusPreconditionFailed, http.StatusPreconditionRequired:
		return ErrConcurrencyConflict
	default:
		return nil
	}
}
