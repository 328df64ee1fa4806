package odata

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nlstn/go-odata-client/internal/odataerr"
)

// Sentinel errors for the error kinds the client reports.
// These can be used with errors.Is() for error handling.
var (
	// ErrUnsupportedExpression indicates an expression outside the translatable grammar.
	// Local and not retryable.
	ErrUnsupportedExpression = odataerr.ErrUnsupportedExpression

	// ErrUnknownNavigation indicates a navigation property the schema does not declare.
	ErrUnknownNavigation = odataerr.ErrUnknownNavigation

	// ErrUnknownProperty indicates a property, function or action the schema does not declare.
	ErrUnknownProperty = odataerr.ErrUnknownProperty

	// ErrUnknownEntitySet indicates an entity set or singleton the schema does not declare.
	ErrUnknownEntitySet = odataerr.ErrUnknownEntitySet

	// ErrUnknownType indicates a type cast to a type the schema does not declare.
	ErrUnknownType = odataerr.ErrUnknownType

	// ErrKeyMismatch indicates key values that do not match the key properties.
	ErrKeyMismatch = odataerr.ErrKeyMismatch

	// ErrConcurrencyConflict indicates a missing or stale ETag.
	// Maps to HTTP 412 Precondition Failed and 428 Precondition Required.
	ErrConcurrencyConflict = odataerr.ErrConcurrencyConflict

	// ErrChangesetFailure indicates that the changeset of a batch was rolled back.
	ErrChangesetFailure = odataerr.ErrChangesetFailure

	// ErrAmbiguousResource indicates an update or delete that matched more than one entity.
	ErrAmbiguousResource = odataerr.ErrAmbiguousResource

	// ErrEntityNotFound indicates the addressed entity does not exist.
	// Maps to HTTP 404 Not Found.
	ErrEntityNotFound = odataerr.ErrEntityNotFound

	// ErrBatchReplay indicates a batch continuation issued a different command
	// than the one recorded for it.
	ErrBatchReplay = odataerr.ErrBatchReplay
)

// ExpressionError reports an expression that could not be translated. It
// unwraps to ErrUnsupportedExpression.
type ExpressionError = odataerr.ExpressionError

// ResolutionError reports a command segment that does not match the schema.
// It unwraps to the error kind, for example ErrKeyMismatch.
type ResolutionError = odataerr.ResolutionError

// ODataError is an error reported by the service: the HTTP status, the OData
// error code and the service's diagnostic message.
//
// Example usage:
//
//	_, err := client.For("People").Key("russellwhyte").UpdateEntry(ctx)
//	var odataErr *odata.ODataError
//	if errors.As(err, &odataErr) {
//	    log.Printf("service said %s: %s", odataErr.Code, odataErr.Message)
//	}
type ODataError = odataerr.ODataError

// ErrorDetail represents additional error information in an OData error response.
type ErrorDetail = odataerr.ErrorDetail

// ChangesetError is returned to every write continuation of a batch whose
// changeset failed. Cause is the service error of the write that failed, nil
// when the service did not answer for the changeset at all.
type ChangesetError struct {
	Cause *ODataError
}

// Error implements the error interface.
func (e *ChangesetError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v: no response for changeset", ErrChangesetFailure)
	}
	return fmt.Sprintf("%v: %v", ErrChangesetFailure, e.Cause)
}

// Unwrap returns ErrChangesetFailure and the service error, so errors.Is
// matches both kinds.
func (e *ChangesetError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrChangesetFailure}
	}
	return []error{ErrChangesetFailure, e.Cause}
}

// StatusCode returns the HTTP status code the service answered with, or 0
// when err did not come from a service response.
//
// Example usage:
//
//	if odata.StatusCode(err) == http.StatusConflict {
//	    // duplicate key
//	}
func StatusCode(err error) int {
	var odataErr *ODataError
	if errors.As(err, &odataErr) {
		return odataErr.StatusCode
	}
	return 0
}

// IsNotFoundError returns true if the error indicates an entity was not found.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsConcurrencyConflict returns true if the error indicates a failed ETag precondition.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the service rejected the request with a 4xx status.
func IsClientError(err error) bool {
	status := StatusCode(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
