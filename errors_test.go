package odata

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedMatch error
	}{
		{"EntityNotFound", &ODataError{StatusCode: http.StatusNotFound, Err: ErrEntityNotFound}, ErrEntityNotFound},
		{"ConcurrencyConflict", &ODataError{StatusCode: http.StatusPreconditionFailed, Err: ErrConcurrencyConflict}, ErrConcurrencyConflict},
		{"KeyMismatch", &ResolutionError{Segment: "Orders", Err: ErrKeyMismatch}, ErrKeyMismatch},
		{"UnknownNavigation", &ResolutionError{Segment: "Boss", Err: ErrUnknownNavigation}, ErrUnknownNavigation},
		{"UnsupportedExpression", &ExpressionError{Mode: "$filter", Node: "call(soundex)"}, ErrUnsupportedExpression},
		{"ChangesetFailure", &ChangesetError{}, ErrChangesetFailure},
		{"wrapped", fmt.Errorf("batch operation 2: %w", &ChangesetError{}), ErrChangesetFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.expectedMatch) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.expectedMatch)
			}
		})
	}
}

func TestChangesetError(t *testing.T) {
	cause := &ODataError{StatusCode: http.StatusConflict, Code: "Conflict", Message: "duplicate key"}
	err := &ChangesetError{Cause: cause}

	if !errors.Is(err, ErrChangesetFailure) {
		t.Error("errors.Is(err, ErrChangesetFailure) = false, want true")
	}
	var odataErr *ODataError
	if !errors.As(err, &odataErr) || odataErr != cause {
		t.Fatalf("errors.As(err, *ODataError) = %v, want the cause", odataErr)
	}
	if got := StatusCode(err); got != http.StatusConflict {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusConflict)
	}

	noCause := &ChangesetError{}
	if got := StatusCode(noCause); got != 0 {
		t.Errorf("StatusCode() without cause = %d, want 0", got)
	}
	if noCause.Error() == err.Error() {
		t.Error("Error() should differ with and without a cause")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"plain error", errors.New("boom"), 0},
		{"service error", &ODataError{StatusCode: http.StatusBadRequest}, http.StatusBadRequest},
		{"wrapped service error", fmt.Errorf("context: %w", &ODataError{StatusCode: http.StatusNotFound}), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.expected {
				t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"not found error", ErrEntityNotFound, true},
		{"wrapped not found error", &ODataError{Err: ErrEntityNotFound}, true},
		{"lookup without match", &ResolutionError{Segment: "People", Err: ErrEntityNotFound}, true},
		{"conflict", ErrConcurrencyConflict, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.expected {
				t.Errorf("IsNotFoundError(%v) = %t, want %t", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsConcurrencyConflict(t *testing.T) {
	if !IsConcurrencyConflict(&ODataError{StatusCode: http.StatusPreconditionRequired, Err: ErrConcurrencyConflict}) {
		t.Error("IsConcurrencyConflict(428) = false, want true")
	}
	if IsConcurrencyConflict(&ODataError{StatusCode: http.StatusConflict}) {
		t.Error("IsConcurrencyConflict(409) = true, want false")
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusPreconditionFailed, true},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := IsClientError(&ODataError{StatusCode: tt.status}); got != tt.expected {
				t.Errorf("IsClientError(%d) = %t, want %t", tt.status, got, tt.expected)
			}
		})
	}
}
