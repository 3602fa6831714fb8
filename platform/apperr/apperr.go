// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer
// maps them to status codes. The API client maps status codes back onto
// the same kinds, so callers on either side of the API see identical errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates missing or malformed input. Never retried.
	KindValidation
	// KindConflict indicates a scheduling overlap, a stale queue version or a
	// duplicate. The caller must re-read before retrying.
	KindConflict
	// KindForbidden indicates the action is not allowed for the user.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindInvalidTransition indicates a state change absent from the
	// transition table.
	KindInvalidTransition
	// KindIncompleteChecklist indicates the checklist gate blocked a transition.
	KindIncompleteChecklist
	// KindTransient indicates a retryable server-side failure (5xx).
	KindTransient
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

var kindCodes = map[Kind]string{
	KindUnknown:             "unknown",
	KindNotFound:            "not_found",
	KindValidation:          "validation_error",
	KindConflict:            "conflict",
	KindForbidden:           "forbidden",
	KindUnauthorized:        "unauthorized",
	KindInvalidTransition:   "invalid_transition",
	KindIncompleteChecklist: "incomplete_checklist",
	KindTransient:           "transient_server_error",
	KindInternal:            "internal",
}

// String returns the wire code of the kind.
func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindUnknown]
}

// KindFromCode resolves a wire code back to its Kind.
func KindFromCode(code string) (Kind, bool) {
	for k, c := range kindCodes {
		if c == code {
			return k, true
		}
	}
	return KindUnknown, false
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// FieldError names one invalid field of a request.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ConflictDetail describes a scheduling conflict well enough to render a
// corrective message.
type ConflictDetail struct {
	TechnicianID             string   `json:"technicianId,omitempty"`
	CenterID                 string   `json:"centerId,omitempty"`
	ConflictingAssignmentIDs []string `json:"conflictingAssignmentIds,omitempty"`
	CurrentVersion           *int64   `json:"currentVersion,omitempty"`
}

// MissingItems lists the required checklist items without a response.
type MissingItems struct {
	IntakeID       string   `json:"intakeId"`
	MissingItemIDs []string `json:"missingItemIds"`
}

// TransitionDetail describes a rejected state change.
type TransitionDetail struct {
	Entity  string   `json:"entity"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Allowed []string `json:"allowed"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the machine-readable code sent alongside the HTTP status.
func (e *Error) Code() string {
	return e.Kind.String()
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidTransition, KindIncompleteChecklist:
		return http.StatusUnprocessableEntity
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Retryable reports whether the error may be retried without a fresh read.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string, fields ...FieldError) *Error {
	err := New(KindValidation, message)
	if len(fields) > 0 {
		err.Details = fields
	}
	return err
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// InvalidTransition creates an invalid transition error.
func InvalidTransition(entity, from, to string, allowed []string) *Error {
	if allowed == nil {
		allowed = []string{}
	}
	return New(KindInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)).
		WithDetails(TransitionDetail{Entity: entity, From: from, To: to, Allowed: allowed})
}

// IncompleteChecklist creates a checklist gate error naming the missing items.
func IncompleteChecklist(intakeID string, missing []string) *Error {
	return New(KindIncompleteChecklist, fmt.Sprintf("%d required checklist item(s) unanswered", len(missing))).
		WithDetails(MissingItems{IntakeID: intakeID, MissingItemIDs: missing})
}

// Transient creates a retryable server error.
func Transient(message string, err error) *Error {
	return Wrap(KindTransient, message, err)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the chain holds no *Error.
func GetKind(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
