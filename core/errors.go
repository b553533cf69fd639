package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrorKind classifies domain errors so transports can map them to status codes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
	KindDocument
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Error is a domain error of a known kind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func NewNotFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func NewForbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

func NewConflictError(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func Conflictf(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// ErrForbidden is returned whenever an actor is not allowed to perform an operation.
var ErrForbidden = NewForbiddenError("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// DocumentError reports a failure of the external document generator.
type DocumentError struct {
	Err error
}

func NewDocumentError(err error) error {
	return &DocumentError{Err: err}
}

func (err DocumentError) Error() string {
	return "document generation failed: " + err.Err.Error()
}

// KindOf returns the ErrorKind of the root cause of err.
func KindOf(err error) ErrorKind {
	switch e := errors.Cause(err).(type) {
	case nil:
		return KindUnknown
	case *Error:
		return e.Kind
	case *ValidationError, validator.ValidationErrors:
		return KindValidation
	case *DocumentError:
		return KindDocument
	default:
		return KindUnknown
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
