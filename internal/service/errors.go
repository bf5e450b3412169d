package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/examinator/internal/response"
)

// Kind classifies a service failure for the transport boundary.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// Error is the single error type returned by services. Message is safe to
// show to clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Code    response.ErrCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == k
}

func newError(kind Kind, code response.ErrCode, msg string) *Error {
	if msg == "" {
		msg = response.GetMessage(code)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func validationErr(code response.ErrCode, msg string) *Error {
	return newError(KindValidation, code, msg)
}

func authErr(code response.ErrCode, msg string) *Error {
	return newError(KindAuth, code, msg)
}

func notFoundErr(code response.ErrCode, msg string) *Error {
	return newError(KindNotFound, code, msg)
}

func conflictErr(code response.ErrCode, msg string) *Error {
	return newError(KindConflict, code, msg)
}

// upstreamErr wraps a collaborator failure. The client only sees the generic message.
func upstreamErr(op string, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Code:    response.ErrInternal,
		Message: response.GetMessage(response.ErrInternal),
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}
