// Package domainerrors carries coded errors across layer boundaries. Services
// attach a Code describing the failure class; transports translate codes into
// status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers that need to branch on it.
type Code string

const (
	// CodeConnectivity means the ledger node was unreachable or the
	// transport failed mid-call.
	CodeConnectivity Code = "connectivity"
	// CodeSubmission means a transaction could not be built, signed,
	// broadcast, or was rejected/reverted on-ledger. No receipt exists.
	CodeSubmission Code = "submission"
	// CodePending means a broadcast transaction had not confirmed before the
	// caller's deadline. The outcome is unknown, not failed: the transaction
	// may still be mined.
	CodePending Code = "pending"
	// CodeVerification means a read-only ledger query returned a malformed
	// response.
	CodeVerification Code = "verification"
	// CodeDocument means rendering or persisting an artifact failed. Ledger
	// state is unaffected and the artifact can be regenerated.
	CodeDocument Code = "document"

	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal"
)

// Error is the concrete coded error. Callers normally use the package
// functions rather than constructing one directly.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// HasCode is an alias for Is kept for call-site readability in tests.
func HasCode(err error, code Code) bool { return Is(err, code) }

// CodeOf returns the outermost code in the chain, or CodeInternal when err is
// not a coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer should
// return. CodePending maps to 202: the submission was accepted and may still
// confirm.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePending:
		return http.StatusAccepted
	case CodeSubmission:
		return http.StatusUnprocessableEntity
	case CodeConnectivity, CodeVerification:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
