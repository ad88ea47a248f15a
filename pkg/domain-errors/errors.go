// Package domainerrors carries the ledger's error taxonomy.
//
// Every rejection the ledger produces is an *Error with a Code. Callers branch
// on the code (HasCode, Is, CodeOf) rather than on message text, and outer
// surfaces (HTTP, Kafka replies) translate codes into their own envelopes.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code names one kind of failure.
type Code string

const (
	// Initialization payload
	CodeDecimals    Code = "DecimalsError"
	CodeDescription Code = "DescriptionError"

	// Authorization
	CodeNotAdmin           Code = "NotAdmin"
	CodeCantDeleteYourself Code = "CantDeleteYourself"

	// Supply and accounting
	CodeMaxSupplyReached Code = "MaxSupplyReached"
	CodeSupply           Code = "SupplyError"
	CodeNotEnoughBalance Code = "NotEnoughBalance"

	// Addressing
	CodeZeroAddress Code = "ZeroAddress"

	// Delegation
	CodeNotAllowedToTransfer Code = "NotAllowedToTransfer"

	// Idempotency
	CodeTxAlreadyExists Code = "TxAlreadyExists"

	// Admin-set integrity
	CodeAdminAlreadyExists Code = "AdminAlreadyExists"

	// Infrastructure codes used by transports only.
	CodeBadRequest   Code = "BadRequest"
	CodeUnauthorized Code = "Unauthorized"
	CodeTimeout      Code = "Timeout"
	CodeRateLimited  Code = "RateLimited"
	CodeInternal     Code = "Internal"
)

var domainCodes = map[Code]struct{}{
	CodeDecimals:             {},
	CodeDescription:          {},
	CodeNotAdmin:             {},
	CodeCantDeleteYourself:   {},
	CodeMaxSupplyReached:     {},
	CodeSupply:               {},
	CodeNotEnoughBalance:     {},
	CodeZeroAddress:          {},
	CodeNotAllowedToTransfer: {},
	CodeTxAlreadyExists:      {},
	CodeAdminAlreadyExists:   {},
}

// IsDomain reports whether the code belongs to the ledger taxonomy rather
// than to transport or infrastructure.
func (c Code) IsDomain() bool {
	_, ok := domainCodes[c]
	return ok
}

// Error is a coded error. Err is the optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Code)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, New(code, ""))
// works as a kind check.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Is is shorthand for HasCode, kept for call sites that read better as a
// predicate on the kind.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
