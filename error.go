package ocppj

import (
	"errors"
	"fmt"
)

// ErrorCode enumerates the OCPP-J CallError codes.
type ErrorCode string

const (
	CodeNotImplemented                ErrorCode = "NotImplemented"
	CodeNotSupported                  ErrorCode = "NotSupported"
	CodeInternalError                 ErrorCode = "InternalError"
	CodeProtocolError                 ErrorCode = "ProtocolError"
	CodeSecurityError                 ErrorCode = "SecurityError"
	CodeFormationViolation            ErrorCode = "FormationViolation"
	CodePropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	CodeOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	CodeTypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	CodeGenericError                  ErrorCode = "GenericError"
)

// ErrTimeout is returned by an outbound call when no matching reply
// arrived within the response timeout. It is raised locally and never
// surfaced on the wire.
var ErrTimeout = errors.New("timeout waiting for response")

// Error is a protocol-level failure that maps to an OCPP-J CallError.
type Error struct {
	Code        ErrorCode
	Description string
	Details     map[string]interface{}
}

// Error returns the error message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates an Error with the given code and description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

// NewNotImplemented reports that no handler is registered for action.
func NewNotImplemented(action string) *Error {
	return NewError(CodeNotImplemented, fmt.Sprintf("no handler for %q registered", action))
}

// NewNotSupported reports an action that is known but not permitted here.
func NewNotSupported(description string) *Error {
	return NewError(CodeNotSupported, description)
}

// NewInternalError creates an internal error.
func NewInternalError(description string) *Error {
	return NewError(CodeInternalError, description)
}

// NewProtocolError creates a protocol error.
func NewProtocolError(description string) *Error {
	return NewError(CodeProtocolError, description)
}

// NewSecurityError creates a security error.
func NewSecurityError(description string) *Error {
	return NewError(CodeSecurityError, description)
}

// NewFormationViolation reports JSON that is valid but schema invalid.
func NewFormationViolation(description string) *Error {
	return NewError(CodeFormationViolation, description)
}

// CodeOf normalizes an arbitrary error to an OCPP-J error code. Errors
// raised by handlers that are not *Error surface as InternalError.
func CodeOf(err error) ErrorCode {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	return CodeInternalError
}

// CallErrorFrom builds the CallError reply for call from the cause of a
// handler or validation failure, reusing the originating unique id.
func CallErrorFrom(call *Call, err error) *CallError {
	callError := &CallError{
		UniqueID:    call.UniqueID,
		Code:        CodeOf(err),
		Description: err.Error(),
	}
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		callError.Details = protocolErr.Details
	}
	return callError
}

// Err converts a received CallError into the local error kind named by its
// code, for propagation to the caller that originated the Call.
func (e *CallError) Err() *Error {
	return &Error{Code: e.Code, Description: e.Description, Details: e.Details}
}

// CallErrorFor synthesizes an encoded CallError reply for an encoded Call
// frame. It fails if message is not a Call; CallResult and CallError
// frames do not need a reply. Used by proxies that cannot reach the
// handler plane.
func CallErrorFor(message []byte) ([]byte, error) {
	msg, err := Decode(message)
	if err != nil {
		return nil, err
	}
	if msg.Type != MessageTypeCall {
		return nil, fmt.Errorf("message is not type Call")
	}
	reply := CallErrorFrom(msg.Call, NewInternalError("an unexpected error occurred"))
	return NewCallErrorMessage(reply).Encode()
}
