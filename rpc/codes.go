package rpc

import (
	"massa-api/apierr"
)

// Standard JSON-RPC 2.0 codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Codes of the query layer error kinds
const (
	CodeInvalidTime  = -32001
	CodeInvalidRange = -32002
	CodeUnavailable  = -32003
	CodeNotFound     = -32004
	CodeValidation   = -32005
)

var kindCodes = map[apierr.Kind]int{
	apierr.KindInvalidTime:     CodeInvalidTime,
	apierr.KindInvalidRange:    CodeInvalidRange,
	apierr.KindUnavailable:     CodeUnavailable,
	apierr.KindNotFound:        CodeNotFound,
	apierr.KindValidationError: CodeValidation,
	apierr.KindInvalidParams:   CodeInvalidParams,
	apierr.KindInternal:        CodeInternalError,
}

// Error is the error member of a response
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

type ErrorData struct {
	Kind apierr.Kind `json:"kind"`
}

func (e *Error) Error() string {
	return e.Message
}

// toError converts a handler error. Foreign errors are reported as internal
// without their message.
func toError(err error) *Error {
	kind := apierr.KindOf(err)
	msg := err.Error()
	if kind == apierr.KindInternal {
		msg = "internal error"
	}
	return &Error{Code: kindCodes[kind], Message: msg, Data: &ErrorData{Kind: kind}}
}

func newError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
