// Package brokererr defines the single error sum type the rest of the
// broker returns instead of typed exceptions (spec.md §9: "Exceptions for
// control flow... Model as a single BrokerError sum type and return a
// result from every fallible operation; let the Processor translate to the
// error envelope at the boundary").
package brokererr

import "fmt"

// Code is the broker-wide error taxonomy (spec.md §7).
type Code int

const (
	CodeUnknown Code = iota
	CodeBadRequest
	CodeInvalidToken
	CodeNoAccess
	CodePathNotFound
	CodeOutOfBounds
	CodeTypeMismatch
	CodeUnavailableData
	CodeUnsupportedType
	CodeForbidden
	CodeUnknownID
)

// httpNumber and reason are the envelope fields spec.md §6 requires
// ("number is the HTTP-style code... reason is a short slug").
var httpNumber = map[Code]string{
	CodeUnknown:         "500",
	CodeBadRequest:      "400",
	CodeInvalidToken:    "401",
	CodeNoAccess:        "403",
	CodePathNotFound:    "404",
	CodeOutOfBounds:     "400",
	CodeTypeMismatch:    "400",
	CodeUnavailableData: "404",
	CodeUnsupportedType: "400",
	CodeForbidden:       "403",
	CodeUnknownID:       "400",
}

var reasonSlug = map[Code]string{
	CodeUnknown:         "unknown",
	CodeBadRequest:      "Bad Request",
	CodeInvalidToken:    "Invalid Token",
	CodeNoAccess:        "Forbidden",
	CodePathNotFound:    "Path not found",
	CodeOutOfBounds:     "out_of_bounds",
	CodeTypeMismatch:    "type_mismatch",
	CodeUnavailableData: "unavailable_data",
	CodeUnsupportedType: "unsupported_type",
	CodeForbidden:       "Forbidden",
	CodeUnknownID:       "Unknown",
}

// BrokerError is the value every fallible broker operation returns instead
// of a typed exception.
type BrokerError struct {
	Code    Code
	Message string
	wrapped error
}

// New constructs a BrokerError with the given code and message.
func New(code Code, message string) *BrokerError {
	return &BrokerError{Code: code, Message: message}
}

// Wrap constructs a BrokerError that preserves an underlying cause for
// errors.Is/As while still carrying a taxonomy code.
func Wrap(code Code, message string, cause error) *BrokerError {
	return &BrokerError{Code: code, Message: message, wrapped: cause}
}

func (e *BrokerError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", reasonSlug[e.Code], e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", reasonSlug[e.Code], e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.wrapped
}

// Number returns the HTTP-style status string for the error envelope.
func (e *BrokerError) Number() string {
	if n, ok := httpNumber[e.Code]; ok {
		return n
	}
	return "500"
}

// Reason returns the short slug for the error envelope.
func (e *BrokerError) Reason() string {
	if r, ok := reasonSlug[e.Code]; ok {
		return r
	}
	return "unknown"
}
