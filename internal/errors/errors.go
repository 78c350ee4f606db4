// Package errors defines the error codes shared by the scan pipeline and
// bridged to clients over the WebSocket and REST surfaces.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a failure class. It is sent to clients verbatim.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"
	ErrDatabase ErrorCode = "DATABASE_ERROR"

	// Capture errors
	ErrDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrNoActiveFeed      ErrorCode = "NO_ACTIVE_FEED"
	ErrInvalidImage      ErrorCode = "INVALID_IMAGE"

	// Recognition errors
	ErrRecognitionUnavailable ErrorCode = "RECOGNITION_UNAVAILABLE"
	ErrRecognitionParse       ErrorCode = "RECOGNITION_PARSE_ERROR"
	ErrNotFood                ErrorCode = "NOT_FOOD"

	// Session errors
	ErrSessionBusy       ErrorCode = "SESSION_BUSY"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrSessionClosed     ErrorCode = "SESSION_CLOSED"
)

// userMessages are the dismissible texts shown when a failure has no more
// specific message attached.
var userMessages = map[ErrorCode]string{
	ErrInternal:               "Something went wrong. Please try again.",
	ErrInvalid:                "The request was not valid.",
	ErrNotFound:               "Not found.",
	ErrDatabase:               "Could not save your diary. Please try again.",
	ErrDeviceUnavailable:      "Unable to access camera. Please upload an image instead.",
	ErrNoActiveFeed:           "The camera is not running.",
	ErrInvalidImage:           "That file is not a readable image.",
	ErrRecognitionUnavailable: "Recognition failed. Please try again.",
	ErrRecognitionParse:       "Recognition failed. Please try again.",
	ErrNotFood:                "That doesn't look like food. Please try another photo.",
	ErrSessionBusy:            "Still analyzing your meal...",
	ErrInvalidTransition:      "That action is not available right now.",
	ErrSessionClosed:          "The scan was closed.",
}

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// UserMessage returns the text a client should display for err. Internal
// details (wrapped causes) are never included.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	code := CodeOf(err)
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[ErrInternal]
}
