package compositor

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeGeometryWarning   = "GEOMETRY_WARNING"
	CodeUploadFailure     = "UPLOAD_FAILURE"
	CodeBlitFailure       = "BLIT_FAILURE"
	CodeAllocationFailure = "ALLOCATION_FAILURE"
	CodeChannelNotFound   = "CHANNEL_NOT_FOUND"
	CodeChannelExists     = "CHANNEL_EXISTS"
	CodeInvalidOutput     = "INVALID_OUTPUT"
	CodeInvalidParams     = "INVALID_PARAMS"
)

// Error is a compositor failure with a category code. Channel is empty for
// failures not tied to one input.
type Error struct {
	Code    string
	Message string
	Channel string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Channel != "" {
		msg = "channel " + e.Channel + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new compositor error.
func NewError(code, channel, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Channel: channel,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUploadFailure reports whether err is an upload failure.
func IsUploadFailure(err error) bool { return ErrorCode(err) == CodeUploadFailure }

// IsBlitFailure reports whether err is a blit failure.
func IsBlitFailure(err error) bool { return ErrorCode(err) == CodeBlitFailure }

// IsAllocationFailure reports whether err is an allocation failure.
func IsAllocationFailure(err error) bool { return ErrorCode(err) == CodeAllocationFailure }

// IsNotFound reports whether err names an unknown channel.
func IsNotFound(err error) bool { return ErrorCode(err) == CodeChannelNotFound }
