package scene

import "fmt"

// Error represents a layout file error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeInvalidParams = "INVALID_PARAMS"
	ErrCodeConfigError   = "CONFIG_ERROR"
	ErrCodeApplyError    = "APPLY_ERROR"
)

// NewError creates a new layout error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
