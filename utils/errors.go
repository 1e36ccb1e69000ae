package utils

import (
	"fmt"
)

// AppError represents an application error mapped to an HTTP response
type AppError struct {
	Code      int                    // HTTP status code
	Message   string                 // User-facing message
	ErrorCode string                 // Optional machine-readable code, e.g. DUPLICATE_TAG
	Err       error                  // Underlying error, logged but never returned to clients
	Context   map[string]interface{} // Extra fields merged into the response body
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds a response field to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// WithCode sets the machine-readable error code
func (e *AppError) WithCode(code string) *AppError {
	e.ErrorCode = code
	return e
}

// Body renders the JSON response body for the error.
func (e *AppError) Body() map[string]interface{} {
	body := make(map[string]interface{}, len(e.Context)+2)
	for k, v := range e.Context {
		body[k] = v
	}
	body["error"] = e.Message
	if e.ErrorCode != "" {
		body["code"] = e.ErrorCode
	}
	return body
}

// Common error constructors
func BadRequestError(message string, err error) *AppError {
	return NewAppError(400, message, err)
}

func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(401, message, err)
}

func ForbiddenError(message string, err error) *AppError {
	return NewAppError(403, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(404, message, err)
}

func ConflictError(message string, err error) *AppError {
	return NewAppError(409, message, err)
}

func PayloadTooLargeError(message string, err error) *AppError {
	return NewAppError(413, message, err)
}

func TooManyRequestsError(message string, err error) *AppError {
	return NewAppError(429, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(500, message, err)
}
