package errors

import "net/http"

// AppError is a custom error type that includes an HTTP status code
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, "Unauthorized access")
	ErrNotFound       = NewAppError(http.StatusNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, "Internal server error")
)

// Sync-core taxonomy. ErrNotAuthenticated is returned by mutating operations
// called without a session; fire-and-forget callers treat it as a no-op.
var (
	ErrEmptyContent     = NewAppError(http.StatusBadRequest, "Message content is empty")
	ErrNotAuthenticated = NewAppError(http.StatusUnauthorized, "No authenticated session")
	ErrSendFailed       = NewAppError(http.StatusBadGateway, "Failed to send message")
	ErrRemoteWrite      = NewAppError(http.StatusBadGateway, "Remote write rejected")
	ErrNoConversation   = NewAppError(http.StatusConflict, "No active conversation selected")
)

// Helper functions to create specific errors
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, msg)
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, msg)
}
