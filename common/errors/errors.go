package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CacheUnavailable wraps a fatal cache failure that aborted a monitoring pass.
func CacheUnavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, "Cache unavailable", err)
}

// Internal wraps any other unexpected failure.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// Respond writes err as JSON. Errors that are not *Error become 500s.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		appErr = Internal(err)
	}
	c.JSON(appErr.Code, gin.H{"code": appErr.Code, "error": appErr.Message})
}
