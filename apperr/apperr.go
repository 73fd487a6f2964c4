// Package apperr holds the single tagged error type returned by services for
// business-rule violations and the translation of every other error into it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Status  int          `json:"-"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func New(status int, message string) *Error {
	return &Error{Status: status, Code: codeFor(status), Message: message}
}

func BadRequest(message string) *Error      { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error    { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error       { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error        { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error        { return New(http.StatusConflict, message) }
func TooManyRequests(message string) *Error { return New(http.StatusTooManyRequests, message) }

func Internal() *Error {
	return New(http.StatusInternalServerError, "Something went wrong")
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "INTERNAL_ERROR"
	}
}

// Translate maps any error onto an *Error. Unknown errors become a generic 500.
func Translate(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := BadRequest("Validation failed")
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}

	if mongo.IsDuplicateKeyError(err) {
		return Conflict("Resource already exists")
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NotFound("Resource not found")
	}

	return Internal()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
