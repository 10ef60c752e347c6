package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryFetch           ErrorCategory = "fetch"
	CategoryData            ErrorCategory = "data"
	CategoryMissingDocument ErrorCategory = "missing_document"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryStorage         ErrorCategory = "storage"
	CategoryInternal        ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with the category used to decide whether a run may continue
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		codeStr = "DATA_ERROR"
	case errbuilder.CodeNotFound:
		codeStr = "MISSING_DOCUMENT"
	case errbuilder.CodeUnavailable:
		codeStr = "FETCH_ERROR"
	case errbuilder.CodeDeadlineExceeded:
		codeStr = "TIMEOUT_ERROR"
	case errbuilder.CodeInternal:
		codeStr = "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		codeStr = "CONFIGURATION_ERROR"
	case errbuilder.CodeDataLoss:
		codeStr = "STORAGE_ERROR"
	}

	if cause := e.ErrBuilder.Unwrap(); cause != nil {
		return fmt.Sprintf("[%s] %s: %v", codeStr, e.ErrBuilder.Msg, cause)
	}
	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Fatal reports whether the error must abort a run before anything is written
func (e *AppError) Fatal() bool {
	return e.Category != CategoryFetch
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func withDetails(builder *errbuilder.ErrBuilder, details map[string]interface{}) *errbuilder.ErrBuilder {
	if len(details) == 0 {
		return builder
	}
	errorMap := errbuilder.ErrorMap{}
	for key, value := range details {
		errorMap.Set(key, fmt.Errorf("%v", value))
	}
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// NewFetchError records a per-URL network or HTTP failure. It is never fatal.
func NewFetchError(url string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("fetch %s failed", url))

	if cause != nil {
		builder = builder.WithCause(cause)
	}
	builder = withDetails(builder, map[string]interface{}{"url": url})

	return NewAppError(builder, CategoryFetch, http.StatusBadGateway)
}

// NewTimeoutError records a per-URL fetch that exceeded its deadline
func NewTimeoutError(url string, timeout time.Duration, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(fmt.Sprintf("fetch %s timed out after %s", url, timeout))

	if cause != nil {
		builder = builder.WithCause(cause)
	}
	builder = withDetails(builder, map[string]interface{}{
		"url":              url,
		"timeout_duration": timeout.String(),
	})

	return NewAppError(builder, CategoryFetch, http.StatusGatewayTimeout)
}

// NewDataError reports a structurally invalid feature matrix or history document
func NewDataError(message string, details map[string]interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	builder = withDetails(builder, details)

	return NewAppError(builder, CategoryData, http.StatusUnprocessableEntity)
}

// NewMissingDocumentError names a required persisted document that does not exist
func NewMissingDocumentError(name string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("required document %q not found", name))

	builder = withDetails(builder, map[string]interface{}{"document": name})

	return NewAppError(builder, CategoryMissingDocument, http.StatusNotFound)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// NewStorageError reports a document store failure other than a missing document
func NewStorageError(operation, name string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDataLoss).
		WithMsg(fmt.Sprintf("%s %q failed", operation, name))

	if cause != nil {
		builder = builder.WithCause(cause)
	}
	builder = withDetails(builder, map[string]interface{}{
		"operation": operation,
		"document":  name,
	})

	return NewAppError(builder, CategoryStorage, http.StatusInternalServerError)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(
			errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded).WithMsg("deadline exceeded").WithCause(err),
			CategoryFetch, http.StatusGatewayTimeout)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") {
		return NewAppError(
			errbuilder.New().WithCode(errbuilder.CodeUnavailable).WithMsg("network connection failed").WithCause(err),
			CategoryFetch, http.StatusBadGateway)
	}

	return NewInternalError("an unexpected error occurred", err)
}

// IsCategory reports whether err carries the given category anywhere in its chain
func IsCategory(err error, category ErrorCategory) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Category == category
}

// ExitCode maps an error to the process exit status used by the CLI
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ToAppError(err).Category {
	case CategoryData:
		return 65
	case CategoryMissingDocument:
		return 66
	case CategoryConfiguration:
		return 78
	case CategoryStorage:
		return 74
	default:
		return 1
	}
}

// LogError logs an error with a level chosen by its category. Errors that do not
// abort a run are warnings.
func LogError(logger *slog.Logger, err *AppError) {
	if logger == nil {
		logger = slog.Default()
	}

	logEntry := logger.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
	)

	errorMsg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch {
	case !err.Fatal():
		if cause != nil {
			logEntry.Warn(errorMsg, "cause", cause)
		} else {
			logEntry.Warn(errorMsg)
		}
	case err.Category == CategoryData:
		if details := err.ErrBuilder.Details; len(details.Errors) > 0 {
			logEntry.Error(errorMsg, "details", details.Errors)
		} else {
			logEntry.Error(errorMsg)
		}
	default:
		if cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
