package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryUpstreamFetch ErrorCategory = "upstream_fetch"
	CategoryPersistence   ErrorCategory = "persistence"
	CategoryUnavailable   ErrorCategory = "unavailable"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryUnauthorized  ErrorCategory = "unauthorized"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

var categoryLabels = map[ErrorCategory]string{
	CategoryValidation:    "VALIDATION_ERROR",
	CategoryNotFound:      "NOT_FOUND",
	CategoryUpstreamFetch: "UPSTREAM_FETCH_ERROR",
	CategoryPersistence:   "PERSISTENCE_ERROR",
	CategoryUnavailable:   "SERVICE_UNAVAILABLE",
	CategoryRateLimit:     "RATE_LIMIT_EXCEEDED",
	CategoryUnauthorized:  "UNAUTHORIZED",
	CategoryTimeout:       "TIMEOUT_ERROR",
	CategoryConfiguration: "CONFIGURATION_ERROR",
	CategoryInternal:      "INTERNAL_ERROR",
}

// AppError wraps an errbuilder error with the category and HTTP status used by handlers
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

func (e *AppError) Error() string {
	label, ok := categoryLabels[e.Category]
	if !ok {
		label = "UNKNOWN_ERROR"
	}
	if cause := e.ErrBuilder.Unwrap(); cause != nil {
		return fmt.Sprintf("[%s] %s: %v", label, e.ErrBuilder.Msg, cause)
	}
	return fmt.Sprintf("[%s] %s", label, e.ErrBuilder.Msg)
}

// MarshalJSON renders the response body handlers send for a failed request
func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code       string        `json:"code"`
		Message    string        `json:"message"`
		Category   ErrorCategory `json:"category"`
		HTTPStatus int           `json:"http_status"`
		Timestamp  time.Time     `json:"timestamp"`
		RequestID  string        `json:"request_id,omitempty"`
		StackTrace string        `json:"stack_trace,omitempty"`
	}{
		Code:       categoryLabels[e.Category],
		Message:    e.ErrBuilder.Msg,
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
		RequestID:  e.RequestID,
		StackTrace: e.StackTrace,
	})
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
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

// decorate attaches the cause and detail entries to a coded builder
func decorate(builder *errbuilder.ErrBuilder, cause error, details map[string]string) *errbuilder.ErrBuilder {
	if cause != nil {
		builder = builder.WithCause(cause)
	}

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		for k, v := range details {
			errorMap.Set(k, errors.New(v))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return builder
}

// NewValidationError creates a validation error for a bad argument
func NewValidationError(message string, field string) *AppError {
	var details map[string]string
	if field != "" {
		details = map[string]string{"field": field}
	}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument).WithMsg(message), nil, details), CategoryValidation, http.StatusBadRequest)
}

// NewValidationErrorWithMap creates a validation error carrying one entry per invalid field
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	errMap := errbuilder.ErrorMap{}

	for field, message := range validationErrors {
		errMap.Set(field, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(message))
	}

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Multiple validation errors").
		WithDetails(errbuilder.NewErrDetails(errMap))

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError reports a missing document or entity
func NewNotFoundError(resource, id string) *AppError {
	details := map[string]string{"resource": resource, "id": id}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeNotFound).WithMsg(fmt.Sprintf("%s %s not found", resource, id)), nil, details),
		CategoryNotFound, http.StatusNotFound)
}

// NewUpstreamFetchError reports a failed read from the document store
func NewUpstreamFetchError(source string, cause error) *AppError {
	details := map[string]string{"source": source}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeUnavailable).WithMsg(fmt.Sprintf("failed to fetch %s", source)), cause, details),
		CategoryUpstreamFetch, http.StatusBadGateway)
}

// NewPersistenceError reports a failed write
func NewPersistenceError(target string, cause error) *AppError {
	details := map[string]string{"target": target}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeAborted).WithMsg(fmt.Sprintf("failed to persist %s", target)), cause, details),
		CategoryPersistence, http.StatusInternalServerError)
}

// NewUnavailableError reports a dependency that is refusing work, such as an open breaker
func NewUnavailableError(service string, cause error) *AppError {
	details := map[string]string{"service": service}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeUnavailable).WithMsg(fmt.Sprintf("%s is unavailable", service)), cause, details),
		CategoryUnavailable, http.StatusServiceUnavailable)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter string) *AppError {
	details := map[string]string{"retry_after": retryAfter}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeResourceExhausted).WithMsg("Rate limit exceeded"), nil, details),
		CategoryRateLimit, http.StatusTooManyRequests)
}

// NewUnauthorizedError rejects a request lacking valid admin credentials
func NewUnauthorizedError(message string, cause error) *AppError {
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeUnauthenticated).WithMsg(message), cause, nil), CategoryUnauthorized, http.StatusUnauthorized)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded).WithMsg(message), cause, nil), CategoryTimeout, http.StatusGatewayTimeout)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *AppError {
	details := map[string]string{"config_details": message}
	return NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg("Configuration error"), cause, details),
		CategoryConfiguration, http.StatusInternalServerError)
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	details := map[string]string{"internal_details": message}
	appErr := NewAppError(decorate(errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("Internal server error"), cause, details),
		CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that renders the last handler error as JSON
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		appErr.RequestID = c.GetHeader("X-Request-ID")
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
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
		return NewTimeoutError("Request deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") {
		return NewUnavailableError("upstream", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// CategoryOf returns the category of err, or internal when it carries none
func CategoryOf(err error) ErrorCategory {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	return CategoryInternal
}

// IsNotFound reports whether err is a not_found AppError
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Category == CategoryNotFound
}

// LogError logs an error with appropriate level and request context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	msg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound, CategoryUnauthorized:
		if details := err.ErrBuilder.Details; len(details.Errors) > 0 {
			logEntry.Warn(msg, "details", details.Errors)
		} else {
			logEntry.Warn(msg)
		}
	case CategoryUpstreamFetch, CategoryTimeout, CategoryUnavailable:
		logEntry.Info(msg, "cause", cause)
	default:
		logEntry.Error(msg, "cause", cause)
	}

	if err.StackTrace != "" && gin.Mode() == gin.DebugMode {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError reports whether a failed run is worth another attempt
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch ToAppError(err).Category {
	case CategoryUpstreamFetch, CategoryPersistence, CategoryUnavailable, CategoryTimeout:
		return true
	default:
		return false
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	contextMsg := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", contextMsg, err)
}

// SafeClose closes a resource and logs any error
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
