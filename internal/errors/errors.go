package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"floodcv/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, falling
// back to a code derived from domain sentinels.
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Code != CodeInternalError {
		return appErr.Code
	}
	return domainCode(err)
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeConflict        = "CONFLICT"

	CodeSampling         = "SAMPLING_ERROR"
	CodeFoldConstruction = "FOLD_CONSTRUCTION_ERROR"
	CodeSearchExhausted  = "SEARCH_EXHAUSTED"
	CodeSearchCancelled  = "SEARCH_CANCELLED"
	CodeImportance       = "IMPORTANCE_ERROR"
	CodeAlignment        = "ALIGNMENT_ERROR"
)

func domainCode(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, core.ErrNotFound):
		return CodeNotFound
	case stderrors.Is(err, core.ErrSampling):
		return CodeSampling
	case stderrors.Is(err, core.ErrFoldConstruction):
		return CodeFoldConstruction
	case stderrors.Is(err, core.ErrInvalidSpace), stderrors.Is(err, core.ErrInvalidTrialCount), stderrors.Is(err, core.ErrTrialInfeasible):
		return CodeInvalidInput
	case stderrors.Is(err, core.ErrSearchExhausted):
		return CodeSearchExhausted
	case stderrors.Is(err, core.ErrSearchCancelled):
		return CodeSearchCancelled
	case stderrors.Is(err, core.ErrAlignment):
		return CodeAlignment
	case stderrors.Is(err, core.ErrImportanceComputation):
		return CodeImportance
	}
	return CodeInternalError
}

// FromDomain wraps err in an AppError carrying the code of its domain
// sentinel. AppErrors pass through unchanged.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: domainCode(err), Message: err.Error(), Cause: err}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput, CodeValidationError:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeSampling, CodeFoldConstruction, CodeSearchExhausted, CodeImportance, CodeAlignment:
		return http.StatusUnprocessableEntity
	case CodeSearchCancelled:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}
