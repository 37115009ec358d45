package lowcoder

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInvariant  ErrorType = "invariant"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeImport     ErrorType = "import"
	ErrorTypeGeneration ErrorType = "generation"
	ErrorTypeInternal   ErrorType = "internal"
)

// LowcoderError is the structured error returned by the public operations.
type LowcoderError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *LowcoderError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, msg)
}

func (e *LowcoderError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail
func (e *LowcoderError) WithDetail(key string, value any) *LowcoderError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause
func (e *LowcoderError) WithCause(cause error) *LowcoderError {
	e.Cause = cause
	return e
}

// WithField attributes the error to a field
func (e *LowcoderError) WithField(field string) *LowcoderError {
	e.Field = field
	return e
}

// Error codes
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeNameTooShort         = "NAME_TOO_SHORT"
	ErrCodeNameTooLong          = "NAME_TOO_LONG"
	ErrCodeExtensionNotAllowed  = "EXTENSION_NOT_ALLOWED"
	ErrCodeUnknownDatatype      = "UNKNOWN_DATATYPE"
	ErrCodeForeignKeyScope      = "FOREIGN_KEY_SCOPE"
	ErrCodeEntityNotFound       = "ENTITY_NOT_FOUND"
	ErrCodeDuplicateIndex       = "DUPLICATE_INDEX"
	ErrCodeDuplicateMainEntity  = "DUPLICATE_MAIN_ENTITY"
	ErrCodeInvalidMapping       = "INVALID_MAPPING"
	ErrCodeSheetReadFailed      = "SHEET_READ_FAILED"
	ErrCodeImportFailed         = "IMPORT_FAILED"
	ErrCodeTemplateExpansion    = "TEMPLATE_EXPANSION_FAILED"
	ErrCodeFormatterFailed      = "FORMATTER_FAILED"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeArchiveFailed        = "ARCHIVE_FAILED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
)

// NewLowcoderError creates a new error
func NewLowcoderError(errorType ErrorType, code, message string) *LowcoderError {
	return &LowcoderError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a field level validation error.
func NewValidationError(field, code, message string) *LowcoderError {
	return &LowcoderError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates an entity not found error.
func NewNotFoundError(entity string, id int64) *LowcoderError {
	return &LowcoderError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeEntityNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewInvariantError reports a broken ordering or main entity invariant.
func NewInvariantError(code, message string) *LowcoderError {
	return &LowcoderError{
		Type:    ErrorTypeInvariant,
		Code:    code,
		Message: message,
	}
}

// NewGenerationError wraps a failing generation stage. The cause carries the
// diagnostic output of the failing tool.
func NewGenerationError(code, stage string, cause error) *LowcoderError {
	return &LowcoderError{
		Type:    ErrorTypeGeneration,
		Code:    code,
		Message: fmt.Sprintf("generation failed at %s", stage),
		Details: map[string]any{"stage": stage},
		Cause:   cause,
	}
}

func hasType(err error, t ErrorType) bool {
	var le *LowcoderError
	return errors.As(err, &le) && le.Type == t
}

// IsValidation reports whether err carries a validation error.
func IsValidation(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsNotFound reports whether err carries a not found error.
func IsNotFound(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsInvariant reports whether err carries an invariant violation.
func IsInvariant(err error) bool { return hasType(err, ErrorTypeInvariant) }

// IsGeneration reports whether err carries a generation failure.
func IsGeneration(err error) bool { return hasType(err, ErrorTypeGeneration) }
