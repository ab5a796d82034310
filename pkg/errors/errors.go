package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryStorage        ErrorCategory = "storage"
	CategoryNetwork        ErrorCategory = "network"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound      ErrorCode = "file_not_found"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeFileUnreadable    ErrorCode = "file_unreadable"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeParseFailed   ErrorCode = "parse_failed"

	// Validation errors
	CodeSelfMatch           ErrorCode = "self_match"
	CodeAlreadyReconciled   ErrorCode = "already_reconciled"
	CodeIncompatibleStatus  ErrorCode = "incompatible_status"
	CodeMissingField        ErrorCode = "missing_field"
	CodeInvalidValue        ErrorCode = "invalid_value"
	CodeInvalidUploadType   ErrorCode = "invalid_upload_type"
	CodeTransactionNotFound ErrorCode = "transaction_not_found"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeMatchingFailed ErrorCode = "matching_failed"
	CodePersistFailed  ErrorCode = "persist_failed"

	// Storage errors
	CodeQueryFailed ErrorCode = "query_failed"
	CodeWriteFailed ErrorCode = "write_failed"

	// Network errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation, CategoryNotFound:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryStorage, CategoryInternal:
		return 5
	case CategoryNetwork:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// ContextKeys returns the context keys in sorted order
func (e *ReconcilerError) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates an error for an uploaded or local file
func FileError(code ErrorCode, name string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", name)
		suggestion = "check if the file path is correct and the file exists"
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported file format: %s", name)
		suggestion = "upload an .ofx or .csv file"
	case CodeFileUnreadable:
		message = fmt.Sprintf("file could not be read: %s", name)
		suggestion = "check file permissions and encoding"
	default:
		message = fmt.Sprintf("file error: %s", name)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", name)
}

// ParseError creates an error for a file that could not be tokenized at all
func ParseError(code ErrorCode, format, name string, err error) *ReconcilerError {
	var message string
	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid %s structure in %s", format, name)
	default:
		message = fmt.Sprintf("failed to parse %s file %s", format, name)
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion("verify the export was not truncated or edited by hand").
		WithContext("file", name).
		WithContext("format", format)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, message string, err error) *ReconcilerError {
	var suggestion string

	switch code {
	case CodeSelfMatch:
		suggestion = "choose a different transaction to match against"
	case CodeAlreadyReconciled:
		suggestion = "only pending transactions can be reconciled"
	case CodeIncompatibleStatus:
		suggestion = "pair one pending-ledger transaction with one pending-statement transaction"
	case CodeMissingField:
		suggestion = "provide a value for this required field"
	case CodeInvalidUploadType:
		suggestion = "use upload type 'stripe' or 'bank'"
	default:
		suggestion = "check the request and try again"
	}

	return build(CategoryValidation, code, message, err).WithSuggestion(suggestion)
}

// NotFoundError reports a reference to a transaction that does not exist
func NotFoundError(id string) *ReconcilerError {
	return New(CategoryNotFound, CodeTransactionNotFound, fmt.Sprintf("transaction not found: %s", id)).
		WithContext("id", id)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, config file or RECONCILER_ environment variable"
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	switch code {
	case CodePersistFailed:
		message = fmt.Sprintf("failed to persist results during %s", operation)
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
	}

	return build(CategoryReconciliation, code, message, err).
		WithContext("operation", operation)
}

// StorageError wraps a failure of the transaction store
func StorageError(code ErrorCode, operation string, err error) *ReconcilerError {
	return build(CategoryStorage, code, fmt.Sprintf("storage %s failed", operation), err).
		WithContext("operation", operation)
}

// NetworkError creates a network-related error
func NetworkError(code ErrorCode, endpoint string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeUnauthorized:
		message = fmt.Sprintf("not authorized to access %s", endpoint)
		suggestion = "reconnect the spreadsheet account and retry"
	default:
		message = fmt.Sprintf("connection failed to %s", endpoint)
		suggestion = "check network connectivity and endpoint availability"
	}

	return build(CategoryNetwork, code, message, err).
		WithSuggestion(suggestion).
		WithContext("endpoint", endpoint)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *ReconcilerError {
	return build(CategoryInternal, CodeUnexpectedError, fmt.Sprintf("unexpected error during %s", operation), err).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// IsReconcilerError checks if an error is a ReconcilerError
func IsReconcilerError(err error) bool {
	_, ok := AsReconcilerError(err)
	return ok
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCategory reports whether err carries a ReconcilerError of category
func HasCategory(err error, category ErrorCategory) bool {
	re, ok := AsReconcilerError(err)
	return ok && re.Category == category
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// Join combines per-file failures into one error, or nil when errs is empty
func Join(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%d errors occurred: %s", len(errs), strings.Join(msgs, "; "))
}
