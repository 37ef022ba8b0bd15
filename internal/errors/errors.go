package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RepositoryUnavailable indicates the history store cannot be reached
	RepositoryUnavailable ErrorCode = "REPOSITORY_UNAVAILABLE"
	// ParseFailed indicates catalog content at a commit could not be parsed
	ParseFailed ErrorCode = "PARSE_FAILED"
	// CacheIO indicates the durable cache could not be read or written
	CacheIO ErrorCode = "CACHE_IO"
	// CacheUnavailable indicates no history has been computed yet
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// NotFound indicates a requested entry or file does not exist
	NotFound ErrorCode = "NOT_FOUND"
	// InvalidArgument indicates a malformed request or configuration value
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// Timeout indicates an operation timed out
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// TaxError is the error type returned across package boundaries.
type TaxError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a TaxError with the default fixes for its code
func New(code ErrorCode, message string, cause error) *TaxError {
	return &TaxError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *TaxError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TaxError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a TaxError with the same code.
func (e *TaxError) Is(target error) bool {
	t, ok := target.(*TaxError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithDetails adds details to the error
func (e *TaxError) WithDetails(details interface{}) *TaxError {
	e.Details = details
	return e
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrRepositoryUnavailable = &TaxError{Code: RepositoryUnavailable}
	ErrParseFailed           = &TaxError{Code: ParseFailed}
	ErrCacheIO               = &TaxError{Code: CacheIO}
	ErrNotFound              = &TaxError{Code: NotFound}
)

// NewRepositoryAccessError reports that the history store is unreachable.
func NewRepositoryAccessError(message string, cause error) *TaxError {
	return New(RepositoryUnavailable, message, cause)
}

// NewParseError reports that content at a commit failed to parse.
func NewParseError(commit, path string, cause error) *TaxError {
	return New(ParseFailed, "Failed to parse catalog content", cause).WithDetails(map[string]interface{}{
		"commit": commit,
		"path":   path,
	})
}

// NewCacheIOError reports a durable cache read or write failure.
func NewCacheIOError(op string, cause error) *TaxError {
	return New(CacheIO, "Cache "+op+" failed", cause)
}

// CodeOf extracts the error code from err, or InternalError when err is not a TaxError.
func CodeOf(err error) ErrorCode {
	var te *TaxError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return InternalError
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	RepositoryUnavailable: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify the configured repository root is a git repository",
		},
	},
	CacheIO: {
		{
			Type:        RunCommand,
			Command:     "taxhist reset",
			Safe:        true,
			Description: "Delete the persisted history cache and rebuild it",
		},
	},
	CacheUnavailable: {
		{
			Type:        RunCommand,
			Command:     "taxhist refresh --force",
			Safe:        true,
			Description: "Build the history cache synchronously",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
