package util

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used throughout sqlgit
var (
	ErrNotARepository           = errors.New("not a sqlgit repository")
	ErrAlreadyInitialized       = errors.New("sqlgit repository already exists")
	ErrUnsupportedSchemaVersion = errors.New("unsupported schema version")
	ErrObjectNotFound           = errors.New("object not found")
	ErrRefNotFound              = errors.New("ref not found")
	ErrBusy                     = errors.New("database is busy")
	ErrCorruptReferenceList     = errors.New("corrupt chunk reference list")
	ErrNoIndex                  = errors.New("bare repository has no index")
	ErrCompression              = errors.New("compression error")
	ErrFTSUnavailable           = errors.New("FTS5 is not available in this SQLite build")
)

// SqlgitError is a structured error with context and suggestions
type SqlgitError struct {
	Title       string   // Short error title
	Message     string   // Detailed message
	Context     string   // What was being attempted
	Suggestions []string // Actionable suggestions with commands
	Err         error    // Wrapped error
}

func (e *SqlgitError) Error() string {
	return e.Title
}

func (e *SqlgitError) Unwrap() error {
	return e.Err
}

// Format returns a nicely formatted error message
func (e *SqlgitError) Format() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Title))

	if e.Message != "" {
		sb.WriteString(fmt.Sprintf("\n  %s\n", e.Message))
	}
	if e.Context != "" {
		sb.WriteString(fmt.Sprintf("\n  %s\n", e.Context))
	}

	if len(e.Suggestions) > 0 {
		sb.WriteString("\n  Try:\n")
		for _, sug := range e.Suggestions {
			sb.WriteString(fmt.Sprintf("    $ %s\n", sug))
		}
	}

	return sb.String()
}

// NewError creates a new SqlgitError
func NewError(title string) *SqlgitError {
	return &SqlgitError{Title: title}
}

// WithMessage adds a detailed message
func (e *SqlgitError) WithMessage(msg string) *SqlgitError {
	e.Message = msg
	return e
}

// WithContext adds context about what was being attempted
func (e *SqlgitError) WithContext(ctx string) *SqlgitError {
	e.Context = ctx
	return e
}

// WithSuggestion adds an actionable suggestion
func (e *SqlgitError) WithSuggestion(sug string) *SqlgitError {
	e.Suggestions = append(e.Suggestions, sug)
	return e
}

// Wrap wraps an underlying error
func (e *SqlgitError) Wrap(err error) *SqlgitError {
	e.Err = err
	return e
}

// NotARepoError returns a structured error for "not a repository"
func NotARepoError(path string) *SqlgitError {
	return NewError("Not a sqlgit repository").
		WithMessage(fmt.Sprintf("%s is not an initialized sqlgit database", path)).
		WithSuggestion("sqlgit --db <path> init    # Initialize a new repository").
		Wrap(ErrNotARepository)
}
