package loader

import (
	"fmt"
)

// LoadError represents a failure to read a document from disk, such as a
// missing file, a permission problem, or a size or encoding violation.
type LoadError struct {
	// FilePath is the path to the file that failed to load
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DocumentError represents a document that could not be decoded into the
// expected shape.
type DocumentError struct {
	// Source names the document, usually its file path
	Source string

	// Line is the 1-indexed line of the error, or 0 when unknown
	Line int

	// Message describes the error
	Message string

	// Cause is the underlying decoder error
	Cause error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid document %q at line %d: %s", e.Source, e.Line, e.Message)
	}
	return fmt.Sprintf("invalid document %q: %s", e.Source, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *DocumentError) Unwrap() error {
	return e.Cause
}
