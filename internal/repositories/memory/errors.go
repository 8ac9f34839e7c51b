package memory

import "fmt"

// Error implements repositories.RepositoryError for the in-memory backend.
type Error struct {
	op       string
	message  string
	notFound bool
	conflict bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.message)
	}
	return e.message
}

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a conflicting update.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable always reports false; the memory backend has no transient failures.
func (e *Error) IsUnavailable() bool {
	return false
}

func notFoundError(op, format string, args ...any) *Error {
	return &Error{op: op, message: fmt.Sprintf(format, args...), notFound: true}
}

func conflictError(op, format string, args ...any) *Error {
	return &Error{op: op, message: fmt.Sprintf(format, args...), conflict: true}
}
