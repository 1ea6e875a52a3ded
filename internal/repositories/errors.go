package repositories

import "fmt"

type errorKind int

const (
	kindUnknown errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

type repositoryError struct {
	kind errorKind
	msg  string
	err  error
}

func (e *repositoryError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *repositoryError) Unwrap() error { return e.err }

func (e *repositoryError) IsNotFound() bool    { return e.kind == kindNotFound }
func (e *repositoryError) IsConflict() bool    { return e.kind == kindConflict }
func (e *repositoryError) IsUnavailable() bool { return e.kind == kindUnavailable }

// NewNotFound builds a RepositoryError reporting a missing record.
func NewNotFound(msg string, err error) RepositoryError {
	return &repositoryError{kind: kindNotFound, msg: msg, err: err}
}

// NewConflict builds a RepositoryError reporting a uniqueness or state conflict.
func NewConflict(msg string, err error) RepositoryError {
	return &repositoryError{kind: kindConflict, msg: msg, err: err}
}

// NewUnavailable builds a RepositoryError reporting a transient backend failure.
func NewUnavailable(msg string, err error) RepositoryError {
	return &repositoryError{kind: kindUnavailable, msg: msg, err: err}
}

// NewUnknown builds an uncategorised RepositoryError.
func NewUnknown(msg string, err error) RepositoryError {
	return &repositoryError{kind: kindUnknown, msg: msg, err: err}
}

// IsNotFound reports whether err categorises as a missing record.
func IsNotFound(err error) bool {
	re, ok := err.(RepositoryError)
	return ok && re.IsNotFound()
}

// IsConflict reports whether err categorises as a conflict.
func IsConflict(err error) bool {
	re, ok := err.(RepositoryError)
	return ok && re.IsConflict()
}

// IsUnavailable reports whether err categorises as a transient failure.
func IsUnavailable(err error) bool {
	re, ok := err.(RepositoryError)
	return ok && re.IsUnavailable()
}
