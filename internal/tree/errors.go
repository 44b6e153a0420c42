package tree

import (
	"errors"
	"fmt"
)

var (
	ErrMinCardinality = errors.New("collection is at its minimum size")
	ErrUnknownPath    = errors.New("unknown path")
	ErrInvalidValue   = errors.New("invalid value")
)

// ValidationError is a refused mutation. The tree is left unchanged.
type ValidationError struct {
	Path    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func unknownPath(path string) error {
	return &ValidationError{Path: path, Message: "no such field or collection", Err: ErrUnknownPath}
}

func invalidValue(path, message string) error {
	return &ValidationError{Path: path, Message: message, Err: ErrInvalidValue}
}

func minCardinality(path, collection string, min int) error {
	return &ValidationError{
		Path:    path,
		Message: fmt.Sprintf("%s needs at least %d item(s)", collection, min),
		Err:     ErrMinCardinality,
	}
}
