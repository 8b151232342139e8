package compare

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks requests rejected before any file is touched.
var ErrInvalidRequest = errors.New("invalid comparison request")

// DecodeError means an input image is missing, unreadable or not a valid PNG.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IOError means the baseline or the diff image could not be written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
