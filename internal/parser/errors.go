package parser

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds raised while loading a measurement file. Use errors.Is to
// test a returned error against them.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrParse        = errors.New("parse error")
	ErrSchema       = errors.New("schema error")
	ErrDivideByZero = errors.New("divide by zero")
)

// LoadError ties an error kind to the file (and line, when known) that
// produced it.
type LoadError struct {
	Path string
	Line int
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", loc, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", loc, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As.
func (e *LoadError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
