// Package errors provides helpers to attach source traces and context to
// errors for easier debugging. The wrappers mask the original error from type
// assertions, so Cause must be used when matching sentinel errors across
// package boundaries.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// New returns an error with the provided message.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf returns an error with a formatted message.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

type aerr struct {
	err         error
	trace       []string
	annotations []string
}

func (e aerr) Error() string {
	es := e.err.Error()
	if len(e.annotations) != 0 {
		es += " (" + strings.Join(e.annotations, ", ") + ")"
	}
	if len(e.trace) != 0 {
		es += " [" + strings.Join(e.trace, ", ") + "]"
	}
	return es
}

func wrap(err error) aerr {
	if e, ok := err.(aerr); ok {
		return e
	}
	return aerr{err: err}
}

// Trace wraps an error recording the file:line of the caller. Calling it on
// an already traced error appends to the trace.
func Trace(err error) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.trace = append(e.trace, callerString(1))
	return e
}

// Annotate adds context to an error. It can be used to attach more
// information that is useful for debugging.
func Annotate(err error, msg string) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, msg)
	return e
}

// Annotatef adds formatted context to an error.
func Annotatef(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	e := wrap(err)
	e.annotations = append(e.annotations, fmt.Sprintf(format, args...))
	return e
}

// Annotations returns all annotations attached to an error.
func Annotations(err error) []string {
	if e, ok := err.(aerr); ok {
		return e.annotations
	}
	return nil
}

// Cause returns the original error ignoring any trace or annotation wrappers.
func Cause(err error) error {
	if e, ok := err.(aerr); ok {
		return e.err
	}
	return err
}

func callerString(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	depth := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			depth++
			if depth == 2 {
				file = file[i+1:]
				break
			}
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}
