// Package cliutil provides output helpers for the oasguard command.
package cliutil

import (
	"fmt"
	"io"
	"os"
)

// Writef writes formatted output to w. A failed write is reported on stderr.
func Writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write error: %v\n", err)
	}
}

// Split returns the members of a joined error. A nil error yields nil and a
// plain error yields itself. Nested joins are not flattened.
func Split(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	return joined.Unwrap()
}

// WriteErrors writes each member of err on its own line, prefixed with
// source, and returns how many were written.
func WriteErrors(w io.Writer, source string, err error) int {
	errs := Split(err)
	for _, e := range errs {
		Writef(w, "%s: %v\n", source, e)
	}
	return len(errs)
}
