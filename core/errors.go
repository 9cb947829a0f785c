package brc

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is wrapped by every BrcOptions validation failure.
var ErrInvalidOptions = errors.New("invalid options")

func optionsError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}

// IoError reports a failure to open, map or read the input file.
// It aborts the whole run.
type IoError struct {
	Op     string // open, stat, mmap, read
	Path   string
	Offset int64 // -1 when not tied to a position
	Err    error
}

func (e *IoError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s %s at offset %d: %v", e.Op, e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

type ParseReason string

const (
	ReasonSeparator ParseReason = "missing separator"
	ReasonEmptyKey  ParseReason = "empty key"
	ReasonValue     ParseReason = "malformed value"
)

// ParseError reports a line that does not match <key>;<value>.
type ParseError struct {
	Offset int64 // absolute offset of the line, -1 if unknown
	Line   []byte
	Reason ParseReason
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("line at offset %d: %s: %q", e.Offset, e.Reason, e.Line)
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Line)
}
