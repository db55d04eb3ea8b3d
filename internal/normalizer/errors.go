package normalizer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a normalization failure.
type ErrorKind int

const (
	KindUnsupportedFormat ErrorKind = iota + 1
	KindCorruptFile
	KindEmptyContent
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptFile       = errors.New("corrupt file")
	ErrEmptyContent      = errors.New("empty content")
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindCorruptFile:
		return "corrupt_file"
	case KindEmptyContent:
		return "empty_content"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnsupportedFormat:
		return ErrUnsupportedFormat
	case KindCorruptFile:
		return ErrCorruptFile
	case KindEmptyContent:
		return ErrEmptyContent
	default:
		return errors.New("normalization failed")
	}
}

// Error is returned by Normalize. It matches the Err* sentinels with errors.Is.
type Error struct {
	Kind     ErrorKind
	Format   Format
	Filename string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("normalize %q as %s: %s", e.Filename, e.Format, e.Kind.sentinel())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the kind of a normalization error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Kind
	}
	return 0
}
