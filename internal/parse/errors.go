package parse

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRecord = errors.New("unsupported record type")
	ErrTruncated         = errors.New("truncated record")
	ErrBadTimestamp      = errors.New("missing or malformed timestamp")
	ErrMissingField      = errors.New("missing reply field")

	// ErrUnsupportedTransformation is reserved for conversions outside the
	// import pipeline.
	ErrUnsupportedTransformation = errors.New("unsupported transformation")
)

// DecodeError reports malformed content inside an archive file. Offset is a
// byte offset for Yahoo archives and a reply ordinal for Digsby archives.
type DecodeError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at %d: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PathFormatError reports an archive file whose path does not follow the
// layout of its format.
type PathFormatError struct {
	Path   string
	Layout string
	Reason string
}

func (e *PathFormatError) Error() string {
	return fmt.Sprintf("%s: %s (expected layout %s)", e.Path, e.Reason, e.Layout)
}

// FilesystemError reports an unreadable file or directory.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
