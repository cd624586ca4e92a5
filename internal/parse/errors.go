package parse

import (
	"fmt"
	"strings"
)

// UnsupportedFormatError reports a file whose extension and content type
// match none of the registered formats. Nothing was parsed.
type UnsupportedFormatError struct {
	FileName    string
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	name := e.FileName
	if name == "" {
		name = "(no filename)"
	}
	msg := fmt.Sprintf("unsupported file format for %q", name)
	if e.ContentType != "" {
		msg += fmt.Sprintf(" (content type %q)", e.ContentType)
	}
	return msg + "; supported extensions: " + strings.Join(extensionList(), ", ")
}

// MalformedFileError reports a file whose envelope could not be decoded.
// The whole batch is rejected and nothing is persisted.
type MalformedFileError struct {
	Format Format
	Reason string
	Err    error
}

func (e *MalformedFileError) Error() string {
	msg := fmt.Sprintf("malformed %s file: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedFileError) Unwrap() error {
	return e.Err
}

func malformed(format Format, reason string, err error) *MalformedFileError {
	return &MalformedFileError{Format: format, Reason: reason, Err: err}
}
