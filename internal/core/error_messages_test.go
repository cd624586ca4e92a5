package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/ticketimport/internal/parse"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint \"tickets_pkey\""), "DB001"},
		{"unique constraint", errors.New("UNIQUE constraint failed: tickets.id"), "DB002"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB004"},
		{"store timeout", fmt.Errorf("save ticket: store timeout: %w", context.DeadlineExceeded), "DB006"},
		{"ticket not found", errors.New("ticket not found"), "DB008"},
		{"invalid email", ValidationError{Field: "customer_email", Message: "invalid email format"}, "VAL001"},
		{"length", ValidationError{Field: "description", Message: "must be between 10 and 2000 characters (got 5)"}, "VAL002"},
		{"required", ValidationError{Field: "subject", Message: "required field is empty"}, "VAL003"},
		{"enum", ValidationError{Field: "priority", Message: "invalid enum value, must be one of: urgent"}, "VAL004"},
		{"too long", ValidationError{Field: "browser", Message: "must be at most 200 characters (got 300)"}, "VAL005"},
		{"json element", errors.New("element 2 is a string, not an object"), "VAL006"},
		{"file too large", fmt.Errorf("import: %w", ErrFileTooLarge), "FILE001"},
		{"unsupported format", &parse.UnsupportedFormatError{FileName: "a.txt"}, "FILE002"},
		{"bad encoding", &parse.MalformedFileError{Format: parse.FormatCSV, Reason: "file is not valid UTF-8"}, "FILE003"},
		{"empty json", &parse.MalformedFileError{Format: parse.FormatJSON, Reason: "file is empty"}, "FILE005"},
		{"malformed xml", &parse.MalformedFileError{Format: parse.FormatXML, Reason: "invalid XML"}, "FILE006"},
		{"busy", ErrTooManyImports, "IMP001"},
		{"cancelled", context.Canceled, "IMP002"},
		{"deadline", context.DeadlineExceeded, "IMP003"},
		{"panic", errors.New("panic while processing record: boom"), "IMP004"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"bad request", errors.New("invalid request body: unexpected EOF"), "REQ001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
		{"case insensitive", errors.New("DUPLICATE KEY value"), "DB001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyImports)
	want := "System is busy processing other imports (Code: IMP001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"known", errors.New("duplicate key"), true},
		{"unknown", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRecordFailure(t *testing.T) {
	rec := parse.Record{Index: 2, Line: 3}

	tests := []struct {
		name     string
		err      error
		wantText string
		wantCode string
	}{
		{"unmapped keeps raw text", errors.New("some random internal error"), "some random internal error", "ERR000"},
		{"validation keeps field text", errors.New("customer_email: invalid email format"), "customer_email: invalid email format", "VAL001"},
		{"mapped shows user message", ErrTooManyImports, MapError(ErrTooManyImports).Message, "IMP001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := recordFailure(rec, tt.err)
			if f.RecordIndex != 2 || f.Line != 3 {
				t.Errorf("position = %d/%d, want 2/3", f.RecordIndex, f.Line)
			}
			if f.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", f.Code, tt.wantCode)
			}
			if len(f.Errors) != 1 || f.Errors[0] != tt.wantText {
				t.Errorf("Errors = %q, want [%q]", f.Errors, tt.wantText)
			}
		})
	}
}
