package core

// error_messages.go maps technical errors to user-facing messages.
//
// Every message carries a code that users can quote to support. Codes are
// grouped by prefix:
//
//	DB001-DB099    store errors (duplicates, connectivity, timeouts)
//	VAL001-VAL099  field validation failures inside a record
//	FILE001-FILE099 problems with the uploaded file as a whole
//	IMP001-IMP099  import processing (busy, cancelled, crashed record)
//	RATE001        request throttling
//	REQ001         malformed API requests
//	ERR000         anything unrecognised; check the logs for the original error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns must come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Store Errors (DB001-DB008)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A ticket with this ID already exists",
			Action:  "Retry the import; a new ID is generated each time",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the ticket store",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Connection to the ticket store was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Saving the ticket timed out",
			Action:  "Re-import the failed records later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "The ticket store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "ticket not found",
		msg: UserMessage{
			Message: "Ticket not found",
			Action:  "Check the ticket ID",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL006)
	// =========================================================================
	{
		pattern: "invalid email",
		msg: UserMessage{
			Message: "Customer email is not a valid address",
			Action:  "Use the form name@example.com",
			Code:    "VAL001",
		},
	},
	{
		pattern: "must be between",
		msg: UserMessage{
			Message: "A text field is too short or too long",
			Action:  "Subjects need 1-200 characters and descriptions 10-2000",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Provide customer name, customer email, subject and description",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL004",
		},
	},
	{
		pattern: "must be at most",
		msg: UserMessage{
			Message: "A field value is too long",
			Action:  "Shorten the value to the documented limit",
			Code:    "VAL005",
		},
	},
	{
		pattern: "not an object",
		msg: UserMessage{
			Message: "Entry is not a ticket record",
			Action:  "Each array element must be a JSON object",
			Code:    "VAL006",
		},
	},
	{
		pattern: "quoted-field",
		msg: UserMessage{
			Message: "Row has broken quoting",
			Action:  "Escape quotes inside quoted values by doubling them",
			Code:    "VAL006",
		},
	},
	{
		pattern: "bare \" in non-quoted-field",
		msg: UserMessage{
			Message: "Row has broken quoting",
			Action:  "Wrap values that contain quotes in double quotes",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller batches",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Upload a .csv, .json or .xml file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "not valid utf-8",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file with UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file is empty",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with ticket records",
			Code:    "FILE005",
		},
	},
	{
		pattern: "malformed",
		msg: UserMessage{
			Message: "File could not be read",
			Action:  "Check the file structure; nothing was imported",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Re-import the unprocessed records",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP003",
		},
	},
	{
		pattern: "panic",
		msg: UserMessage{
			Message: "Processing this record failed unexpectedly",
			Action:  "Contact support with the record number",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and query parameters",
			Code:    "REQ001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(errors.New("customer_email: invalid email format"))
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
