package core

// error_messages.go maps technical errors to coded user messages.
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Typed errors returned by the pipeline are matched first (errors.As / errors.Is),
// then the technical message is matched against known patterns.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A transaction with these values already exists
//	        Patterns: "duplicate key"
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//
//	DB003 - Foreign key: Referenced account or category does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Patterns: "invalid csv"
//
//	FILE003 - Encoding error: File contains invalid characters
//	          Patterns: "encoding error"
//
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//
//	FILE006 - Invalid workbook: File is not a valid XLSX workbook
//	          Patterns: "invalid workbook"
//
//	FILE007 - Unsupported format: Only CSV and XLSX files can be imported
//	          Errors: ErrUnsupportedContentType
//
// # Header Errors (HDR001)
//
//	HDR001 - Missing column: A required column is missing
//	         Errors: *MissingHeaderError
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Invalid tenant: The tenant id is not valid
//	         Patterns: "invalid tenant"
//
//	IMP002 - History unavailable: This store does not keep an import history
//	         Errors: ErrHistoryUnavailable
//
// # Rate Limit Errors (RATE001)
//
//	RATE001 - Too many requests: The client sent too many imports
//	          Patterns: "rate limit exceeded"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many imports in progress
//	         Errors: ErrTooManyImports
//
//	UPL004 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	UPL005 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Multiple patterns can map to the same code
// (e.g., DB002 matches both "unique constraint" and "violates unique").
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000, check application logs for the original technical error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A transaction with these values already exists",
			Action:  "Remove the repeated row and import again",
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
			Action:  "Review your data for duplicate values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced account or category does not exist",
			Action:  "Create the account or category before importing",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced account or category does not exist",
			Action:  "Create the account or category before importing",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Request Errors (UPL004-UPL005)
	// Matched before the generic "timeout" pattern.
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated and quotes are balanced",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "File is not a valid XLSX workbook",
			Action:  "Save the file as .xlsx and make sure it has at least one sheet",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Rate Limit Errors (RATE001)
	// =========================================================================
	{
		pattern: "rate limit exceeded",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a minute before importing again",
			Code:    "RATE001",
		},
	},

	// =========================================================================
	// Import Errors (IMP001)
	// =========================================================================
	{
		pattern: "invalid tenant",
		msg: UserMessage{
			Message: "The tenant id is not valid",
			Action:  "Use the numeric id of an existing tenant",
			Code:    "IMP001",
		},
	},
}

var (
	unsupportedMessage = UserMessage{
		Message: "Only CSV and XLSX files can be imported",
		Action:  "Export the data as .csv or .xlsx and try again",
		Code:    "FILE007",
	}

	busyMessage = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}

	historyMessage = UserMessage{
		Message: "Import history is not available",
		Action:  "Use a store that records import history",
		Code:    "IMP002",
	}
)

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed pipeline errors are recognized first; otherwise the known patterns
// are searched case-insensitively and the first match wins. If nothing
// matches, a generic fallback message with code ERR000 is returned.
//
// Example:
//
//	err := &MissingHeaderError{Field: "account"}
//	msg := MapError(err)
//	// msg.Code == "HDR001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var headerErr *MissingHeaderError
	switch {
	case errors.As(err, &headerErr):
		return UserMessage{
			Message: fmt.Sprintf("Required column is missing: %s", headerErr.Field),
			Action:  "Add the column to the header row. Required columns: " + strings.Join(RequiredColumns, ", "),
			Code:    "HDR001",
		}
	case errors.Is(err, ErrUnsupportedContentType):
		return unsupportedMessage
	case errors.Is(err, ErrTooManyImports):
		return busyMessage
	case errors.Is(err, ErrHistoryUnavailable):
		return historyMessage
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// This is the message stored on a row that failed because the store failed.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
