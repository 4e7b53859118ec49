package core

// errors.go defines the two error families of an import.
//
// File-level errors abort the whole import before any row is processed and
// are returned as distinct types so callers can map them with errors.As:
//   - DecodeError: the buffer cannot be parsed as the declared content type
//   - MissingHeaderError: a mandatory column is absent
//
// Row-level problems are never returned as errors. They become RowError
// entries in the ImportReport, tagged with a Reason.

import (
	"errors"
	"fmt"
)

// ErrUnsupportedContentType is returned when a declared type has no decoder.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// DecodeError reports a file that cannot be parsed as its declared type.
type DecodeError struct {
	ContentType ContentType
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MissingHeaderError reports the first mandatory column absent from the file.
type MissingHeaderError struct {
	Field string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing required header %q", e.Field)
}

// Reason classifies a row-level outcome.
type Reason string

const (
	ReasonInvalid         Reason = "invalid"
	ReasonUnknownAccount  Reason = "unknown_account"
	ReasonUnknownCategory Reason = "unknown_category"
	ReasonInvalidCurrency Reason = "invalid_currency"
	ReasonStorage         Reason = "storage"
	ReasonDuplicate       Reason = "duplicate"
)

// rowFailure is the internal result of a failed pipeline stage.
type rowFailure struct {
	reason  Reason
	message string
}

func failure(reason Reason, format string, args ...any) *rowFailure {
	return &rowFailure{reason: reason, message: fmt.Sprintf(format, args...)}
}
