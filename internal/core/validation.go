package core

// validation.go turns a RawRow into a NormalizedTransaction.
//
// Every schema field has its own validator returning either a typed value or
// a ValidationError. ValidateRow runs all of them and collects every failure,
// so a row with a bad date and a bad amount reports both.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	dateLayout           = "2006-01-02"
	maxDescriptionLength = 255
	maxNoteLength        = 500
	currencyCodeLength   = 3
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// Plain positional notation only. Exponents such as 1e300000000 would
	// expand to hundreds of millions of digits when the amount is rendered.
	amountPattern = regexp.MustCompile(`^[+-]?(\d+([.,]\d*)?|[.,]\d+)$`)
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func invalid(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ValidateRow validates one decoded row. On success the returned slice is
// empty; otherwise it holds one "<field>: <problem>" message per failure in
// schema order and the transaction must not be used.
func ValidateRow(row RawRow) (NormalizedTransaction, []string) {
	var (
		txn  NormalizedTransaction
		errs []string
	)

	collect := func(err *ValidationError) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	var err *ValidationError

	txn.Date, err = validateDate(row["date"])
	collect(err)

	txn.Amount, err = validateAmount(row["amount"])
	collect(err)

	txn.Description, err = validateDescription(row["description"])
	collect(err)

	txn.AccountName, err = validateAccount(row["account"])
	collect(err)

	txn.CategoryName = strings.TrimSpace(row["category"])

	txn.Currency, err = validateCurrencyLength(row["currency"])
	collect(err)

	txn.Note, err = validateNote(row["note"])
	collect(err)

	if len(errs) > 0 {
		return NormalizedTransaction{}, errs
	}
	return txn, nil
}

// validateDate accepts only the literal YYYY-MM-DD form of a real calendar day.
func validateDate(raw string) (time.Time, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalid("date", raw, "required")
	}
	if !datePattern.MatchString(raw) {
		return time.Time{}, invalid("date", raw, "must be in YYYY-MM-DD format")
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, invalid("date", raw, "not a valid calendar date")
	}
	return t, nil
}

// validateAmount accepts "." or "," as the fractional separator.
func validateAmount(raw string) (decimal.Decimal, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, invalid("amount", raw, "required")
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, invalid("amount", raw, "must be a number")
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, invalid("amount", raw, "must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, invalid("amount", raw, "must not be negative")
	}
	return d, nil
}

func validateDescription(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	switch n := utf8.RuneCountInString(raw); {
	case n == 0:
		return "", invalid("description", raw, "required")
	case n > maxDescriptionLength:
		return "", invalid("description", raw, fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	return raw, nil
}

func validateAccount(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("account", raw, "required")
	}
	return raw, nil
}

// validateCurrencyLength only checks the length. The code format itself is
// checked when references are resolved.
func validateCurrencyLength(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if utf8.RuneCountInString(raw) != currencyCodeLength {
		return "", invalid("currency", raw, fmt.Sprintf("must be exactly %d characters", currencyCodeLength))
	}
	return raw, nil
}

func validateNote(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) > maxNoteLength {
		return "", invalid("note", raw, fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}
	return raw, nil
}
