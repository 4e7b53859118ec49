package postgres

// convert.go converts between domain values and pgtype values.
//
// All to* helpers return pgtype values with Valid=false for absent input,
// allowing the database to store NULL.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// toPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// fromPgText returns the string, or "" for NULL.
func fromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return strings.TrimSpace(t.String)
}

// toPgDate converts a calendar date to pgtype.Date. Only the year, month and
// day of t are kept.
func toPgDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// fromPgDate returns the date at UTC midnight.
func fromPgDate(d pgtype.Date) (time.Time, error) {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return time.Time{}, errors.New("date is null or infinite")
	}
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
}

// toPgNumeric converts an exact decimal to pgtype.Numeric.
func toPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("convert amount %s: %w", d, err)
	}
	return n, nil
}

// fromPgNumeric converts a finite pgtype.Numeric to a decimal.
func fromPgNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Decimal{}, errors.New("amount is null")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Decimal{}, errors.New("amount is not a finite number")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// toPgInt8 converts an optional id to pgtype.Int8.
func toPgInt8(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

// fromPgInt8 returns nil for NULL.
func fromPgInt8(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

// toPgUUID converts a uuid.UUID to pgtype.UUID.
// Returns invalid for the nil UUID.
func toPgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// fromPgUUID returns uuid.Nil if the UUID is invalid.
func fromPgUUID(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return uuid.UUID(u.Bytes)
}
