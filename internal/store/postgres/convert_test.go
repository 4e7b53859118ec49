package postgres

import (
	"io/fs"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// Numeric Tests
// ----------------------------------------------------------------------------

func TestNumericRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "integer", input: "123"},
		{name: "zero", input: "0"},
		{name: "two places", input: "42.50"},
		{name: "many places", input: "0.000123"},
		{name: "large", input: "98765432109876543210.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.input)

			n, err := toPgNumeric(want)
			if err != nil {
				t.Fatalf("toPgNumeric(%s) error = %v", tt.input, err)
			}
			if !n.Valid {
				t.Fatalf("toPgNumeric(%s) not valid", tt.input)
			}

			got, err := fromPgNumeric(n)
			if err != nil {
				t.Fatalf("fromPgNumeric() error = %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("round trip = %s, want %s", got, want)
			}
		})
	}
}

func TestFromPgNumeric_Invalid(t *testing.T) {
	tests := []struct {
		name string
		n    pgtype.Numeric
	}{
		{name: "null", n: pgtype.Numeric{}},
		{name: "nan", n: pgtype.Numeric{NaN: true, Valid: true}},
		{name: "infinity", n: pgtype.Numeric{Int: big.NewInt(0), InfinityModifier: pgtype.Infinity, Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fromPgNumeric(tt.n); err == nil {
				t.Error("fromPgNumeric() error = nil, want error")
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Date Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	in := time.Date(2024, 2, 29, 23, 30, 0, 0, loc)

	d := toPgDate(in)
	if !d.Valid {
		t.Fatal("toPgDate() not valid")
	}

	got, err := fromPgDate(d)
	if err != nil {
		t.Fatalf("fromPgDate() error = %v", err)
	}
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("date = %v, want %v", got, want)
	}

	if toPgDate(time.Time{}).Valid {
		t.Error("toPgDate(zero) is valid, want NULL")
	}
	if _, err := fromPgDate(pgtype.Date{}); err == nil {
		t.Error("fromPgDate(NULL) error = nil")
	}
}

// ----------------------------------------------------------------------------
// Text, Int8 and UUID Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{input: "", wantValid: false},
		{input: "   ", wantValid: false},
		{input: " memo ", wantValid: true, want: "memo"},
	}

	for _, tt := range tests {
		got := toPgText(tt.input)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("toPgText(%q) = %+v, want valid=%v %q", tt.input, got, tt.wantValid, tt.want)
		}
		if fromPgText(got) != tt.want {
			t.Errorf("fromPgText(toPgText(%q)) = %q, want %q", tt.input, fromPgText(got), tt.want)
		}
	}
}

func TestPgInt8(t *testing.T) {
	if toPgInt8(nil).Valid {
		t.Error("toPgInt8(nil) is valid")
	}
	if fromPgInt8(pgtype.Int8{}) != nil {
		t.Error("fromPgInt8(NULL) != nil")
	}

	id := int64(42)
	got := fromPgInt8(toPgInt8(&id))
	if got == nil || *got != 42 {
		t.Errorf("round trip = %v, want 42", got)
	}
}

func TestPgUUID(t *testing.T) {
	if toPgUUID(uuid.Nil).Valid {
		t.Error("toPgUUID(Nil) is valid")
	}
	if fromPgUUID(pgtype.UUID{}) != uuid.Nil {
		t.Error("fromPgUUID(NULL) != Nil")
	}

	id := uuid.New()
	if got := fromPgUUID(toPgUUID(id)); got != id {
		t.Errorf("round trip = %s, want %s", got, id)
	}
}

// ----------------------------------------------------------------------------
// Migration Tests
// ----------------------------------------------------------------------------

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"postgres://user:pw@localhost:5432/app?sslmode=disable", "pgx5://user:pw@localhost:5432/app?sslmode=disable"},
		{"postgresql://localhost/app", "pgx5://localhost/app"},
		{"pgx5://localhost/app", "pgx5://localhost/app"},
	}

	for _, tt := range tests {
		if got := migrationURL(tt.input); got != tt.want {
			t.Errorf("migrationURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMigrationFiles(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	if len(ups) != len(downs) {
		t.Errorf("%d up migrations but %d down migrations", len(ups), len(downs))
	}
}

func TestDatabaseName(t *testing.T) {
	if got := DatabaseName("postgres://u:p@localhost:5432/ledger?sslmode=disable"); got != "ledger" {
		t.Errorf("DatabaseName() = %q, want ledger", got)
	}
}
