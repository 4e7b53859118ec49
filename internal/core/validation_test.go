package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validRow() RawRow {
	return RawRow{
		"date":        "2024-01-15",
		"amount":      "12.50",
		"description": "Coffee",
		"account":     "Checking",
		"category":    "",
		"currency":    "",
		"note":        "",
	}
}

func withField(field, value string) RawRow {
	row := validRow()
	row[field] = value
	return row
}

func TestValidateRow_Valid(t *testing.T) {
	row := validRow()
	row["category"] = "Food"
	row["currency"] = "USD"
	row["note"] = "team offsite"

	txn, errs := ValidateRow(row)
	if len(errs) != 0 {
		t.Fatalf("ValidateRow() errors = %v, want none", errs)
	}

	if !txn.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", txn.Date)
	}
	if !txn.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Amount = %s, want 12.5", txn.Amount)
	}
	if txn.AccountName != "Checking" || txn.CategoryName != "Food" || txn.Currency != "USD" || txn.Note != "team offsite" {
		t.Errorf("unexpected transaction: %+v", txn)
	}
}

func TestValidateRow_Fields(t *testing.T) {
	tests := []struct {
		name    string
		row     RawRow
		wantErr string // substring; empty means valid
	}{
		// Date
		{name: "date required", row: withField("date", ""), wantErr: "date: required"},
		{name: "date other format", row: withField("date", "15/01/2024"), wantErr: "date: must be in YYYY-MM-DD format"},
		{name: "date with time", row: withField("date", "2024-01-15T10:00:00Z"), wantErr: "date: must be in YYYY-MM-DD format"},
		{name: "date not on calendar", row: withField("date", "2024-02-30"), wantErr: "date: not a valid calendar date"},
		{name: "leap day", row: withField("date", "2024-02-29")},

		// Amount
		{name: "amount required", row: withField("amount", ""), wantErr: "amount: required"},
		{name: "amount comma separator", row: withField("amount", "12,50")},
		{name: "amount zero", row: withField("amount", "0")},
		{name: "amount not a number", row: withField("amount", "twelve"), wantErr: "amount: must be a number"},
		{name: "amount negative", row: withField("amount", "-5.00"), wantErr: "amount: must not be negative"},
		{name: "amount exponent", row: withField("amount", "1e5"), wantErr: "amount: must be a number"},
		{name: "amount huge exponent", row: withField("amount", "1e300000000"), wantErr: "amount: must be a number"},
		{name: "amount two separators", row: withField("amount", "1.000,50"), wantErr: "amount: must be a number"},

		// Description
		{name: "description empty", row: withField("description", ""), wantErr: "description: required"},
		{name: "description 255", row: withField("description", strings.Repeat("a", 255))},
		{name: "description 256", row: withField("description", strings.Repeat("a", 256)), wantErr: "description: must be at most 255 characters"},
		{name: "description counts characters not bytes", row: withField("description", strings.Repeat("é", 255))},

		// Account
		{name: "account required", row: withField("account", "  "), wantErr: "account: required"},

		// Currency
		{name: "currency two letters", row: withField("currency", "EU"), wantErr: "currency: must be exactly 3 characters"},
		{name: "currency lower case passes length check", row: withField("currency", "usd")},

		// Note
		{name: "note 500", row: withField("note", strings.Repeat("n", 500))},
		{name: "note 501", row: withField("note", strings.Repeat("n", 501)), wantErr: "note: must be at most 500 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := ValidateRow(tt.row)
			joined := strings.Join(errs, "; ")

			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("ValidateRow() errors = %q, want none", joined)
				}
				return
			}
			if !strings.Contains(joined, tt.wantErr) {
				t.Errorf("ValidateRow() errors = %q, want %q", joined, tt.wantErr)
			}
		})
	}
}

func TestValidateRow_CollectsAllErrors(t *testing.T) {
	row := validRow()
	row["date"] = "yesterday"
	row["amount"] = "-1"
	row["description"] = ""

	_, errs := ValidateRow(row)

	want := []string{
		"date: must be in YYYY-MM-DD format",
		"amount: must not be negative",
		"description: required",
	}
	if len(errs) != len(want) {
		t.Fatalf("errors = %v, want %v", errs, want)
	}
	for i := range want {
		if errs[i] != want[i] {
			t.Errorf("errs[%d] = %q, want %q", i, errs[i], want[i])
		}
	}
}

func TestValidateRow_DecimalSeparator(t *testing.T) {
	comma, errs := ValidateRow(withField("amount", "12,50"))
	if len(errs) != 0 {
		t.Fatalf("comma errors = %v", errs)
	}
	dot, errs := ValidateRow(withField("amount", "12.50"))
	if len(errs) != 0 {
		t.Fatalf("dot errors = %v", errs)
	}

	if !comma.Amount.Equal(dot.Amount) {
		t.Errorf("12,50 = %s, 12.50 = %s, want equal", comma.Amount, dot.Amount)
	}
}

func TestValidateRow_MissingOptionalColumns(t *testing.T) {
	row := RawRow{
		"date":        "2024-01-15",
		"amount":      "1",
		"description": "Bus",
		"account":     "Checking",
	}

	txn, errs := ValidateRow(row)
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	if txn.CategoryName != "" || txn.Currency != "" || txn.Note != "" {
		t.Errorf("optional fields should be empty: %+v", txn)
	}
}
