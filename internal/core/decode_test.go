package core

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows to the first sheet of a new workbook.
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBF Date ,AMOUNT,Description,Account\n" +
		"2024-01-15, 12.50 ,\"Coffee, large\",Checking\n" +
		"\n" +
		",,,\n" +
		"2024-01-16,3\n" +
		"2024-01-17,4,Tea,Savings,extra\n")

	table, err := Decode(data, ContentTypeCSV)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	wantColumns := []string{"date", "amount", "description", "account"}
	if len(table.Columns) != len(wantColumns) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantColumns)
	}
	for i, c := range wantColumns {
		if table.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, table.Columns[i], c)
		}
	}

	if len(table.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(table.Rows))
	}

	first := table.Rows[0]
	if first["amount"] != "12.50" {
		t.Errorf("amount = %q, want trimmed %q", first["amount"], "12.50")
	}
	if first["description"] != "Coffee, large" {
		t.Errorf("description = %q, want quoted field kept whole", first["description"])
	}

	short := table.Rows[1]
	if v, ok := short["account"]; !ok || v != "" {
		t.Errorf("short row account = %q (present %v), want empty and present", v, ok)
	}

	long := table.Rows[2]
	if len(long) != 4 {
		t.Errorf("long row has %d keys, want 4", len(long))
	}
}

func TestDecode_CSVMalformed(t *testing.T) {
	data := []byte("date,amount,description,account\n2024-01-15,1,\"unterminated,Checking\n")

	_, err := Decode(data, ContentTypeCSV)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
	if decodeErr.ContentType != ContentTypeCSV {
		t.Errorf("ContentType = %v, want csv", decodeErr.ContentType)
	}
}

func TestDecode_CSVInvalidUTF8(t *testing.T) {
	data := []byte("date,amount,description,account\n2024-01-15,1,caf\xe9,Checking\n")

	table, err := Decode(data, ContentTypeCSV)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := table.Rows[0]["description"]; got != "caf\uFFFD" {
		t.Errorf("description = %q, want replacement character", got)
	}
}

func TestDecode_XLSX(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Date", "Amount", "Description", "Account", "Category"},
		{"2024-01-15", "12.50", "Coffee", "Checking"},
		{},
		{"2024-01-16", "3", "Tea", "Checking", "Food"},
	})

	table, err := Decode(data, ContentTypeXLSX)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}

	first := table.Rows[0]
	if v, ok := first["category"]; !ok || v != "" {
		t.Errorf("missing cell category = %q (present %v), want empty and present", v, ok)
	}
	if first["description"] != "Coffee" {
		t.Errorf("description = %q, want Coffee", first["description"])
	}
	if table.Rows[1]["category"] != "Food" {
		t.Errorf("category = %q, want Food", table.Rows[1]["category"])
	}
}

func TestDecode_XLSXMalformed(t *testing.T) {
	_, err := Decode([]byte("definitely not a zip archive"), ContentTypeXLSX)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
}

func TestDecode_UnsupportedType(t *testing.T) {
	_, err := Decode([]byte("a,b\n1,2\n"), ContentTypeUnknown)

	if !errors.Is(err, ErrUnsupportedContentType) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedContentType", err)
	}
}

func TestParseContentType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		fileName string
		want     ContentType
		wantErr  bool
	}{
		{name: "csv mime", mimeType: "text/csv", want: ContentTypeCSV},
		{name: "csv mime with charset", mimeType: "text/csv; charset=utf-8", want: ContentTypeCSV},
		{name: "xlsx mime", mimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", want: ContentTypeXLSX},
		{name: "octet stream falls back to extension", mimeType: "application/octet-stream", fileName: "bank.XLSX", want: ContentTypeXLSX},
		{name: "no mime csv extension", fileName: "export.csv", want: ContentTypeCSV},
		{name: "pdf rejected", mimeType: "application/pdf", fileName: "statement.pdf", wantErr: true},
		{name: "legacy xls rejected", mimeType: "application/vnd.ms-excel", fileName: "old.xls", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentType(tt.mimeType, tt.fileName)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedContentType) {
					t.Errorf("error = %v, want ErrUnsupportedContentType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseContentType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckHeaders(t *testing.T) {
	full := RawRow{"date": "", "amount": "", "description": "", "account": ""}

	tests := []struct {
		name      string
		rows      []RawRow
		wantField string
	}{
		{name: "all present", rows: []RawRow{full}},
		{name: "extra columns allowed", rows: []RawRow{{"date": "", "amount": "", "description": "", "account": "", "note": ""}}},
		{name: "missing account", rows: []RawRow{{"date": "", "amount": "", "description": ""}}, wantField: "account"},
		{name: "first missing wins", rows: []RawRow{{"account": "", "description": ""}}, wantField: "date"},
		{name: "no rows means no headers", rows: nil, wantField: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckHeaders(tt.rows)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("CheckHeaders() error = %v, want nil", err)
				}
				return
			}

			var headerErr *MissingHeaderError
			if !errors.As(err, &headerErr) {
				t.Fatalf("CheckHeaders() error = %v, want *MissingHeaderError", err)
			}
			if headerErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", headerErr.Field, tt.wantField)
			}
		})
	}
}
