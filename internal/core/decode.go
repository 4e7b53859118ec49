package core

// decode.go turns an uploaded buffer into a Table of RawRows.
//
// Both decoders share the same normalization:
//  1. The first non-empty record is the header; names are trimmed and lower-cased
//  2. Fully empty records are skipped
//  3. Every value is trimmed, and every row carries every header key
//
// Only the first sheet of a workbook is read. Any failure to parse the
// buffer is reported as a *DecodeError.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Decode parses data according to ct.
func Decode(data []byte, ct ContentType) (Table, error) {
	var (
		records [][]string
		err     error
	)

	switch ct {
	case ContentTypeCSV:
		records, err = readCSV(data)
	case ContentTypeXLSX:
		records, err = readWorkbook(data)
	default:
		return Table{}, &DecodeError{ContentType: ct, Err: ErrUnsupportedContentType}
	}
	if err != nil {
		return Table{}, &DecodeError{ContentType: ct, Err: err}
	}

	return buildTable(records), nil
}

// ParseContentType maps a declared MIME type or, failing that, a file name
// extension to a ContentType. The route layer uses it to reject anything
// else before the pipeline runs.
func ParseContentType(mimeType, fileName string) (ContentType, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "text/csv", "application/csv", "text/comma-separated-values":
		return ContentTypeCSV, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ContentTypeXLSX, nil
	}

	// Browsers send generic types for uploads often enough that the
	// extension is the better signal.
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return ContentTypeCSV, nil
	case ".xlsx":
		return ContentTypeXLSX, nil
	}

	return ContentTypeUnknown, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mimeType)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("invalid workbook: no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// buildTable applies the shared header and row normalization.
func buildTable(records [][]string) Table {
	var (
		table  Table
		header []string
	)

	for _, record := range records {
		if isEmptyRow(record) {
			continue
		}

		if header == nil {
			header = make([]string, len(record))
			for i, name := range record {
				header[i] = strings.ToLower(strings.TrimSpace(name))
				if header[i] != "" {
					table.Columns = append(table.Columns, header[i])
				}
			}
			continue
		}

		row := make(RawRow, len(table.Columns))
		for i, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			// A repeated header name keeps its first non-empty value.
			if existing, ok := row[name]; ok && existing != "" {
				continue
			}
			row[name] = value
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
