package core

// RequiredColumns lists the mandatory header names in the order they are checked.
var RequiredColumns = []string{"date", "amount", "description", "account"}

// CheckHeaders verifies the decoded rows carry every required column. The
// header set is the key set of the first row, so an empty file is missing
// every column. Only the first missing column is reported.
func CheckHeaders(rows []RawRow) error {
	var first RawRow
	if len(rows) > 0 {
		first = rows[0]
	}

	for _, name := range RequiredColumns {
		if _, ok := first[name]; !ok {
			return &MissingHeaderError{Field: name}
		}
	}
	return nil
}
