package core

// reportBuilder accumulates row outcomes in file order.
type reportBuilder struct {
	report ImportReport
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{report: ImportReport{Errors: []RowError{}}}
}

// lineNumber converts a zero-based data row index to its source line.
// Line 1 is the header.
func lineNumber(rowIndex int) int {
	return rowIndex + 2
}

func (b *reportBuilder) imported() {
	b.report.Imported++
}

func (b *reportBuilder) failed(rowIndex int, f *rowFailure) {
	b.report.Failed++
	b.report.Errors = append(b.report.Errors, RowError{
		Line:    lineNumber(rowIndex),
		Message: f.message,
		Reason:  f.reason,
	})
}

func (b *reportBuilder) duplicate(rowIndex int) {
	b.report.Duplicates++
	b.report.Errors = append(b.report.Errors, RowError{
		Line:    lineNumber(rowIndex),
		Message: "Duplicate transaction",
		Reason:  ReasonDuplicate,
	})
}

func (b *reportBuilder) progress(phase ImportPhase, total, current int) ImportProgress {
	return ImportProgress{
		Phase:      phase,
		TotalRows:  total,
		CurrentRow: current,
		Imported:   b.report.Imported,
		Failed:     b.report.Failed,
		Duplicates: b.report.Duplicates,
	}
}

func (b *reportBuilder) build() ImportReport {
	return b.report
}
