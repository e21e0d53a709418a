package scraper

import "fmt"

// Result is the materialized output of one run. Rows are rectangular: every
// row has exactly len(Columns) cells. PageCount records how many page
// iterations the run performed.
type Result struct {
	Columns   []string
	Rows      [][]string
	PageCount int
}

// newResult rectangularizes the accumulated rows to the widest observed row,
// right-padding short rows and truncating long ones. The header is used only
// when its length matches that width; empty or unusable header cells become
// synthetic col_{i} names.
func newResult(header []string, rows [][]string, pageCount int) *Result {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	rect := make([][]string, len(rows))
	for i, row := range rows {
		fixed := make([]string, width)
		copy(fixed, row)
		rect[i] = fixed
	}

	columns := make([]string, width)
	useHeader := len(header) == width
	for i := range columns {
		if useHeader && header[i] != "" {
			columns[i] = header[i]
		} else {
			columns[i] = fmt.Sprintf("col_%d", i)
		}
	}

	return &Result{Columns: columns, Rows: rect, PageCount: pageCount}
}

// Width returns the common row length.
func (r *Result) Width() int {
	return len(r.Columns)
}

// Records returns the rows as column-keyed maps, the shape written to
// newline-delimited output.
func (r *Result) Records() []map[string]string {
	out := make([]map[string]string, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]string, len(r.Columns))
		for j, col := range r.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}
