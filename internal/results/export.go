package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"table-scraper/internal/scraper"
)

// WriteCSV writes the result as CSV with the column names as header row.
func WriteCSV(w io.Writer, res *scraper.Result) error {
	cw := csv.NewWriter(w)
	if res.Width() > 0 {
		if err := cw.Write(res.Columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range res.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the result to a CSV file.
func ExportCSV(path string, res *scraper.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportJSONL writes the result as newline-delimited column-keyed records.
func ExportJSONL(path string, res *scraper.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	for _, rec := range res.Records() {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("write record: %w", err)
		}
	}
	return f.Close()
}
