// Package inspect helps config authors find table selectors: it parses a
// page and reports a candidate selector for every table it sees, with a
// stability verdict for each suggestion.
package inspect

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"table-scraper/internal/scraper"
)

// maxHeaderSample caps how many header cells a report carries per table.
const maxHeaderSample = 8

// Table describes one table found on a page.
type Table struct {
	Selector  string
	Stability string
	Rows      int
	Cols      int
	Headers   []string
}

// Tables parses page HTML and reports every table with a suggested selector.
func Tables(rawHTML string) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var out []Table
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		t := Table{Selector: suggestSelector(sel, i)}
		t.Stability = scraper.StabilityReason(t.Selector)

		rows := sel.Find("tr")
		t.Rows = rows.Length()
		t.Cols = rows.First().Find("th, td").Length()

		sel.Find("th").EachWithBreak(func(j int, h *goquery.Selection) bool {
			if j >= maxHeaderSample {
				return false
			}
			t.Headers = append(t.Headers, strings.TrimSpace(h.Text()))
			return true
		})
		out = append(out, t)
	})
	return out, nil
}

// suggestSelector prefers an id, then classes, then falls back to a
// positional selector, which the stability verdict will flag.
func suggestSelector(sel *goquery.Selection, index int) string {
	if id, ok := sel.Attr("id"); ok && id != "" {
		return "table#" + id
	}
	if class, ok := sel.Attr("class"); ok && strings.TrimSpace(class) != "" {
		return "table." + strings.Join(strings.Fields(class), ".")
	}
	return fmt.Sprintf("table:nth-of-type(%d)", index+1)
}

// Report renders the tables as a short human-readable listing.
func Report(tables []Table) string {
	if len(tables) == 0 {
		return "no tables found\n"
	}
	var b strings.Builder
	for i, t := range tables {
		fmt.Fprintf(&b, "table %d: %s\n", i+1, t.Selector)
		if t.Stability != "" {
			fmt.Fprintf(&b, "  stability: brittle (%s), set allow_unstable to use\n", t.Stability)
		} else {
			b.WriteString("  stability: ok\n")
		}
		fmt.Fprintf(&b, "  size: %d rows x %d cols\n", t.Rows, t.Cols)
		if len(t.Headers) > 0 {
			fmt.Fprintf(&b, "  headers: %s\n", strings.Join(t.Headers, " | "))
		}
	}
	return b.String()
}
