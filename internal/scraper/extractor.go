package scraper

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

var spaceRun = regexp.MustCompile(`\s+`)

// extractor reads the header and row cells of the current page state.
type extractor struct {
	res    *Resolver
	root   browser.Node
	norm   config.Normalization
	logger *zap.Logger

	table     config.SelectorSet
	header    config.SelectorSet
	hasHeader bool
	rows      config.SelectorSet
	cells     config.SelectorSet
}

func newExtractor(cfg *config.RunConfig, root browser.Node, res *Resolver, logger *zap.Logger) (*extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &extractor{res: res, root: root, norm: cfg.Normalization, logger: logger}
	var ok bool
	if e.table, ok = cfg.Selectors[config.KeyTableContainer]; !ok {
		return nil, &ConfigurationError{Reason: `missing required selector group "table_container"`}
	}
	if e.rows, ok = cfg.Selectors[config.KeyRow]; !ok {
		return nil, &ConfigurationError{Reason: `missing required selector group "row"`}
	}
	if e.cells, ok = cfg.Selectors[config.KeyCell]; !ok || len(e.cells.Candidates) == 0 {
		return nil, &ConfigurationError{Reason: `missing required selector group "cell"`}
	}
	e.header, e.hasHeader = cfg.Selectors[config.KeyHeaderCells]
	return e, nil
}

// readPage resolves the table container (the only hard failure here), then
// reads the header once and every row's cell texts. A page with no matching
// rows is an empty page, not an error.
func (e *extractor) readPage(ctx context.Context) (header []string, rows [][]string, err error) {
	tm, err := e.res.Locate(ctx, e.root, e.table)
	if err != nil {
		return nil, nil, err
	}
	container := tm.Element

	if e.hasHeader {
		header = e.readHeader(ctx, container)
	}

	rm, rerr := e.res.Locate(ctx, container, e.rows)
	if rerr != nil {
		e.logger.Debug("no rows matched", zap.Error(rerr))
		return header, nil, nil
	}
	rowEls, ferr := container.FindAll(rm.Candidate.Engine, rm.Candidate.Selector)
	if ferr != nil {
		e.logger.Debug("row enumeration failed", zap.Error(ferr))
		return header, nil, nil
	}

	// cell fallback is not supported: only the first cell candidate is used
	cell := e.cells.Candidates[0]
	for _, rowEl := range rowEls {
		cellEls, cerr := rowEl.FindAll(cell.Engine, cell.Selector)
		if cerr != nil || len(cellEls) == 0 {
			continue
		}
		row := make([]string, 0, len(cellEls))
		for _, cl := range cellEls {
			text, terr := cl.Text()
			if terr != nil {
				text = ""
			}
			row = append(row, e.normalize(text))
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// readHeader returns the header cell texts, or nil when the set fails to
// resolve or every cell is empty.
func (e *extractor) readHeader(ctx context.Context, container browser.Element) []string {
	m := e.res.Maybe(ctx, container, e.header)
	if m == nil {
		return nil
	}
	els, err := container.FindAll(m.Candidate.Engine, m.Candidate.Selector)
	if err != nil || len(els) == 0 {
		return nil
	}
	texts := make([]string, 0, len(els))
	empty := true
	for _, el := range els {
		text, terr := el.Text()
		if terr != nil {
			text = ""
		}
		text = e.normalize(text)
		if text != "" {
			empty = false
		}
		texts = append(texts, text)
	}
	if empty {
		return nil
	}
	return texts
}

func (e *extractor) normalize(s string) string {
	if e.norm.CollapseSpaces {
		s = spaceRun.ReplaceAllString(s, " ")
	}
	if e.norm.TrimWhitespace {
		s = strings.TrimSpace(s)
	}
	return s
}
