package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-scraper/internal/config"
)

// rowsOf builds tr.data row elements holding td cells with the given texts.
func rowsOf(rows [][]string) []*fakeElement {
	rowEls := make([]*fakeElement, len(rows))
	for i, cells := range rows {
		row := el("")
		cellEls := make([]*fakeElement, len(cells))
		for j, c := range cells {
			cellEls[j] = el(c)
		}
		row.set("td", cellEls...)
		rowEls[i] = row
	}
	return rowEls
}

// tableFixture wires a container with header cells and data rows into a fake
// page: #grid > th*, tr.data > td*.
func tableFixture(page *fakePage, headers []string, rows [][]string) *fakeElement {
	grid := el("")
	if len(headers) > 0 {
		hdr := make([]*fakeElement, len(headers))
		for i, h := range headers {
			hdr[i] = el(h)
		}
		grid.set("th", hdr...)
	}
	grid.set("tr.data", rowsOf(rows)...)
	page.set("#grid", grid)
	return grid
}

func extractorConfig() *config.RunConfig {
	cfg := config.Default()
	cfg.Selectors = map[string]config.SelectorSet{
		config.KeyTableContainer: selSet("#grid"),
		config.KeyHeaderCells:    selSet("th"),
		config.KeyRow:            selSet("tr.data"),
		config.KeyCell:           selSet("td"),
	}
	return &cfg
}

func TestExtractor_ReadPage(t *testing.T) {
	page := newFakePage()
	tableFixture(page, []string{"Name", "Score"}, [][]string{
		{"  Alice ", "10"},
		{"Bob\n\tSmith", "7"},
	})

	ext, err := newExtractor(extractorConfig(), page, NewResolver(nil), nil)
	require.NoError(t, err)

	header, rows, err := ext.readPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Score"}, header)
	assert.Equal(t, [][]string{
		{"Alice", "10"},
		{"Bob Smith", "7"},
	}, rows)
}

func TestExtractor_NoRowsIsEmptyPage(t *testing.T) {
	page := newFakePage()
	grid := el("")
	page.set("#grid", grid)

	ext, err := newExtractor(extractorConfig(), page, NewResolver(nil), nil)
	require.NoError(t, err)

	header, rows, err := ext.readPage(context.Background())
	require.NoError(t, err, "missing rows are an empty page, not a failure")
	assert.Nil(t, header)
	assert.Empty(t, rows)
}

func TestExtractor_MissingContainerFails(t *testing.T) {
	ext, err := newExtractor(extractorConfig(), newFakePage(), NewResolver(nil), nil)
	require.NoError(t, err)

	_, _, err = ext.readPage(context.Background())
	require.Error(t, err)

	var nce *NoCandidateMatchedError
	assert.ErrorAs(t, err, &nce)
}

func TestExtractor_RowsWithoutCellsSkipped(t *testing.T) {
	page := newFakePage()
	grid := el("")
	okRow := el("")
	okRow.set("td", el("a"), el("b"))
	emptyRow := el("")
	grid.set("tr.data", emptyRow, okRow)
	page.set("#grid", grid)

	ext, err := newExtractor(extractorConfig(), page, NewResolver(nil), nil)
	require.NoError(t, err)

	_, rows, err := ext.readPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)
}

func TestExtractor_AllEmptyHeaderDropped(t *testing.T) {
	page := newFakePage()
	tableFixture(page, []string{"  ", ""}, [][]string{{"x", "y"}})

	ext, err := newExtractor(extractorConfig(), page, NewResolver(nil), nil)
	require.NoError(t, err)

	header, rows, err := ext.readPage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Len(t, rows, 1)
}

func TestExtractor_HeaderOptional(t *testing.T) {
	page := newFakePage()
	tableFixture(page, nil, [][]string{{"x"}})

	cfg := extractorConfig()
	delete(cfg.Selectors, config.KeyHeaderCells)

	ext, err := newExtractor(cfg, page, NewResolver(nil), nil)
	require.NoError(t, err)

	header, rows, err := ext.readPage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Equal(t, [][]string{{"x"}}, rows)
}

func TestExtractor_NormalizationSwitches(t *testing.T) {
	tests := []struct {
		name     string
		trim     bool
		collapse bool
		input    string
		expected string
	}{
		{"both on", true, true, "  a \n b  ", "a b"},
		{"trim only", true, false, "  a \n b  ", "a \n b"},
		{"collapse only", false, true, "  a \n b  ", " a b "},
		{"both off", false, false, "  a \n b  ", "  a \n b  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			tableFixture(page, nil, [][]string{{tt.input}})

			cfg := extractorConfig()
			cfg.Normalization.TrimWhitespace = tt.trim
			cfg.Normalization.CollapseSpaces = tt.collapse

			ext, err := newExtractor(cfg, page, NewResolver(nil), nil)
			require.NoError(t, err)

			_, rows, err := ext.readPage(context.Background())
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.expected, rows[0][0])
		})
	}
}

func TestNewExtractor_MissingRequiredGroups(t *testing.T) {
	for _, key := range []string{config.KeyTableContainer, config.KeyRow, config.KeyCell} {
		t.Run(key, func(t *testing.T) {
			cfg := extractorConfig()
			delete(cfg.Selectors, key)

			_, err := newExtractor(cfg, newFakePage(), NewResolver(nil), nil)
			require.Error(t, err)

			var ce *ConfigurationError
			assert.ErrorAs(t, err, &ce)
		})
	}
}
