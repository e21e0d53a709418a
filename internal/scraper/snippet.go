package scraper

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/net/html"

	"table-scraper/internal/browser"
)

const snippetMaxLen = 2000

// skippedTags contribute no visible text worth diagnosing.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"head":     true,
	"template": true,
}

// pageSnippet reduces a page's HTML to a short run of its visible text, for
// embedding in a table-not-found diagnostic.
func pageSnippet(raw string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return truncate(strings.Join(strings.Fields(raw), " "), maxLen)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if b.Len() > maxLen {
			return
		}
		switch n.Type {
		case html.CommentNode:
			return
		case html.ElementNode:
			if skippedTags[n.Data] {
				return
			}
		case html.TextNode:
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return truncate(b.String(), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxLen], "") + "..."
}

// captureDiagnostics grabs what the page actually looked like when the table
// failed to appear: a text snippet of its content and a downsized screenshot
// written to a temp file. Both are best-effort.
func captureDiagnostics(pg browser.Page) (snippet, screenshotPath string) {
	if raw, err := pg.Content(); err == nil {
		snippet = pageSnippet(raw, snippetMaxLen)
	}

	data, err := pg.Screenshot()
	if err != nil {
		return snippet, ""
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return snippet, ""
	}
	if img.Bounds().Dx() > 1024 {
		img = imaging.Resize(img, 1024, 0, imaging.Lanczos)
	}
	f, err := os.CreateTemp("", "scraper-diag-*.jpg")
	if err != nil {
		return snippet, ""
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 75}); err != nil {
		os.Remove(f.Name())
		return snippet, ""
	}
	return snippet, f.Name()
}
