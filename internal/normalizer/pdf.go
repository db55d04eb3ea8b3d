package normalizer

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor reads the text layer of each page. Images, vector graphics and
// scanned pages contribute nothing; OCR is not attempted.
type PDFExtractor struct{}

func (PDFExtractor) Extract(content []byte) (string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	return strings.TrimSpace(strings.Join(pdfPages(reader), "\n")), nil
}

// pdfPages returns one entry per page in page order. Pages whose content
// stream cannot be interpreted are kept as empty entries.
func pdfPages(reader *pdflib.Reader) []string {
	n := reader.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := pageText(page)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, sanitize(text))
	}
	return pages
}

// pageText rebuilds the lines of a page from glyph positions, in content
// stream order. A change of baseline starts a new line; a horizontal jump
// between glyphs on the same baseline becomes a space.
func pageText(page pdflib.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("interpret page: %v", r)
		}
	}()

	var (
		sb      strings.Builder
		prev    pdflib.Text
		started bool
	)
	for _, g := range page.Content().Text {
		if g.S == "" {
			continue
		}
		if started {
			size := math.Max(math.Abs(prev.FontSize), 1)
			switch {
			case math.Abs(g.Y-prev.Y) > size/2:
				sb.WriteByte('\n')
			case g.X > prev.X+prev.W+size*0.15 && prev.S != " " && g.S != " ":
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		prev, started = g, true
	}
	return sb.String(), nil
}
