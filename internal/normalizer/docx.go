package normalizer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

var errNoDocumentPart = errors.New("no word/document.xml part")

// DOCXExtractor reads body paragraphs of a .docx file in document order.
// Tables, headers, footers and embedded objects are skipped.
type DOCXExtractor struct{}

func (DOCXExtractor) Extract(content []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	// The parser only names the document once it has decoded word/document.xml.
	if doc.Document.XMLName.Local == "" {
		return "", fmt.Errorf("parse docx: %w", errNoDocumentPart)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		paragraphs = append(paragraphs, sanitize(docxParagraphText(para)))
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&buf, c)
		case *docx.Hyperlink:
			if !writeRun(&buf, &c.Run) {
				buf.WriteString(c.Run.InstrText)
			}
		}
	}
	return buf.String()
}

// writeRun appends the visible text of a run and reports whether it had any.
func writeRun(buf *strings.Builder, run *docx.Run) bool {
	start := buf.Len()
	for _, rc := range run.Children {
		switch v := rc.(type) {
		case *docx.Text:
			buf.WriteString(v.Text)
		case *docx.Tab:
			buf.WriteByte('\t')
		case *docx.BarterRabbet:
			buf.WriteByte('\n')
		}
	}
	return buf.Len() > start
}
