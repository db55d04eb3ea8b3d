// Package normalizer turns uploaded drafts (.txt, .pdf, .docx) into a single
// UTF-8 plain-text string suitable for embedding in an LLM prompt.
package normalizer

import "fmt"

// Document is an uploaded draft awaiting normalization. Format may be left as
// FormatUnknown, in which case it is inferred from Filename and Content.
type Document struct {
	Filename string
	Content  []byte
	Format   Format
}

// Result is the normalized draft text.
type Result struct {
	Text   string
	Format Format
}

// Extractor converts the bytes of one container format into text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ExtractorFor returns the extractor variant for f.
func ExtractorFor(f Format) (Extractor, bool) {
	switch f {
	case FormatText:
		return TextExtractor{}, true
	case FormatPDF:
		return PDFExtractor{}, true
	case FormatDOCX:
		return DOCXExtractor{}, true
	default:
		return nil, false
	}
}

// Normalize extracts the text of doc. It has no side effects and is safe for
// concurrent use. A PDF without a text layer yields an empty Result, not an error.
func Normalize(doc Document) (res Result, err error) {
	format := doc.Format
	if format == FormatUnknown {
		format = DetectFormat(doc.Filename, doc.Content)
	}
	if len(doc.Content) == 0 {
		return Result{}, &Error{Kind: KindEmptyContent, Format: format, Filename: doc.Filename}
	}

	ex, ok := ExtractorFor(format)
	if !ok {
		return Result{}, &Error{Kind: KindUnsupportedFormat, Format: format, Filename: doc.Filename}
	}

	// The PDF and DOCX libraries panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &Error{Kind: KindCorruptFile, Format: format, Filename: doc.Filename, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	text, err := ex.Extract(doc.Content)
	if err != nil {
		return Result{}, &Error{Kind: KindCorruptFile, Format: format, Filename: doc.Filename, Err: err}
	}
	return Result{Text: text, Format: format}, nil
}
