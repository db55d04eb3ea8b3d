package normalizer

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies the container format of an uploaded draft.
type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatPDF
	FormatDOCX
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// SupportedExtensions maps lowercase file extensions to their format.
var SupportedExtensions = map[string]Format{
	".txt":  FormatText,
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	default:
		return "unknown"
	}
}

// Extension returns the canonical file extension, or "" for FormatUnknown.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatPDF:
		return ".pdf"
	case FormatDOCX:
		return ".docx"
	default:
		return ""
	}
}

// MIMEType returns the media type advertised for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatText:
		return "text/plain"
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return docxMIME
	default:
		return "application/octet-stream"
	}
}

// Supported reports whether the format has an extractor.
func (f Format) Supported() bool {
	return f == FormatText || f == FormatPDF || f == FormatDOCX
}

// ParseFormat resolves a user-supplied format name such as "pdf" or ".docx".
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "text", "txt", "plain":
		return FormatText, nil
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// FormatFromFilename maps a filename to a format by its extension only.
func FormatFromFilename(filename string) Format {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// FormatFromMIME maps a declared media type (parameters allowed) to a format.
func FormatFromMIME(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "text/plain":
		return FormatText
	case "application/pdf", "application/x-pdf":
		return FormatPDF
	case docxMIME:
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

// DetectFormat picks the format for an upload. A filename extension always
// decides when present, so ".doc" or ".md" stay unknown. Only a filename with
// no extension at all falls back to sniffing the content.
func DetectFormat(filename string, content []byte) Format {
	if ext := filepath.Ext(filename); ext != "" {
		return SupportedExtensions[strings.ToLower(ext)]
	}
	if len(content) == 0 {
		return FormatUnknown
	}
	return FormatFromMIME(mimetype.Detect(content).String())
}

// Supported reports whether filename carries one of SupportedExtensions.
func Supported(filename string) bool {
	return FormatFromFilename(filename) != FormatUnknown
}
