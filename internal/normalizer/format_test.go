package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/checkmate/internal/testutil"
)

func TestDetectFormat_ByExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"essay.txt", FormatText},
		{"ESSAY.TXT", FormatText},
		{"report.Pdf", FormatPDF},
		{"draft.final.docx", FormatDOCX},
		{"draft.DOCX", FormatDOCX},
		{"draft.doc", FormatUnknown},
		{"notes.md", FormatUnknown},
		{"photo.jpg", FormatUnknown},
		{"trailing.", FormatUnknown},
	}
	for _, tt := range tests {
		// Content must not override an explicit extension.
		got := DetectFormat(tt.filename, testutil.PDF("x"))
		if tt.want != FormatPDF && got == FormatPDF {
			t.Errorf("%s: content sniffing overrode extension", tt.filename)
		}
		assert.Equal(t, tt.want, DetectFormat(tt.filename, []byte("hello")), tt.filename)
	}
}

func TestDetectFormat_SniffsWithoutExtension(t *testing.T) {
	assert.Equal(t, FormatPDF, DetectFormat("upload", testutil.PDF("x")))
	assert.Equal(t, FormatText, DetectFormat("upload", []byte("plain words only")))
	assert.Equal(t, FormatUnknown, DetectFormat("upload", nil))
}

func TestFormatFromMIME(t *testing.T) {
	assert.Equal(t, FormatText, FormatFromMIME("text/plain; charset=utf-8"))
	assert.Equal(t, FormatPDF, FormatFromMIME("application/pdf"))
	assert.Equal(t, FormatDOCX, FormatFromMIME(docxMIME))
	assert.Equal(t, FormatUnknown, FormatFromMIME("application/msword"))
	assert.Equal(t, FormatUnknown, FormatFromMIME(""))
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"text": FormatText, "TXT": FormatText, ".pdf": FormatPDF, "docx": FormatDOCX} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("rtf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormat_RoundTripsThroughExtension(t *testing.T) {
	for _, f := range []Format{FormatText, FormatPDF, FormatDOCX} {
		assert.True(t, f.Supported())
		assert.Equal(t, f, FormatFromFilename("x"+f.Extension()))
		assert.Equal(t, f, FormatFromMIME(f.MIMEType()))
	}
	assert.False(t, FormatUnknown.Supported())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestSanitize(t *testing.T) {
	in := "Line\x00 one\r\nLine two\x07\ufffd\u200b\n\n"
	assert.Equal(t, "Line one\nLine two", sanitize(in))
	// Decomposed e + combining acute becomes the precomposed form.
	assert.Equal(t, "caf\u00e9", sanitize("cafe\u0301"))
}
