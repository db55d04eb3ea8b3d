package normalizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TextExtractor handles plain text uploads.
type TextExtractor struct{}

// Extract returns valid UTF-8 unchanged. Anything else is decoded as
// ISO-8859-1, which maps every byte; control characters other than line
// breaks and tabs are dropped and nothing else is touched.
func (TextExtractor) Extract(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		decoded = []byte(strings.ToValidUTF8(string(content), ""))
	}
	return dropControls(string(decoded)), nil
}

func dropControls(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}
