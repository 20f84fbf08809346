package extract

import (
	"bytes"
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/article-matcher/internal/ocr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns data as UTF-8. Input that is not valid UTF-8 is read as Windows-1251,
// the usual encoding of Cyrillic exports.
func decodeText(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), false
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("?"))), true
	}
	return string(out), true
}

// TextExtractor passes plain text through the normalizer.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, data []byte, _ string) (*Document, error) {
	txt, converted := decodeText(data)
	doc := &Document{Text: ocr.Normalize(txt), Method: "text", Pages: 1}
	if converted {
		doc.Warnings = append(doc.Warnings, "decoded as windows-1251")
	}
	return doc, nil
}
