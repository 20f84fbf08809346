package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/article-matcher/internal/common"
)

// DocxExtractor emits one line per paragraph of word/document.xml, in document order.
type DocxExtractor struct{}

func (DocxExtractor) Extract(_ context.Context, data []byte, _ string) (*Document, error) {
	paragraphs, err := docxParagraphs(data)
	if err != nil {
		return nil, common.ExtractionError("docx", err)
	}
	return &Document{Text: strings.Join(paragraphs, "\n"), Method: "docx", Pages: 1}, nil
}

func docxParagraphs(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer func() { _ = rc.Close() }()

	decoder := xml.NewDecoder(rc)
	var (
		out         []string
		current     strings.Builder
		inParagraph bool
		inText      bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = inParagraph
			case "tab", "br":
				if inParagraph {
					current.WriteByte(' ')
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inParagraph = false
				if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
					out = append(out, text)
				}
			}
		}
	}
	return out, nil
}
