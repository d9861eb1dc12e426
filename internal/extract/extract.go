// Package extract converts uploaded document bytes into a single plain-text
// stream in reading order. No semantic understanding, no side effects.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var (
	// ErrUnsupportedFormat is returned for any format other than PDF or DOCX.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrUnreadable is returned when the underlying parser cannot read the bytes.
	ErrUnreadable = errors.New("unreadable document")
)

// Format is the declared format of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat derives the declared format from a filename extension.
func ParseFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Extract returns the document's text as one ordered string. PDF pages and
// DOCX paragraphs are concatenated in document order.
func Extract(data []byte, format Format) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	// GetContent hands back the raw document XML. Paragraphs are <w:p>
	// elements and the visible text lives in <w:t> runs.
	var text strings.Builder
	for _, para := range strings.Split(content, "<w:p") {
		line := extractRuns(para)
		if strings.TrimSpace(line) == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	return text.String(), nil
}

// extractRuns pulls the text out of every <w:t> run in an XML fragment.
func extractRuns(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<w:t")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// the opening tag may carry attributes, e.g. <w:t xml:space="preserve">,
		// but reject other tags sharing the prefix (<w:tbl>, <w:tr>, ...)
		if len(part) == 0 || (part[0] != '>' && part[0] != ' ') {
			continue
		}
		closeIdx := strings.Index(part, ">")
		if closeIdx < 0 {
			continue
		}
		part = part[closeIdx+1:]
		endIdx := strings.Index(part, "</w:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx])
		}
	}
	return text.String()
}
