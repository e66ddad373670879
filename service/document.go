package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DocumentService turns uploaded bytes into plain text.
type DocumentService struct{}

func NewDocumentService() *DocumentService {
	return &DocumentService{}
}

// DetectFormat picks a format from the file extension, falling back to the
// MIME type. It returns ErrUnsupportedFormat for anything else.
func DetectFormat(filename, mimeType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	switch {
	case ext == ".pdf" || mimeType == mimePDF:
		return model.FormatPDF, nil
	case ext == ".docx" || mimeType == mimeDOCX:
		return model.FormatDOCX, nil
	case ext == ".txt" || mimeType == mimeText:
		return model.FormatTXT, nil
	}
	return "", ErrUnsupportedFormat
}

// Extract parses data according to its format. Parse failures wrap
// ErrDocumentParse.
func (s *DocumentService) Extract(ctx context.Context, data []byte, filename, mimeType string) (*model.Document, error) {
	format, err := DetectFormat(filename, mimeType)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{SourceFile: filename, Format: format}

	switch format {
	case model.FormatPDF:
		pages, err := extractPDF(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDocumentParse, err)
		}
		for i := range pages {
			pages[i] = norm.NFC.String(pages[i])
		}
		doc.Pages = pages
		doc.Text = strings.Join(pages, "\n\n")
	case model.FormatDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDocumentParse, err)
		}
		doc.Text = norm.NFC.String(text)
	case model.FormatTXT:
		doc.Text = norm.NFC.String(decodeText(data))
	}

	logger.Debug(ctx, "document.extracted",
		"format", format,
		"bytes", len(data),
		"chars", len([]rune(doc.Text)),
		"pages", len(doc.Pages),
	)
	return doc, nil
}

// extractPDF returns the plain text of every page. The pdf package panics on
// some malformed inputs, so panics become errors.
func extractPDF(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// extractDOCX reads word/document.xml and keeps run text, tabs and breaks.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// decodeText reads data as UTF-8, dropping a byte order mark and replacing
// invalid sequences.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
