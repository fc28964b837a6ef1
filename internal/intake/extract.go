package intake

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// ErrUnreadable marks files whose text cannot be extracted. Retrying does not
// help.
var ErrUnreadable = errors.New("unreadable file")

// ExtractText returns the plain text of an uploaded file. maxBytes bounds how
// much decompressed markup a DOCX may expand to; zero or less means no bound.
func ExtractText(contentType string, data []byte, maxBytes int64) (string, error) {
	var (
		text string
		err  error
	)
	switch contentType {
	case model.MIMETXT:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrUnreadable)
		}
		text = string(data)
	case model.MIMEPDF:
		text, err = extractPDF(data)
	case model.MIMEDOCX:
		text, err = extractDOCX(data, maxBytes)
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", ErrUnreadable, contentType)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return strings.TrimSpace(text), nil
}

// extractPDF reads PDF bytes and returns plain text using ledongthuc/pdf.
func extractPDF(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX walks word/document.xml and keeps run text, one line per
// paragraph.
func extractDOCX(data []byte, maxBytes int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("docx has no word/document.xml")
	}
	tooLarge := fmt.Errorf("document part exceeds %d bytes", maxBytes)
	if maxBytes > 0 && part.UncompressedSize64 > uint64(maxBytes) {
		return "", tooLarge
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open document part: %w", err)
	}
	defer rc.Close()

	// Reading stops one byte past the bound so an overrun is detectable.
	var src io.Reader = rc
	limited := &io.LimitedReader{R: rc, N: maxBytes + 1}
	if maxBytes > 0 {
		src = limited
	}
	overrun := func() bool { return maxBytes > 0 && limited.N <= 0 }

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(src)
	for {
		tok, err := dec.Token()
		if overrun() {
			return "", tooLarge
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
