package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractDocument returns the plain text of a PDF or Word file.
func ExtractDocument(path string) (string, error) {
	var (
		text string
		err  error
	)
	switch Ext(path) {
	case "pdf":
		text, err = extractPDF(path)
	case "docx", "doc":
		text, err = extractDocx(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRightFunc(text, isSpace), nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' || r == '\v'
}

// extractPDF 逐页提取文本，每页后追加换行；无法解析的页面跳过。
func extractPDF(path string) (text string, err error) {
	// ledongthuc/pdf 在遇到损坏的对象时会 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page, ok := pageText(reader, i)
		if !ok {
			continue
		}
		b.WriteString(page)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func pageText(reader *pdf.Reader, i int) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	page := reader.Page(i)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

// extractDocx 读取 OOXML 包中的 word/document.xml，段落之间以换行连接。
func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open word document: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open word/document.xml: %w", err)
		}
		defer func() { _ = rc.Close() }()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("word/document.xml not found in %s", path)
}

// parseDocumentXML streams the WordprocessingML body. Text runs (w:t) are
// concatenated and every closed paragraph (w:p) ends a line, so table cells
// and nested paragraphs are kept as well.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode word/document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.Join(paragraphs, "\n"), nil
}
