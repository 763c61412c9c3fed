// Package docs turns uploaded files into plain text for the extraction step.
package docs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupported is returned for file types with no text extractor.
var ErrUnsupported = errors.New("unsupported file type")

// File is one uploaded document.
type File struct {
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mimetype"`
	Data     []byte `json:"-" validate:"required"`
	Size     int64  `json:"size" validate:"gte=0"`
}

// Text is the decoded text of one file.
type Text struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Extractor decodes a file into text.
type Extractor interface {
	Extract(ctx context.Context, f File) (string, error)
}

// Kinds of document the extractor understands.
const (
	KindPDF      = "pdf"
	KindExcel    = "xlsx"
	KindHTML     = "html"
	KindMarkdown = "markdown"
	KindWord     = "docx"
	KindText     = "text"
)

// TextExtractor handles PDF, Excel, HTML, Markdown, Word and plain-text files.
type TextExtractor struct {
	validate *validator.Validate
}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{validate: validator.New()}
}

var _ Extractor = (*TextExtractor)(nil)

// Kind resolves a file's kind from its extension, then its MIME type.
func Kind(f File) string {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		return KindPDF
	case ".xlsx", ".xlsm", ".xltx":
		return KindExcel
	case ".html", ".htm":
		return KindHTML
	case ".md", ".markdown":
		return KindMarkdown
	case ".docx":
		return KindWord
	case ".txt", ".csv", ".tsv", ".json":
		return KindText
	}
	mt := strings.ToLower(f.MimeType)
	switch {
	case mt == "application/pdf":
		return KindPDF
	case strings.Contains(mt, "spreadsheetml"):
		return KindExcel
	case mt == "text/html":
		return KindHTML
	case mt == "text/markdown":
		return KindMarkdown
	case strings.Contains(mt, "wordprocessingml"):
		return KindWord
	case strings.HasPrefix(mt, "text/"):
		return KindText
	}
	return ""
}

// Extract validates f and decodes it according to its kind.
func (e *TextExtractor) Extract(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.validate.Struct(f); err != nil {
		return "", fmt.Errorf("invalid file %q: %w", f.Name, err)
	}

	var (
		out string
		err error
	)
	switch Kind(f) {
	case KindPDF:
		out, err = pdfText(f.Data)
	case KindExcel:
		out, err = excelText(f.Data)
	case KindHTML:
		out, err = htmlText(f.Data)
	case KindMarkdown:
		out = markdownText(f.Data)
	case KindWord:
		out, err = docxText(f.Data)
	case KindText:
		out = string(f.Data)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, f.Name, f.MimeType)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return tidy(out), nil
}

// pdfText reads every page's plain text. Corrupt PDFs can panic inside the reader.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("panic during PDF extraction: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// excelText renders each sheet as tab-separated rows under a sheet header.
func excelText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&sb, "--- SHEET: %s ---\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// htmlText drops scripts and styles and keeps table rows on one line each.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("td, th").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\t")
	})
	doc.Find("p, div, tr, br, li, h1, h2, h3, h4, h5, h6, table").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return doc.Text(), nil
}

// markdownText walks the goldmark AST and keeps the literal text of every block.
func markdownText(data []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(data))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(data))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// docxText pulls paragraph text out of word/document.xml.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	for _, zf := range zr.File {
		if zf.Name != "word/document.xml" {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return wordXMLText(rc)
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

func wordXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			case "tc":
				sb.WriteString("\t")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

var (
	trailingSpace = regexp.MustCompile(`[ \t\r]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// tidy trims trailing whitespace on each line and collapses runs of blank lines.
func tidy(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
