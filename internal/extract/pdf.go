package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/marketbrief/marketbrief/pkg/models"
)

var pdfMagic = []byte("%PDF-")

// PDFExtractor extracts text from PDF bytes. pdfcpu works on files,
// so each extraction round-trips through a temp directory.
type PDFExtractor struct {
	tempDir string
}

// NewPDFExtractor creates an extractor with a dedicated temp dir.
func NewPDFExtractor() *PDFExtractor {
	tempDir := filepath.Join(os.TempDir(), "marketbrief-pdf")
	os.MkdirAll(tempDir, 0755)
	return &PDFExtractor{tempDir: tempDir}
}

// Extract parses data as a PDF and returns its text, page by page.
// Errors are ExtractionErrors: KindCorrupt for unreadable input,
// KindEncrypted for password-protected files and KindEmpty when the
// document contains no extractable text.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*models.DocumentText, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, NewExtractionError(KindCorrupt, fmt.Errorf("missing PDF header"))
	}

	tempFile, err := e.writeTemp(data)
	if err != nil {
		return nil, fmt.Errorf("extract: temp file: %w", err)
	}
	defer os.Remove(tempFile)

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, classifyReadError(err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, NewExtractionError(KindEncrypted, fmt.Errorf("document is encrypted"))
	}
	pageCount := pdfCtx.PageCount

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp(e.tempDir, "pages-")
	if err != nil {
		return nil, fmt.Errorf("extract: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return nil, NewExtractionError(KindCorrupt, err)
	}

	pageTexts := readPageContents(outDir)
	text := assemblePages(pageTexts, pageCount)
	if strings.TrimSpace(text) == "" {
		return nil, NewExtractionError(KindEmpty, fmt.Errorf("no extractable text in %d page(s)", pageCount))
	}

	return &models.DocumentText{PageCount: pageCount, Text: text}, nil
}

func (e *PDFExtractor) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "extract-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// classifyReadError separates password-protected files from broken
// ones based on pdfcpu's error text.
func classifyReadError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") || strings.Contains(msg, "decrypt") {
		return NewExtractionError(KindEncrypted, err)
	}
	return NewExtractionError(KindCorrupt, err)
}

// readPageContents loads the per-page content streams pdfcpu wrote to
// outDir, keyed by page number.
func readPageContents(outDir string) map[int]string {
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum, ok := contentPageNumber(file.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = contentStreamText(raw)
	}
	return pageTexts
}

// contentPageNumber parses the page number out of a content file name.
// pdfcpu names extracted streams "<input>_Content_page_<N>.txt", so the
// page marker sits at the end, after whatever the input file was called.
func contentPageNumber(name string) (int, bool) {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(name, "page_")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[idx+len("page_"):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// assemblePages joins page texts in order, labelling each page so the
// downstream prompt keeps page boundaries visible.
func assemblePages(pageTexts map[int]string, pageCount int) string {
	var b strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", pageNum)
		b.WriteString(text)
	}
	return b.String()
}

// contentStreamText pulls the text show operands out of a raw PDF
// content stream. It walks string literals and emits breaks at the
// text positioning operators, which is enough for simply encoded
// documents; glyph-mapped fonts come out garbled and are treated the
// same as any other low-signal text by the caller.
func contentStreamText(raw []byte) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case '(':
			lit, next := readLiteral(raw, i)
			b.WriteString(lit)
			b.WriteByte(' ')
			i = next
		case 'T':
			if i+1 < len(raw) {
				switch raw[i+1] {
				case 'd', 'D', '*':
					b.WriteByte('\n')
					i += 2
					continue
				}
			}
			i++
		default:
			i++
		}
	}
	return normalizeText(b.String())
}

// normalizeText collapses runs of spaces and trims each line.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// readLiteral reads a parenthesized PDF string literal starting at
// raw[start] == '(' and returns the decoded text plus the index one
// past the closing parenthesis.
func readLiteral(raw []byte, start int) (string, int) {
	var b strings.Builder
	depth := 1
	i := start + 1
	for i < len(raw) && depth > 0 {
		c := raw[i]
		switch c {
		case '\\':
			if i+1 < len(raw) {
				switch raw[i+1] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r', 'f', 'b':
					b.WriteByte(' ')
				case '(', ')', '\\':
					b.WriteByte(raw[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			b.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}
