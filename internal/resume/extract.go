// Package resume extracts plain text from uploaded resume documents.
package resume

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// MinPlausibleLength is the shortest primary PDF result trusted without
// running the fallback parser.
const MinPlausibleLength = 20

// Parser turns document bytes into text.
type Parser func(data []byte) (string, error)

// Extractor converts resume documents to text. It never returns an error:
// failures are logged and produce an empty string.
type Extractor struct {
	PDFPrimary  Parser
	PDFFallback Parser
	DOCX        Parser
}

// NewExtractor returns an Extractor using the fast structural PDF parser with
// the page-tolerant unipdf parser as fallback.
func NewExtractor() *Extractor {
	return &Extractor{
		PDFPrimary:  parsePDFFast,
		PDFFallback: parsePDFTolerant,
		DOCX:        parseDOCX,
	}
}

var licenseOnce sync.Once

// SetPDFLicense configures the unipdf metered license. Without it the
// fallback parser fails and only the primary parser's result is used.
func SetPDFLicense(key string) {
	if key == "" {
		return
	}
	licenseOnce.Do(func() {
		if err := license.SetMeteredKey(key); err != nil {
			log.Printf("[resume] failed to set unipdf license: %v", err)
		}
	})
}

// Extract returns the text of data interpreted as format.
func (e *Extractor) Extract(data []byte, format Format) string {
	if len(data) == 0 {
		return ""
	}
	switch format {
	case FormatPDF:
		return e.extractPDF(data)
	case FormatDOCX:
		text, err := e.DOCX(data)
		if err != nil {
			log.Printf("[resume] docx extraction failed: %v", err)
			return ""
		}
		return text
	case FormatText:
		return string(data)
	default:
		log.Printf("[resume] unsupported format %q", format)
		return ""
	}
}

func (e *Extractor) extractPDF(data []byte) string {
	primary, err := e.PDFPrimary(data)
	if err != nil {
		log.Printf("[resume] primary pdf parser failed: %v", err)
	}
	primary = strings.TrimSpace(primary)
	if len(primary) >= MinPlausibleLength {
		return primary
	}

	fallback, err := e.PDFFallback(data)
	if err != nil {
		log.Printf("[resume] fallback pdf parser failed: %v", err)
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return primary
}

// parsePDFFast reads the content streams of every page in one pass.
func parsePDFFast(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(out), nil
}

// parsePDFTolerant extracts page by page, skipping pages that fail.
func parsePDFTolerant(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			log.Printf("[resume] skipping page %d: %v", i, err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			log.Printf("[resume] skipping page %d: %v", i, err)
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			log.Printf("[resume] skipping page %d: %v", i, err)
			continue
		}
		if pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br\s*/>|<w:tab\s*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// parseDOCX reduces the main document part to its raw text.
func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	return docxText(r.Editable().GetContent()), nil
}

func docxText(content string) string {
	content = paragraphEnd.ReplaceAllStringFunc(content, func(m string) string {
		if strings.HasPrefix(m, "<w:tab") {
			return "\t"
		}
		return "\n"
	})
	content = xmlTag.ReplaceAllString(content, "")
	content = xmlUnescaper.Replace(content)
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

var xmlUnescaper = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)
