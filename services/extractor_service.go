package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// DocumentPage is one unit of extracted text. Number is the 1-based PDF page,
// or 0 for formats without pages.
type DocumentPage struct {
	Number int
	Text   string
}

// SetPDFLicenseKey registers the UniPDF metered key. PDF extraction fails
// without one.
func SetPDFLicenseKey(key string) error {
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set Unidoc license key: %w", err)
	}
	return nil
}

// ExtractPages returns the text of a supported file, split by page where the
// format has pages. Blank pages are dropped.
func ExtractPages(path string) ([]DocumentPage, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", path, err)
		}
		return nonBlankPages(DocumentPage{Text: string(raw)}), nil
	case ".pdf":
		return extractPDFPages(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func extractPDFPages(path string) ([]DocumentPage, error) {
	reader, f, err := model.NewPdfReaderFromFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open pdf %s: %w", path, err)
	}
	defer f.Close()

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("could not count pages of %s: %w", path, err)
	}

	pages := make([]DocumentPage, 0, numPages)
	for n := 1; n <= numPages; n++ {
		text, err := pdfPageText(reader, n)
		if err != nil {
			return nil, fmt.Errorf("page %d of %s: %w", n, path, err)
		}
		pages = append(pages, DocumentPage{Number: n, Text: text})
	}
	return nonBlankPages(pages...), nil
}

func pdfPageText(reader *model.PdfReader, n int) (string, error) {
	page, err := reader.GetPage(n)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	pageText, _, _, err := ex.ExtractPageText()
	if err != nil {
		return "", err
	}
	return pageText.Text(), nil
}

func nonBlankPages(pages ...DocumentPage) []DocumentPage {
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out
}
