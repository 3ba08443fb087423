package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDFPages(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 0; i < numPages; i++ {
		pages[i] = pageText(r, i+1)
	}
	return pages, nil
}

// pageText extracts one page's text; parse failures yield "" rather than
// aborting the document.
func pageText(r *pdf.Reader, pageNum int) (text string) {
	defer func() {
		// The parser panics on some malformed content streams.
		if rec := recover(); rec != nil {
			text = ""
		}
	}()
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	s, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
