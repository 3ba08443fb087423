// Package extract provides per-page text extraction from PDF documents.
package extract

// Extractor pulls plain text out of PDF bytes, page by page.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Pages returns the text of each page in document order. A page that cannot
// be parsed yields an empty string at its position; only a document that
// cannot be opened as a PDF at all returns an error.
func (e *Extractor) Pages(content []byte) ([]string, error) {
	return extractPDFPages(content)
}
