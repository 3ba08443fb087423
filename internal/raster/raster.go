// Package raster renders PDF pages to images for vision analysis.
package raster

import (
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer opens a document for page rendering.
type Rasterizer interface {
	Open(content []byte) (Document, error)
}

// Document renders individual pages as PNG. Page numbers are 1-based.
type Document interface {
	Render(page int) ([]byte, error)
	Close() error
}

// FitzRasterizer renders pages through MuPDF at a fixed DPI.
type FitzRasterizer struct {
	dpi float64
}

// NewFitzRasterizer returns a rasterizer rendering at the given DPI.
func NewFitzRasterizer(dpi int) *FitzRasterizer {
	return &FitzRasterizer{dpi: float64(dpi)}
}

// Open parses content and returns a renderable document. An error here means
// no page of the document can be rendered.
func (r *FitzRasterizer) Open(content []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("open document for rendering: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: r.dpi}, nil
}

// fitzDocument serializes Render calls; the underlying MuPDF context is not
// safe for concurrent page rendering.
type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) Render(page int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	png, err := d.doc.ImagePNG(page-1, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return png, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
