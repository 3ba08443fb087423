package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/unistudy/unirag/internal/cache"
	"github.com/unistudy/unirag/internal/config"
	"github.com/unistudy/unirag/internal/models"
	"github.com/unistudy/unirag/internal/raster"
	"go.uber.org/zap"
)

// TextExtractor yields the per-page text of a source document.
type TextExtractor interface {
	Pages(content []byte) ([]string, error)
}

// PageAnalyzer produces the OCR and visual blocks for a rendered page.
// Failures degrade to empty blocks inside the analyzer.
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, source string, page int, imagePNG []byte) (ocr, visual string)
}

// Pipeline runs the multimodal ingestion of one document: cache gate,
// per-page text extraction and vision analysis under a bounded worker pool,
// fusion into enriched units, and cache commit.
type Pipeline struct {
	cache      *cache.Store
	extractor  TextExtractor
	rasterizer raster.Rasterizer
	analyzer   PageAnalyzer
	vision     bool
	workers    int
	logger     *zap.Logger
}

// NewPipeline creates an ingestion pipeline. analyzer and rasterizer are
// unused when vision is disabled in cfg.
func NewPipeline(
	store *cache.Store,
	extractor TextExtractor,
	rasterizer raster.Rasterizer,
	analyzer PageAnalyzer,
	cfg *config.IngestConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cache:      store,
		extractor:  extractor,
		rasterizer: rasterizer,
		analyzer:   analyzer,
		vision:     cfg.VisionEnabled(),
		workers:    cfg.PageWorkers,
		logger:     logger,
	}
}

// Ingest produces the enriched unit sequence for a document. On a cache hit
// the units come from disk and no model service is called. A document that
// cannot be parsed at all is a fatal error for that document; page-level
// failures are absorbed.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content []byte) (units []*models.EnrichedUnit, fingerprint string, fromCache bool, err error) {
	fingerprint = cache.Fingerprint(content)

	// Single writer per fingerprint: a concurrent upload of identical bytes
	// waits here and then hits the cache.
	release := p.cache.Lock(fingerprint)
	defer release()

	if cached, ok := p.cache.Lookup(fingerprint); ok {
		p.logger.Info("cache hit, skipping analysis",
			zap.String("source", filename), zap.String("fingerprint", fingerprint))
		return cached, fingerprint, true, nil
	}

	texts, err := p.extractor.Pages(content)
	if err != nil {
		return nil, "", false, fmt.Errorf("parse document %s: %w", filename, err)
	}
	if len(texts) == 0 {
		return nil, "", false, fmt.Errorf("document %s has no pages", filename)
	}

	pages := make([]*models.EnrichedUnit, len(texts))
	if p.vision && p.analyzer != nil {
		p.analyzePages(ctx, filename, content, texts, pages)
	} else {
		for i, text := range texts {
			pages[i] = &models.EnrichedUnit{Source: filename, Page: i + 1, Text: text}
		}
	}

	units = make([]*models.EnrichedUnit, 0, len(pages))
	for i, u := range pages {
		if u == nil {
			continue
		}
		if u.Empty() {
			p.logger.Warn("page has no usable content, dropped",
				zap.String("source", filename), zap.Int("page", i+1))
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, "", false, fmt.Errorf("document %s produced no content", filename)
	}

	if err := p.cache.Put(fingerprint, units); err != nil {
		// The units are still good; the next ingest just pays full price again.
		p.logger.Warn("cache store failed",
			zap.String("source", filename), zap.String("fingerprint", fingerprint), zap.Error(err))
	}
	return units, fingerprint, false, nil
}

// analyzePages runs raster + vision per page under a bounded worker pool and
// joins each page's text with its analysis blocks. A page that cannot be
// rendered is dropped (nil entry); a document that cannot be opened for
// rendering at all degrades to text-only units.
func (p *Pipeline) analyzePages(ctx context.Context, filename string, content []byte, texts []string, pages []*models.EnrichedUnit) {
	doc, err := p.rasterizer.Open(content)
	if err != nil {
		p.logger.Warn("document rendering unavailable, using text only",
			zap.String("source", filename), zap.Error(err))
		for i, text := range texts {
			pages[i] = &models.EnrichedUnit{Source: filename, Page: i + 1, Text: text}
		}
		return
	}
	defer doc.Close()

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i := range texts {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			png, err := doc.Render(page + 1)
			if err != nil {
				p.logger.Warn("page render failed, page dropped",
					zap.String("source", filename), zap.Int("page", page+1), zap.Error(err))
				return
			}
			ocr, visual := p.analyzer.AnalyzePage(ctx, filename, page+1, png)
			pages[page] = &models.EnrichedUnit{
				Source: filename,
				Page:   page + 1,
				Text:   texts[page],
				OCR:    ocr,
				Visual: visual,
			}
		}(i)
	}
	wg.Wait()
}
