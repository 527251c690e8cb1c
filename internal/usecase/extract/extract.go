// Package extract dispatches file-field text extraction by MIME type. PDF
// and OCR are both provider-shaped: the service never parses a PDF or runs
// OCR itself, it only orchestrates calls against injected provider
// implementations, the same "opaque embed/ocr" boundary the ingestion spec
// draws for vision and embedding calls.
package extract

import (
	"context"
	"fmt"
	"strings"

	"cortexdb/internal/usecase/chunk"
)

// PDFExtractor pulls text out of a PDF's bytes. ExtractSelectableText reads
// only embedded, selectable text; ExtractWithOCR rasterises each page and
// runs OCR, used as a fallback when selectable text comes back empty.
type PDFExtractor interface {
	ExtractSelectableText(ctx context.Context, data []byte) (string, error)
	ExtractWithOCR(ctx context.Context, data []byte) (string, error)
}

// ImageDescriber captions an image via a vision model call.
type ImageDescriber interface {
	Describe(ctx context.Context, data []byte) (string, error)
}

// StructuredExtractor pulls a PDF apart into per-element strings (paragraph,
// table row, heading, ...) instead of one flat page string, letting the
// chunker respect element boundaries.
type StructuredExtractor interface {
	ExtractElements(ctx context.Context, data []byte) ([]string, error)
}

// Service dispatches extraction by the declared kind of a file field.
type Service struct {
	PDF        PDFExtractor
	Image      ImageDescriber
	Structured StructuredExtractor
}

// ExtractPDF returns the PDF's page text, falling back to OCR when the
// selectable-text pass is empty and ocrIfNeeded is set.
func (s *Service) ExtractPDF(ctx context.Context, data []byte, ocrIfNeeded bool) (string, error) {
	if s.PDF == nil {
		return "", fmt.Errorf("extract: no PDF extractor configured")
	}
	text, err := s.PDF.ExtractSelectableText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract: selectable text: %w", err)
	}
	if strings.TrimSpace(text) == "" && ocrIfNeeded {
		text, err = s.PDF.ExtractWithOCR(ctx, data)
		if err != nil {
			return "", fmt.Errorf("extract: ocr fallback: %w", err)
		}
	}
	return text, nil
}

// ExtractImage captions an image via the vision provider.
func (s *Service) ExtractImage(ctx context.Context, data []byte) (string, error) {
	if s.Image == nil {
		return "", fmt.Errorf("extract: no image describer configured")
	}
	return s.Image.Describe(ctx, data)
}

// ExtractStructuredChunks pulls a PDF's elements and reassembles them into
// chunks: elements accumulate into a running chunk until adding the next one
// would exceed chunkSize words, at which point the chunk is emitted and the
// next one seeds with chunkOverlap words carried over from the tail of the
// one just emitted. An element larger than chunkSize on its own is split
// with the ordinary sliding-window rule instead of being emitted whole.
func (s *Service) ExtractStructuredChunks(ctx context.Context, data []byte, chunkSize, chunkOverlap int) ([]string, error) {
	if s.Structured == nil {
		return nil, fmt.Errorf("extract: no structured extractor configured")
	}
	elements, err := s.Structured.ExtractElements(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract: extract elements: %w", err)
	}
	return ChunkElements(elements, chunkSize, chunkOverlap), nil
}

func wordCount(s string) int { return len(strings.Fields(s)) }

// ChunkElements implements the element-at-a-time accumulation rule described
// above as a pure function, independent of any extractor, so it can be
// tested and reused without a live PDF/OCR provider.
func ChunkElements(elements []string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	seedNext := func() {
		joined := strings.Join(current, "\n")
		tail := chunk.Words(joined, chunkOverlap, 0)
		if len(tail) == 0 {
			current = nil
			currentWords = 0
			return
		}
		seed := tail[len(tail)-1]
		current = []string{seed}
		currentWords = wordCount(seed)
	}

	for _, el := range elements {
		words := wordCount(el)
		if words > chunkSize {
			// Oversized element: flush what we have, then split the element
			// itself with the ordinary sliding-window rule.
			flush()
			current = nil
			currentWords = 0
			chunks = append(chunks, chunk.Words(el, chunkSize, chunkOverlap)...)
			continue
		}
		if currentWords+words > chunkSize {
			flush()
			seedNext()
		}
		current = append(current, el)
		currentWords += words
	}
	flush()
	return chunks
}
