package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakePDF struct {
	selectable    string
	selectableErr error
	ocr           string
	ocrErr        error
	ocrCalled     bool
}

func (f *fakePDF) ExtractSelectableText(ctx context.Context, data []byte) (string, error) {
	return f.selectable, f.selectableErr
}

func (f *fakePDF) ExtractWithOCR(ctx context.Context, data []byte) (string, error) {
	f.ocrCalled = true
	return f.ocr, f.ocrErr
}

type fakeImage struct {
	description string
	err         error
}

func (f *fakeImage) Describe(ctx context.Context, data []byte) (string, error) {
	return f.description, f.err
}

func TestExtractPDFUsesSelectableTextWhenPresent(t *testing.T) {
	pdf := &fakePDF{selectable: "page one\npage two"}
	s := &Service{PDF: pdf}

	got, err := s.ExtractPDF(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if got != "page one\npage two" {
		t.Errorf("got %q", got)
	}
	if pdf.ocrCalled {
		t.Error("OCR should not be called when selectable text is present")
	}
}

func TestExtractPDFFallsBackToOCRWhenSelectableTextEmpty(t *testing.T) {
	pdf := &fakePDF{selectable: "   ", ocr: "ocr text"}
	s := &Service{PDF: pdf}

	got, err := s.ExtractPDF(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if got != "ocr text" {
		t.Errorf("got %q, want ocr text", got)
	}
	if !pdf.ocrCalled {
		t.Error("expected OCR fallback to be invoked")
	}
}

func TestExtractPDFSkipsOCRWhenNotRequested(t *testing.T) {
	pdf := &fakePDF{selectable: ""}
	s := &Service{PDF: pdf}

	got, err := s.ExtractPDF(context.Background(), nil, false)
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if pdf.ocrCalled {
		t.Error("OCR should not be called when ocrIfNeeded is false")
	}
}

func TestExtractPDFPropagatesSelectableTextError(t *testing.T) {
	pdf := &fakePDF{selectableErr: errors.New("corrupt pdf")}
	s := &Service{PDF: pdf}

	_, err := s.ExtractPDF(context.Background(), nil, true)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractPDFMissingExtractorErrors(t *testing.T) {
	s := &Service{}
	if _, err := s.ExtractPDF(context.Background(), nil, true); err == nil {
		t.Fatal("expected error with no PDF extractor configured")
	}
}

func TestExtractImageDelegatesToDescriber(t *testing.T) {
	s := &Service{Image: &fakeImage{description: "a red bicycle"}}
	got, err := s.ExtractImage(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if got != "a red bicycle" {
		t.Errorf("got %q", got)
	}
}

func TestChunkElementsAccumulatesUntilChunkSize(t *testing.T) {
	elements := []string{"one two", "three four", "five six", "seven eight"}
	got := ChunkElements(elements, 4, 1)
	for _, c := range got {
		words := len(strings.Fields(c))
		if words > 4 {
			t.Errorf("chunk %q exceeds chunk size: %d words", c, words)
		}
	}
	if len(got) == 0 {
		t.Fatal("expected at least one chunk")
	}
}

func TestChunkElementsSplitsOversizedElement(t *testing.T) {
	oversized := "a b c d e f g h i j"
	got := ChunkElements([]string{oversized}, 4, 1)
	if len(got) < 3 {
		t.Fatalf("expected oversized element to be split into multiple chunks, got %d", len(got))
	}
}

func TestChunkElementsEmptyInput(t *testing.T) {
	if got := ChunkElements(nil, 4, 1); got != nil {
		t.Errorf("got %#v, want nil", got)
	}
}

func TestChunkElementsZeroChunkSizeReturnsNil(t *testing.T) {
	if got := ChunkElements([]string{"a b"}, 0, 0); got != nil {
		t.Errorf("got %#v, want nil", got)
	}
}
