package extract

import (
	"strings"
	"testing"
)

func TestPages_invalidPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.Pages([]byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected error for non-PDF content")
	}
	if !strings.Contains(err.Error(), "open PDF") {
		t.Errorf("error should name the failing stage: %v", err)
	}
}

func TestPages_empty(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Pages(nil); err == nil {
		t.Fatal("expected error for empty content")
	}
}
