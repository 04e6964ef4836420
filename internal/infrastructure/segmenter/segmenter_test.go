package segmenter

import (
	"strings"
	"testing"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

func TestSegmentEmptyTextProducesNothing(t *testing.T) {
	s := New(nil)
	fragments := s.Segment("", domain.SegmentConfig{MaxChunkSize: 100, Overlap: 10})
	if len(fragments) != 0 {
		t.Fatalf("expected no fragments, got %d", len(fragments))
	}
}

func TestSegmentIndicesAreDenseAndZeroBased(t *testing.T) {
	s := New(nil)
	text := strings.Repeat("lorem ipsum dolor sit amet. ", 100)
	fragments := s.Segment(text, domain.SegmentConfig{MaxChunkSize: 200, Overlap: 40})

	if len(fragments) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(fragments))
	}
	for i, f := range fragments {
		if f.Index != i {
			t.Fatalf("fragment %d has index %d", i, f.Index)
		}
	}
}

func TestSegmentScoresStayInRange(t *testing.T) {
	s := New(nil)
	text := strings.Repeat("short. ", 50) + "\n\n" + strings.Repeat("x", 500)
	fragments := s.Segment(text, domain.SegmentConfig{MaxChunkSize: 120, Overlap: 20, PreserveStructure: true})

	for _, f := range fragments {
		if f.QualityScore < 0 || f.QualityScore > 100 {
			t.Fatalf("fragment %d score %f out of range", f.Index, f.QualityScore)
		}
	}
}

func TestSegmentBoundsFragmentSize(t *testing.T) {
	s := New(nil)
	text := strings.Repeat("abcdefghij", 100)
	fragments := s.Segment(text, domain.SegmentConfig{MaxChunkSize: 150, Overlap: 30})

	for _, f := range fragments {
		if got := len([]rune(f.Content)); got > 150 {
			t.Fatalf("fragment %d has %d runes, budget 150", f.Index, got)
		}
	}
}

func TestSegmentWindowOverlapRepeatsTailContent(t *testing.T) {
	s := New(nil)
	text := strings.Repeat("0123456789", 10)
	fragments := s.Segment(text, domain.SegmentConfig{MaxChunkSize: 40, Overlap: 10})

	if len(fragments) < 2 {
		t.Fatalf("expected at least 2 fragments, got %d", len(fragments))
	}
	first := fragments[0].Content
	second := fragments[1].Content
	if !strings.HasPrefix(second, first[len(first)-10:]) {
		t.Fatalf("expected 10-rune overlap between fragments, got %q / %q", first, second)
	}
}

func TestSegmentPreserveStructureKeepsParagraphsTogether(t *testing.T) {
	s := New(nil)
	text := "# Title\nFirst paragraph about widgets.\n\nSecond paragraph about gadgets."
	fragments := s.Segment(text, domain.SegmentConfig{MaxChunkSize: 500, Overlap: 50, PreserveStructure: true})

	if len(fragments) != 1 {
		t.Fatalf("expected a single packed fragment, got %d", len(fragments))
	}
	if !fragments[0].Metadata.HasHeading {
		t.Fatalf("expected heading metadata")
	}
	if fragments[0].Metadata.WordCount == 0 {
		t.Fatalf("expected word count metadata")
	}
}
