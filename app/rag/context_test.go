package rag

import (
	"strings"
	"testing"
)

func scored(id, text string) ScoredPassage {
	p := passage(id)
	p.Text = text
	return ScoredPassage{Passage: p, Score: 0.9}
}

func TestAssembleFormat(t *testing.T) {
	text, citations := NewAssembler(6000).Assemble([]ScoredPassage{
		scored("psg-1", "Photosynthesis happens in chloroplasts."),
	})
	want := "[Source 1 - Class 7, Science, book-1 (English), Page 1]:\nPhotosynthesis happens in chloroplasts."
	if text != want {
		t.Fatalf("context = %q, want %q", text, want)
	}
	if len(citations) != 1 {
		t.Fatalf("got %d citations, want 1", len(citations))
	}
	c := citations[0]
	if c.BookID != "book-1" || c.PageNumber != 1 || c.ContentPreview != "Photosynthesis happens in chloroplasts." {
		t.Fatalf("unexpected citation: %+v", c)
	}
}

func TestAssembleDropsWholePassages(t *testing.T) {
	big := strings.Repeat("x", 400)
	small := "short passage"
	text, citations := NewAssembler(200).Assemble([]ScoredPassage{
		scored("psg-big", big),
		scored("psg-small", small),
	})

	if strings.Contains(text, "x") {
		t.Fatalf("oversized passage was not dropped whole")
	}
	if !strings.Contains(text, small) {
		t.Fatalf("fitting passage missing from context: %q", text)
	}
	// The surviving passage takes the dropped one's slot in the numbering.
	if !strings.Contains(text, "[Source 1 - ") {
		t.Fatalf("citation numbering not compacted: %q", text)
	}
	if len(citations) != 1 || citations[0].BookID != "book-1" {
		t.Fatalf("unexpected citations: %+v", citations)
	}
}

func TestAssembleNothingFits(t *testing.T) {
	text, citations := NewAssembler(10).Assemble([]ScoredPassage{
		scored("psg-1", strings.Repeat("x", 100)),
	})
	if text != NoContextMarker {
		t.Fatalf("got %q, want %q", text, NoContextMarker)
	}
	if citations != nil {
		t.Fatalf("expected nil citations, got %+v", citations)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	text, citations := NewAssembler(0).Assemble(nil)
	if text != NoContextMarker || citations != nil {
		t.Fatalf("got %q / %+v", text, citations)
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("я", 300)
	_, citations := NewAssembler(6000).Assemble([]ScoredPassage{scored("psg-1", long)})
	if len(citations) != 1 {
		t.Fatalf("got %d citations, want 1", len(citations))
	}
	got := citations[0].ContentPreview
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long preview not marked truncated: %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 200 {
		t.Fatalf("preview has %d runes, want 200", n)
	}
}
