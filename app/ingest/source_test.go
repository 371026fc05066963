package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func collect(t *testing.T, src Source) []Page {
	t.Helper()
	var pages []Page
	err := src.Pages(context.Background(), func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pages
}

const goodLine = `{"book_id":"bio-7","class_label":"Class 7","subject":"Science","language":"English","page_number":1,"text":"Cells are the unit of life."}`

func TestDirSourceReadsJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", goodLine+"\n"+
		`{"book_id":"bio-7","class_label":"Class 7","subject":"Science","language":"English","page_number":2,"text":"Tissues are groups of cells."}`+"\n")
	writeFile(t, dir, "notes.txt", "not a page file\n")

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, sub, "b.jsonl", `{"book_id":"geo-7","class_label":"Class 7","subject":"Geography","language":"Hindi","page_number":5,"text":"Rivers shape the land."}`+"\n")

	pages := collect(t, NewDirSource(dir))
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if pages[0].BookID != "bio-7" || pages[0].PageNumber != 1 {
		t.Fatalf("unexpected first page: %+v", pages[0])
	}
	if pages[2].BookID != "geo-7" || pages[2].Language != "Hindi" {
		t.Fatalf("nested file not read: %+v", pages[2])
	}
}

func TestDirSourceSkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mixed.jsonl", strings.Join([]string{
		"not json at all",
		`{"book_id":"","class_label":"Class 7","subject":"Science","language":"English","page_number":1,"text":"x"}`,
		`{"book_id":"bio-7","class_label":"Class 7","subject":"Science","language":"English","page_number":0,"text":"x"}`,
		`{"book_id":"bio-7","class_label":"Class 7","subject":"Science","language":"English","page_number":1,"text":"  "}`,
		"",
		goodLine,
	}, "\n") + "\n")

	pages := collect(t, NewDirSource(dir))
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1 (bad lines must be skipped)", len(pages))
	}
	if pages[0].Text != "Cells are the unit of life." {
		t.Fatalf("wrong surviving page: %+v", pages[0])
	}
}

func TestDirSourceStopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl", goodLine+"\n"+goodLine+"\n")

	sentinel := errors.New("stop")
	seen := 0
	err := NewDirSource(dir).Pages(context.Background(), func(Page) error {
		seen++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("callback error not returned: %v", err)
	}
	if seen != 1 {
		t.Fatalf("stream continued after error: %d pages seen", seen)
	}
}

func TestPageValidate(t *testing.T) {
	base := Page{
		BookID:     "bio-7",
		ClassLabel: "Class 7",
		Subject:    "Science",
		Language:   "English",
		PageNumber: 1,
		Text:       "Cells.",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid page rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Page)
	}{
		{"missing_book", func(p *Page) { p.BookID = "" }},
		{"missing_class", func(p *Page) { p.ClassLabel = "" }},
		{"missing_subject", func(p *Page) { p.Subject = "" }},
		{"missing_language", func(p *Page) { p.Language = "" }},
		{"bad_page_number", func(p *Page) { p.PageNumber = 0 }},
		{"blank_text", func(p *Page) { p.Text = " \t " }},
		{"oversized_text", func(p *Page) { p.Text = strings.Repeat("x", maxPassageChars+1) }},
	}
	for _, cse := range cases {
		t.Run(cse.name, func(t *testing.T) {
			p := base
			cse.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("invalid page accepted: %+v", p)
			}
		})
	}
}
