// Package ingest is the boundary to the acquisition side of the system: a
// separate component downloads and parses the books and leaves JSONL files of
// page records behind; this package only streams those records in.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Pages are page-sized by construction; anything bigger than this is a
// parsing artifact, not a passage.
const maxPassageChars = 8000

// Page is one parsed book page as delivered by the acquisition component.
type Page struct {
	BookID     string `json:"book_id"`
	ClassLabel string `json:"class_label"`
	Subject    string `json:"subject"`
	Language   string `json:"language"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

func (p Page) Validate() error {
	switch {
	case p.BookID == "":
		return errors.New("missing book_id")
	case p.ClassLabel == "":
		return errors.New("missing class_label")
	case p.Subject == "":
		return errors.New("missing subject")
	case p.Language == "":
		return errors.New("missing language")
	case p.PageNumber < 1:
		return fmt.Errorf("invalid page_number %d", p.PageNumber)
	case strings.TrimSpace(p.Text) == "":
		return errors.New("empty text")
	case len(p.Text) > maxPassageChars:
		return fmt.Errorf("text too long (%d chars)", len(p.Text))
	}
	return nil
}

// Source streams raw pages to fn. A non-nil error from fn stops the stream
// and is returned.
type Source interface {
	Pages(ctx context.Context, fn func(Page) error) error
}

// DirSource reads every *.jsonl file under a directory, one page per line.
// Malformed lines are logged and skipped; a bad line in one book must not
// sink the rest of the corpus.
type DirSource struct {
	dir string
}

var _ Source = &DirSource{}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Pages(ctx context.Context, fn func(Page) error) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".jsonl") {
			return nil
		}
		return s.streamFile(ctx, path, fn)
	})
}

func (s *DirSource) streamFile(ctx context.Context, path string, fn func(Page) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var page Page
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			log.Printf("⚠️ %s:%d: skipping malformed line: %v", filepath.Base(path), line, err)
			continue
		}
		if err := page.Validate(); err != nil {
			log.Printf("⚠️ %s:%d: skipping page: %v", filepath.Base(path), line, err)
			continue
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
