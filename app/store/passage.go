package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Passage is one indexed book page. Records are immutable once written; a
// re-ingest of the same page replaces the row wholesale.
type Passage struct {
	ID         string
	BookID     string
	ClassLabel string
	Subject    string
	Language   string
	PageNumber int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// PassageID derives the stable identifier for a page. Re-ingesting the same
// (book, language, page) always produces the same id, which is what makes
// upserts idempotent.
func PassageID(bookID, language string, pageNumber int) string {
	h := sha256.New()
	h.Write([]byte(bookID))
	h.Write([]byte{'|'})
	h.Write([]byte(language))
	h.Write([]byte{'|'})
	h.Write([]byte(fmt.Sprintf("%d", pageNumber)))
	return "psg-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Filters is a conjunction over passage metadata. Empty fields impose no
// constraint.
type Filters struct {
	ClassLabel string
	Subject    string
	Language   string
}

func (f Filters) IsZero() bool {
	return f.ClassLabel == "" && f.Subject == "" && f.Language == ""
}

// Validate rejects filter values the store cannot match against.
func (f Filters) Validate() error {
	for _, v := range []string{f.ClassLabel, f.Subject, f.Language} {
		if strings.ContainsAny(v, "\x00\n\r") {
			return fmt.Errorf("%w: malformed value %q", ErrInvalidFilter, v)
		}
	}
	return nil
}

// ParseFilters builds Filters from loosely-typed key/value input, rejecting
// unknown keys instead of passing them through.
func ParseFilters(raw map[string]string) (Filters, error) {
	var f Filters
	for key, value := range raw {
		switch key {
		case "class_label":
			f.ClassLabel = value
		case "subject":
			f.Subject = value
		case "language":
			f.Language = value
		default:
			return Filters{}, fmt.Errorf("%w: unknown key %q", ErrInvalidFilter, key)
		}
	}
	if err := f.Validate(); err != nil {
		return Filters{}, err
	}
	return f, nil
}
