package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS passages (
    id TEXT PRIMARY KEY,
    book_id TEXT NOT NULL,
    class_label TEXT NOT NULL,
    subject TEXT NOT NULL,
    language TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    content TEXT NOT NULL,
    embedding BLOB NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_class ON passages (class_label);
CREATE INDEX IF NOT EXISTS idx_passages_subject ON passages (subject);
CREATE INDEX IF NOT EXISTS idx_passages_language ON passages (language);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const timeLayout = "2006-01-02 15:04:05"

type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

var _ Store = &SQLiteStore{}

// Open opens or creates the passage store at path. The embedding dimension is
// stamped into the store on creation; opening an existing store with a
// different dimension fails, because mixing dimensions would silently corrupt
// similarity scores. Changing the dimension means a full reindex.
func Open(path string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid embedding dimension %d", ErrStoreUnavailable, dimension)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}

	// WAL lets independent queries scan concurrently while a single
	// ingestion run writes.
	if _, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: configure %s: %v", ErrStoreUnavailable, path, err)
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{db: db, dimension: dimension}
	if err = s.stampDimension(dimension); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("📂 Passage store ready at %s (dimension %d)", path, dimension)
	return s, nil
}

func (s *SQLiteStore) stampDimension(dimension int) error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'embed_dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('embed_dimension', ?)`,
			strconv.Itoa(dimension))
		if err != nil {
			return fmt.Errorf("%w: stamp dimension: %v", ErrStoreUnavailable, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("%w: read dimension stamp: %v", ErrStoreUnavailable, err)
	}

	got, err := strconv.Atoi(stored)
	if err != nil || got != dimension {
		return fmt.Errorf("%w: store has dimension %s, configured %d; reindex required",
			ErrStoreUnavailable, stored, dimension)
	}
	return nil
}

func (s *SQLiteStore) Dimension() int { return s.dimension }

func (s *SQLiteStore) Upsert(ctx context.Context, p Passage) error {
	if len(p.Embedding) != s.dimension {
		return fmt.Errorf("%w: passage %s has dimension %d, store wants %d",
			ErrStoreUnavailable, p.ID, len(p.Embedding), s.dimension)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Single statement keeps each record's write atomic even with
	// concurrent ingestion workers.
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO passages (id, book_id, class_label, subject, language, page_number, content, embedding, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            book_id = excluded.book_id,
            class_label = excluded.class_label,
            subject = excluded.subject,
            language = excluded.language,
            page_number = excluded.page_number,
            content = excluded.content,
            embedding = excluded.embedding,
            created_at = excluded.created_at`,
		p.ID, p.BookID, p.ClassLabel, p.Subject, p.Language, p.PageNumber,
		p.Text, encodeVector(p.Embedding), createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrStoreUnavailable, p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertBatch(ctx context.Context, ps []Passage) error {
	for _, p := range ps {
		if err := s.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func filterClause(f Filters) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if f.ClassLabel != "" {
		where += " AND class_label = ?"
		args = append(args, f.ClassLabel)
	}
	if f.Subject != "" {
		where += " AND subject = ?"
		args = append(args, f.Subject)
	}
	if f.Language != "" {
		where += " AND language = ?"
		args = append(args, f.Language)
	}
	return where, args
}

func (s *SQLiteStore) Scan(ctx context.Context, f Filters, fn func(Passage) error) error {
	if err := f.Validate(); err != nil {
		return err
	}
	where, args := filterClause(f)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, class_label, subject, language, page_number, content, embedding, created_at FROM passages`+where,
		args...)
	if err != nil {
		return fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Passage
		var blob []byte
		var createdAt string
		if err = rows.Scan(&p.ID, &p.BookID, &p.ClassLabel, &p.Subject, &p.Language,
			&p.PageNumber, &p.Text, &blob, &createdAt); err != nil {
			return fmt.Errorf("%w: scan row: %v", ErrStoreUnavailable, err)
		}
		if p.Embedding, err = decodeVector(blob); err != nil {
			return fmt.Errorf("%w: passage %s: %v", ErrStoreUnavailable, p.ID, err)
		}
		p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if err = fn(p); err != nil {
			return err
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, f Filters) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	where, args := filterClause(f)

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *SQLiteStore) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM passages WHERE id = ?`, id).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: lookup %s: %v", ErrStoreUnavailable, id, err)
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
