// Package store persists a translation memory in sqlite. Source texts are
// stored as given; callers normalize them.
// Decoding is greedy, so an identical (text, language pair, model) always
// yields the same translation and can be served from the memory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Stats summarises translation memory usage.
type Stats struct {
	Entries    int `json:"entries"`
	TotalUsage int `json:"total_usage"`
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model_key TEXT NOT NULL,
		translation TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang, model_key)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_lang, target_lang, model_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Lookup returns the remembered translation, bumping its usage count.
func (s *Store) Lookup(ctx context.Context, sourceText, sourceLang, targetLang, modelKey string) (string, bool, error) {
	var translation string
	err := s.db.QueryRowContext(ctx,
		`SELECT translation FROM translation_memory WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND model_key = ?`,
		sourceText, sourceLang, targetLang, modelKey).Scan(&translation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_lang = ? AND target_lang = ? AND model_key = ?`,
		time.Now(), sourceText, sourceLang, targetLang, modelKey)
	return translation, true, err
}

// Save records a translation, replacing any previous entry for the same key.
func (s *Store) Save(ctx context.Context, sourceText, sourceLang, targetLang, modelKey, translation string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_lang, target_lang, model_key, translation, usage_count, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		uuid.NewString(), sourceText, sourceLang, targetLang, modelKey, translation, now, now)
	return err
}

// Purge deletes entries recorded for any model other than modelKey, so a
// retrained adapter does not leave stale rows behind.
func (s *Store) Purge(ctx context.Context, modelKey string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE model_key <> ?`, modelKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(usage_count), 0) FROM translation_memory`).Scan(&st.Entries, &st.TotalUsage)
	return st, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
