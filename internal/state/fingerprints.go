package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/skuhub/pkg/core"
)

// GetContentHash returns the last recorded hash for a source file, or ""
// when the file has not been seen.
func (s *SQLiteStore) GetContentHash(filePath string) (string, error) {
	if s.db == nil {
		return "", core.ErrStoreClosed
	}

	var hash string
	err := s.db.QueryRowContext(ctx(),
		`SELECT content_hash FROM content_hashes WHERE file_path = ?`, filePath).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get content hash: %w", err)
	}
	return hash, nil
}

// SetContentHash records the hash of a source file.
func (s *SQLiteStore) SetContentHash(filePath, hash, source string) error {
	if s.db == nil {
		return core.ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO content_hashes (file_path, content_hash, source, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (file_path) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   source = excluded.source,
		   updated_at = excluded.updated_at`,
		filePath, hash, source, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set content hash: %w", err)
	}
	return nil
}

// DeleteContentHash forgets a source file so the next watch cycle reloads it.
func (s *SQLiteStore) DeleteContentHash(filePath string) error {
	if s.db == nil {
		return core.ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx(), `DELETE FROM content_hashes WHERE file_path = ?`, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete content hash: %w", err)
	}
	return nil
}
