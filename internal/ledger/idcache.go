package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ytarchive/internal/archive"
)

// CachedIDs returns the identifier set stored for archivePath if it was
// recorded at fingerprint fp. ok is false on a miss or a stale entry.
func (s *Store) CachedIDs(ctx context.Context, archivePath string, fp archive.Fingerprint) (ids archive.IDSet, ok bool, err error) {
	var (
		size    int64
		modTime int64
		joined  string
	)
	err = s.DB.QueryRowContext(ctx,
		`SELECT size, mod_time, ids FROM id_cache WHERE archive_path = ?`,
		cacheKey(archivePath)).Scan(&size, &modTime, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: query id cache: %w", err)
	}
	if size != fp.Size || modTime != fp.ModTime.UnixNano() {
		return nil, false, nil
	}

	ids = archive.NewIDSet()
	if joined != "" {
		for _, id := range strings.Split(joined, "\n") {
			ids.Add(id)
		}
	}
	return ids, true, nil
}

// StoreIDs records ids as the identifier set of archivePath at fp.
func (s *Store) StoreIDs(ctx context.Context, archivePath string, fp archive.Fingerprint, ids archive.IDSet) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO id_cache (archive_path, size, mod_time, ids, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(archive_path) DO UPDATE SET
			size = excluded.size, mod_time = excluded.mod_time,
			ids = excluded.ids, updated_at = excluded.updated_at`,
		cacheKey(archivePath), fp.Size, fp.ModTime.UnixNano(),
		strings.Join(ids.Sorted(), "\n"), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: store id cache: %w", err)
	}
	return nil
}

func cacheKey(archivePath string) string {
	if abs, err := filepath.Abs(archivePath); err == nil {
		return abs
	}
	return archivePath
}
