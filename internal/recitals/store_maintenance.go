package recitals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SweepOrphanedSegments scans the content directory for raw segment files
// whose metadata row is missing and removes them. A segment file becomes an
// orphan when the byte write succeeded but the row insert failed; the
// ingestion path cleans up inline, this sweep catches crashes in between.
// Finalized artifacts and non-segment files are left alone.
func (s *Store) SweepOrphanedSegments(ctx context.Context, contentDir string) ([]string, error) {
	ctx = ensureContext(ctx)

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.Contains(name, ".seg.") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		known, err := s.HasAudioSegmentFile(ctx, name)
		if err != nil {
			return removed, err
		}
		if known {
			continue
		}
		if err := os.Remove(filepath.Join(contentDir, name)); err != nil {
			return removed, fmt.Errorf("remove orphan %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM recital_sessions WHERE disavowed = 0 GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
