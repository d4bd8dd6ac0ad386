package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
)

// DefaultListLimit is the list page size when the caller does not give one.
const DefaultListLimit = 50

// Index maintains the bounded summary list in index.json. Read-modify-write
// cycles are serialized by an in-process mutex; concurrent writers in other
// processes remain last-writer-wins.
type Index struct {
	path   string
	limit  int
	mu     sync.Mutex
	logger *zap.Logger
}

// NewIndex creates the index over <dir>/index.json, retaining at most limit
// entries.
func NewIndex(dir string, limit int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		path:   filepath.Join(dir, "index.json"),
		limit:  limit,
		logger: logger,
	}
}

// Upsert replaces the entry with the same id in place, or appends. When the
// list exceeds the limit it is truncated from the front: eviction is by list
// position, not by timestamp, since in-place updates do not reorder. Returns
// the resulting entry count.
func (ix *Index) Upsert(entry prescription.IndexEntry) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.load()

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if len(entries) > ix.limit {
		entries = entries[len(entries)-ix.limit:]
	}

	if err := ix.write(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// List returns up to limit entries, newest first by timestamp. An absent
// index yields an empty list. The second value is the total entry count.
func (ix *Index) List(limit int) ([]prescription.IndexEntry, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ix.mu.Lock()
	entries := ix.load()
	ix.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	total := len(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, total, nil
}

// load reads the current index. A missing or corrupt file starts fresh; the
// index is a cache over the record files, losing it only degrades listing.
func (ix *Index) load() []prescription.IndexEntry {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.logger.Warn("index unreadable, starting fresh", zap.Error(err))
		}
		return nil
	}

	var entries []prescription.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		ix.logger.Warn("index corrupt, starting fresh", zap.Error(err))
		return nil
	}
	return entries
}

// write rewrites the whole index file. No partial-write atomicity is
// guaranteed.
func (ix *Index) write(entries []prescription.IndexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := os.WriteFile(ix.path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
