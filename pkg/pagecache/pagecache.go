package pagecache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/krelborne/wowloot/pkg/loot"
)

// Store persists raw fetched pages on disk, one file per (kind, identifier).
// Records never expire; stale pages only go away through Clear.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

func (s *Store) path(kind loot.Kind, id int) string {
	return filepath.Join(s.root, string(kind), fmt.Sprintf("%d.html", id))
}

// Get returns the cached payload for (kind, id), if any.
func (s *Store) Get(kind loot.Kind, id int) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	body, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		return nil, false
	}
	return body, true
}

// Put stores the payload for (kind, id), overwriting any previous record.
func (s *Store) Put(kind loot.Kind, id int, body []byte) error {
	if s == nil {
		return nil
	}
	dir := filepath.Join(s.root, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(kind, id), body, 0o644)
}

// KindStats summarizes the cached records for one page kind.
type KindStats struct {
	Kind    loot.Kind
	Records int
	Bytes   int64
}

// Stats walks the store and reports record counts and sizes per kind.
func (s *Store) Stats() ([]KindStats, error) {
	if s == nil {
		return nil, nil
	}
	kindDirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stats []KindStats
	for _, kd := range kindDirs {
		if !kd.IsDir() {
			continue
		}
		ks := KindStats{Kind: loot.Kind(kd.Name())}
		files, err := os.ReadDir(filepath.Join(s.root, kd.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			ks.Records++
			ks.Bytes += info.Size()
		}
		stats = append(stats, ks)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Kind < stats[j].Kind })
	return stats, nil
}

// Clear removes every cached record and reports how many were deleted.
func (s *Store) Clear() (int, error) {
	if s == nil {
		return 0, nil
	}
	stats, err := s.Stats()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, ks := range stats {
		removed += ks.Records
	}
	if err := os.RemoveAll(s.root); err != nil {
		return 0, err
	}
	return removed, nil
}
