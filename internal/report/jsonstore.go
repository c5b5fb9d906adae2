package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/banshee-data/pothole.report/internal/fsutil"
	"github.com/banshee-data/pothole.report/internal/monitoring"
)

// DefaultJSONPath is where the CLI keeps the report collection when no path
// is given.
const DefaultJSONPath = "hasil_deteksi.json"

// JSONStore persists reports as a JSON array in a single file. Each Save
// reads the existing collection, appends and rewrites the file atomically.
type JSONStore struct {
	mu   sync.Mutex
	path string
	fs   fsutil.FileSystem
}

// NewJSONStore returns a store backed by the OS filesystem.
func NewJSONStore(path string) *JSONStore {
	return NewJSONStoreFS(path, fsutil.OSFileSystem{})
}

// NewJSONStoreFS returns a store backed by fsys.
func NewJSONStoreFS(path string, fsys fsutil.FileSystem) *JSONStore {
	if path == "" {
		path = DefaultJSONPath
	}
	return &JSONStore{path: path, fs: fsys}
}

// Path returns the collection file path.
func (s *JSONStore) Path() string { return s.path }

// Load returns the stored collection. A missing file is an empty
// collection; an unreadable or corrupt file is logged and also treated as
// empty.
func (s *JSONStore) Load() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) load() []Report {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			monitoring.Warnf("report store %s unreadable, starting empty: %v", s.path, err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var reports []Report
	if err := json.Unmarshal(data, &reports); err != nil {
		monitoring.Warnf("report store %s is corrupt, starting empty: %v", s.path, err)
		return nil
	}
	return reports
}

// Save appends r to the collection.
func (s *JSONStore) Save(ctx context.Context, r *Report) error {
	if r == nil {
		return errors.New("nil report")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports := append(s.load(), *r)
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// ListReports returns up to limit reports, most recent first. A limit <= 0
// returns all of them.
func (s *JSONStore) ListReports(ctx context.Context, limit int) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := s.Load()
	out := make([]Report, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetReport returns the report with the given run id.
func (s *JSONStore) GetReport(ctx context.Context, runID string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range s.Load() {
		if r.RunID == runID {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// ErrNotFound is returned when a report id is unknown to a store.
var ErrNotFound = errors.New("report not found")
