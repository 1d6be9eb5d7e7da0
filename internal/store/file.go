package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	frontierPrefix = "pareto_SW_vs_GWP_"
	frontierSuffix = ".json"
	indexFile      = "frontiers.json"
)

// FrontierFileName is the file a scenario's frontier is written to.
func FrontierFileName(tag string) string {
	return frontierPrefix + tag + frontierSuffix
}

// FileStore keeps one JSON array of points per scenario in a directory, plus
// an index of frontier metadata.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

type indexEntry struct {
	ID        uuid.UUID `json:"id"`
	SweepID   uuid.UUID `json:"sweep_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frontier dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() error { return nil }

// SaveFrontier writes the frontier's points atomically, then records its
// metadata in the index.
func (s *FileStore) SaveFrontier(_ context.Context, f *Frontier) error {
	if f.Tag == "" {
		return fmt.Errorf("save frontier: empty tag")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	points := f.Points
	if points == nil {
		points = []Point{}
	}
	data, err := json.MarshalIndent(points, "", "    ")
	if err != nil {
		return fmt.Errorf("encode frontier %s: %w", f.Tag, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, FrontierFileName(f.Tag)), data); err != nil {
		return fmt.Errorf("write frontier %s: %w", f.Tag, err)
	}

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	idx[f.Tag] = indexEntry{ID: f.ID, SweepID: f.SweepID, CreatedAt: f.CreatedAt}
	data, err = json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.dir, indexFile), data); err != nil {
		return fmt.Errorf("write frontier index: %w", err)
	}
	return nil
}

func (s *FileStore) GetFrontier(_ context.Context, tag string) (*Frontier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	return s.load(tag, idx)
}

func (s *FileStore) ListFrontiers(_ context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, frontierPrefix+"*"+frontierSuffix))
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, m := range matches {
		tag := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), frontierPrefix), frontierSuffix)
		f, err := s.load(tag, idx)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, f.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (s *FileStore) load(tag string, idx map[string]indexEntry) (*Frontier, error) {
	path := filepath.Join(s.dir, FrontierFileName(tag))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("decode frontier %s: %w", tag, err)
	}
	f := &Frontier{Tag: tag, Points: points}
	if e, ok := idx[tag]; ok {
		f.ID, f.SweepID, f.CreatedAt = e.ID, e.SweepID, e.CreatedAt
	} else if info, err := os.Stat(path); err == nil {
		// Frontier files written by other tools carry no index entry.
		f.CreatedAt = info.ModTime().UTC()
	}
	return f, nil
}

func (s *FileStore) readIndex() (map[string]indexEntry, error) {
	idx := make(map[string]indexEntry)
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode frontier index: %w", err)
	}
	return idx, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
