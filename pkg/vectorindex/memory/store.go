package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/vectorindex"

	"github.com/google/uuid"
)

type snapshot struct {
	Generation vectorindex.Generation `json:"generation"`
	Chunks     []vectorindex.Chunk    `json:"chunks"`
}

// Store keeps the index in memory as an immutable snapshot. Replace builds a
// new snapshot and swaps the pointer, so a Search sees either the old index
// or the new one, never a mix.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[snapshot]
	path    string
}

var _ vectorindex.Store = (*Store)(nil)

// NewStore creates an empty store. When snapshotPath is set, every Replace is
// written there and an existing file is loaded on startup.
func NewStore(snapshotPath string) (*Store, error) {
	s := &Store{path: snapshotPath}
	if snapshotPath == "" {
		return s, nil
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read index snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot %s: %w", snapshotPath, err)
	}
	s.current.Store(&snap)
	return s, nil
}

func (s *Store) Replace(ctx context.Context, source string, chunks []vectorindex.Chunk) (vectorindex.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return vectorindex.Generation{}, err
	}

	next := &snapshot{
		Generation: vectorindex.Generation{
			ID:         uuid.New(),
			Source:     source,
			ChunkCount: len(chunks),
			BuiltAt:    time.Now().UTC(),
		},
		Chunks: append([]vectorindex.Chunk(nil), chunks...),
	}

	if s.path != "" {
		if err := s.persist(next); err != nil {
			return vectorindex.Generation{}, err
		}
	}

	s.current.Store(next)
	return next.Generation, nil
}

func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.current.Load()
	if snap == nil {
		return nil, ragerr.ErrIndexUnavailable
	}
	return vectorindex.TopK(snap.Chunks, vector, k), nil
}

func (s *Store) Generation(ctx context.Context) (vectorindex.Generation, error) {
	snap := s.current.Load()
	if snap == nil {
		return vectorindex.Generation{}, ragerr.ErrIndexUnavailable
	}
	return snap.Generation, nil
}

// persist writes to a temp file and renames it so a crash never leaves a torn snapshot.
func (s *Store) persist(snap *snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".index-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write index snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close index snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install index snapshot: %w", err)
	}
	return nil
}
