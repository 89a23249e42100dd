package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"finance-rag-be/internal/model"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/repository/contract"
	"finance-rag-be/internal/repository/unitofwork"
	"finance-rag-be/pkg/rag/ragerr"
	"finance-rag-be/pkg/vectorindex"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory unit of work ---

type tables struct {
	generations []*model.IndexGeneration
	chunks      []*model.IndexChunk
}

func (t tables) clone() tables {
	return tables{
		generations: append([]*model.IndexGeneration(nil), t.generations...),
		chunks:      append([]*model.IndexChunk(nil), t.chunks...),
	}
}

type fakeDB struct {
	mu        sync.Mutex
	committed tables

	failInsert bool
	dropChunk  bool
	commits    int
	rollbacks  int
}

func (db *fakeDB) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{db: db}
}

type fakeUnitOfWork struct {
	db     *fakeDB
	staged *tables
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	t := u.db.committed.clone()
	u.staged = &t
	return nil
}

func (u *fakeUnitOfWork) BeginReadOnly(ctx context.Context) error { return u.Begin(ctx) }

func (u *fakeUnitOfWork) Commit() error {
	if u.staged == nil {
		return errors.New("no transaction to commit")
	}
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	u.db.committed = *u.staged
	u.db.commits++
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	if u.staged == nil {
		return errors.New("no transaction to rollback")
	}
	u.db.rollbacks++
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) view() *tables {
	if u.staged != nil {
		return u.staged
	}
	t := u.db.committed.clone()
	return &t
}

func (u *fakeUnitOfWork) IndexChunkRepository() contract.IndexChunkRepository {
	return &fakeChunkRepo{db: u.db, t: u.view()}
}

func (u *fakeUnitOfWork) IndexGenerationRepository() contract.IndexGenerationRepository {
	return &fakeGenerationRepo{t: u.view()}
}

type fakeChunkRepo struct {
	db *fakeDB
	t  *tables
}

func (r *fakeChunkRepo) CreateBulk(ctx context.Context, chunks []*model.IndexChunk) error {
	if r.db.failInsert {
		return errors.New("insert failed")
	}
	if r.db.dropChunk && len(chunks) > 0 {
		chunks = chunks[1:]
	}
	r.t.chunks = append(r.t.chunks, chunks...)
	return nil
}

func (r *fakeChunkRepo) DeleteAll(ctx context.Context) error {
	r.t.chunks = nil
	return nil
}

func (r *fakeChunkRepo) CountByGeneration(ctx context.Context, generationId uuid.UUID) (int64, error) {
	var n int64
	for _, c := range r.t.chunks {
		if c.GenerationId == generationId {
			n++
		}
	}
	return n, nil
}

func (r *fakeChunkRepo) SearchSimilarWithScore(ctx context.Context, generationId uuid.UUID, embedding []float32, limit int) ([]*contract.ScoredIndexChunk, error) {
	var out []*contract.ScoredIndexChunk
	for _, c := range r.t.chunks {
		if c.GenerationId != generationId {
			continue
		}
		out = append(out, &contract.ScoredIndexChunk{
			Chunk:      c,
			Similarity: vectorindex.CosineSimilarity(c.EmbeddingValue.Slice(), embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeGenerationRepo struct{ t *tables }

func (r *fakeGenerationRepo) Create(ctx context.Context, generation *model.IndexGeneration) error {
	r.t.generations = append(r.t.generations, generation)
	return nil
}

func (r *fakeGenerationRepo) DeleteAll(ctx context.Context) error {
	r.t.generations = nil
	return nil
}

func (r *fakeGenerationRepo) FindLatest(ctx context.Context) (*model.IndexGeneration, error) {
	if len(r.t.generations) == 0 {
		return nil, nil
	}
	return r.t.generations[len(r.t.generations)-1], nil
}

// --- tests ---

func chunksOf(texts ...string) []vectorindex.Chunk {
	out := make([]vectorindex.Chunk, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(texts))
		vec[i] = 1
		out[i] = vectorindex.Chunk{Index: i, Source: "q1.csv", Text: text, Vector: vec}
	}
	return out
}

func TestPgvectorIndexStore_UnavailableBeforeFirstBuild(t *testing.T) {
	store := NewPgvectorIndexStore(&fakeDB{}, logger.NewNopLogger())

	_, err := store.Search(context.Background(), []float32{1, 0}, 4)
	assert.ErrorIs(t, err, ragerr.ErrIndexUnavailable)
	_, err = store.Generation(context.Background())
	assert.ErrorIs(t, err, ragerr.ErrIndexUnavailable)
}

func TestPgvectorIndexStore_ReplaceDiscardsPreviousGeneration(t *testing.T) {
	db := &fakeDB{}
	store := NewPgvectorIndexStore(db, logger.NewNopLogger())
	ctx := context.Background()

	_, err := store.Replace(ctx, "old.csv", chunksOf("old a", "old b"))
	require.NoError(t, err)
	gen, err := store.Replace(ctx, "new.csv", chunksOf("Revenue: 1000", "Debt: 500"))
	require.NoError(t, err)

	assert.Equal(t, "new.csv", gen.Source)
	assert.Equal(t, 2, gen.ChunkCount)
	assert.Len(t, db.committed.generations, 1)
	assert.Len(t, db.committed.chunks, 2)

	results, err := store.Search(ctx, []float32{0, 1}, 4)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Debt: 500", results[0].Chunk.Text)
	for _, r := range results {
		assert.NotContains(t, r.Chunk.Text, "old")
	}

	current, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen.ID, current.ID)
}

func TestPgvectorIndexStore_FailedReplaceKeepsOldIndex(t *testing.T) {
	db := &fakeDB{}
	store := NewPgvectorIndexStore(db, logger.NewNopLogger())
	ctx := context.Background()

	first, err := store.Replace(ctx, "q1.csv", chunksOf("Revenue: 1000"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		arrange func()
	}{
		{"insert error", func() { db.failInsert = true }},
		{"short write", func() { db.dropChunk = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db.failInsert, db.dropChunk = false, false
			tt.arrange()
			commits := db.commits

			_, err := store.Replace(ctx, "q2.csv", chunksOf("a", "b", "c"))
			require.Error(t, err)
			assert.Equal(t, commits, db.commits)

			current, err := store.Generation(ctx)
			require.NoError(t, err)
			assert.Equal(t, first.ID, current.ID)
			assert.Len(t, db.committed.chunks, 1)
		})
	}
}

func TestPgvectorIndexStore_ReplaceHonorsCancellation(t *testing.T) {
	db := &fakeDB{}
	store := NewPgvectorIndexStore(db, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Replace(ctx, "q1.csv", chunksOf("a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, db.commits)
}
