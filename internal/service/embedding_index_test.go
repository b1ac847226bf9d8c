package service

import (
	"context"
	"errors"
	"testing"

	"uni-counselor/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder maps text to fixed vectors; unknown text is an error.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls++
	vec, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("embedding backend down")
	}
	return vec, nil
}

type memEmbeddingStore struct {
	records map[string]*models.EmbeddingRecord
	failing bool
}

func newMemEmbeddingStore() *memEmbeddingStore {
	return &memEmbeddingStore{records: make(map[string]*models.EmbeddingRecord)}
}

func (s *memEmbeddingStore) Upsert(_ context.Context, rec *models.EmbeddingRecord) error {
	if s.failing {
		return errors.New("db down")
	}
	s.records[string(rec.SourceType)+"/"+rec.SourceID.String()] = rec
	return nil
}

func (s *memEmbeddingStore) Delete(_ context.Context, sourceType models.SourceType, sourceID uuid.UUID) error {
	if s.failing {
		return errors.New("db down")
	}
	delete(s.records, string(sourceType)+"/"+sourceID.String())
	return nil
}

func (s *memEmbeddingStore) ListAll(_ context.Context) ([]*models.EmbeddingRecord, error) {
	var out []*models.EmbeddingRecord
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func newTestIndex(t *testing.T, embedder *stubEmbedder) (*EmbeddingIndex, *memEmbeddingStore) {
	t.Helper()
	store := newMemEmbeddingStore()
	return NewEmbeddingIndex(embedder, store, zap.NewNop()), store
}

func TestSearchOrdersByCosineSimilarity(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"doc close":    {1, 0, 0},
		"doc mid":      {1, 1, 0},
		"doc far":      {0, 0, 1},
		"doc opposite": {-1, 0, 0},
	}}
	ix, _ := newTestIndex(t, embedder)

	docs := []IndexDocument{
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "doc far"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "doc close"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "doc mid"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "doc opposite"},
	}
	_, _, err := ix.Rebuild(context.Background(), docs)
	require.NoError(t, err)

	hits := ix.Search([]float32{1, 0, 0}, -1, nil)
	require.Len(t, hits, 4)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
	assert.InDelta(t, -1.0, hits[3].Score, 1e-9)
}

func TestSearchTopKBoundAndSmallCorpus(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	}}
	ix, _ := newTestIndex(t, embedder)

	_, _, err := ix.Rebuild(context.Background(), []IndexDocument{
		{SourceType: models.SourceTypeUniversity, SourceID: uuid.New(), Text: "a"},
		{SourceType: models.SourceTypeUniversity, SourceID: uuid.New(), Text: "b"},
	})
	require.NoError(t, err)

	assert.Len(t, ix.Search([]float32{1, 0}, 1, nil), 1)
	// topK larger than the corpus returns everything
	assert.Len(t, ix.Search([]float32{1, 0}, 10, nil), 2)
}

func TestSearchSourceTypeFilter(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"uni doc":  {1, 0},
		"prog doc": {1, 0},
	}}
	ix, _ := newTestIndex(t, embedder)

	_, _, err := ix.Rebuild(context.Background(), []IndexDocument{
		{SourceType: models.SourceTypeUniversity, SourceID: uuid.New(), Text: "uni doc"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "prog doc"},
	})
	require.NoError(t, err)

	hits := ix.Search([]float32{1, 0}, -1, &SearchFilter{SourceType: models.SourceTypeProgramme})
	require.Len(t, hits, 1)
	assert.Equal(t, models.SourceTypeProgramme, hits[0].Record.SourceType)
}

func TestRebuildIsolatesFailures(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"good": {1, 0},
	}}
	ix, _ := newTestIndex(t, embedder)

	indexed, failed, err := ix.Rebuild(context.Background(), []IndexDocument{
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "good"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "unembeddable"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ix.Size())
}

func TestRebuildDropsStaleRecords(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"kept":    {1, 0},
		"removed": {0, 1},
	}}
	ix, store := newTestIndex(t, embedder)

	keptID := uuid.New()
	_, _, err := ix.Rebuild(context.Background(), []IndexDocument{
		{SourceType: models.SourceTypeProgramme, SourceID: keptID, Text: "kept"},
		{SourceType: models.SourceTypeProgramme, SourceID: uuid.New(), Text: "removed"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, ix.Size())

	// Second rebuild without the removed document
	_, _, err = ix.Rebuild(context.Background(), []IndexDocument{
		{SourceType: models.SourceTypeProgramme, SourceID: keptID, Text: "kept"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Size())

	// The store dropped the stale row too; a fresh Load stays at one record
	fresh := NewEmbeddingIndex(embedder, store, zap.NewNop())
	require.NoError(t, fresh.Load(context.Background()))
	assert.Equal(t, 1, fresh.Size())
}

func TestRebuildSkipsUnchangedDocuments(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"stable": {1, 0},
	}}
	ix, _ := newTestIndex(t, embedder)

	doc := IndexDocument{SourceType: models.SourceTypeUniversity, SourceID: uuid.New(), Text: "stable"}
	_, _, err := ix.Rebuild(context.Background(), []IndexDocument{doc})
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	indexed, failed, err := ix.Rebuild(context.Background(), []IndexDocument{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	assert.Equal(t, 0, failed)
	// Unchanged text hash means no second embedding call
	assert.Equal(t, callsAfterFirst, embedder.calls)
}

func TestUpsertUnchangedTextIsNoOp(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"text": {1, 0},
	}}
	ix, _ := newTestIndex(t, embedder)

	id := uuid.New()
	first, err := ix.Upsert(context.Background(), models.SourceTypeProgramme, id, "text")
	require.NoError(t, err)

	second, err := ix.Upsert(context.Background(), models.SourceTypeProgramme, id, "text")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, embedder.calls)
}

func TestUpsertEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	ix, _ := newTestIndex(t, embedder)

	_, err := ix.Upsert(context.Background(), models.SourceTypeProgramme, uuid.New(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, 0, ix.Size())
}

func TestLoadHydratesFromStore(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"text": {1, 0}}}
	ix, store := newTestIndex(t, embedder)

	_, err := ix.Upsert(context.Background(), models.SourceTypeProgramme, uuid.New(), "text")
	require.NoError(t, err)

	fresh := NewEmbeddingIndex(embedder, store, zap.NewNop())
	require.NoError(t, fresh.Load(context.Background()))
	assert.Equal(t, 1, fresh.Size())
}
