package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"uni-counselor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmbeddingStore persists embedding records; the index keeps the searchable
// copy in memory.
type EmbeddingStore interface {
	Upsert(ctx context.Context, rec *models.EmbeddingRecord) error
	Delete(ctx context.Context, sourceType models.SourceType, sourceID uuid.UUID) error
	ListAll(ctx context.Context) ([]*models.EmbeddingRecord, error)
}

type recordKey struct {
	sourceType models.SourceType
	sourceID   uuid.UUID
}

// SearchFilter narrows a search to one source type. Nil means no filter.
type SearchFilter struct {
	SourceType models.SourceType
}

type SearchHit struct {
	Record *models.EmbeddingRecord
	Score  float64
}

// IndexDocument is one document handed to a full rebuild.
type IndexDocument struct {
	SourceType models.SourceType
	SourceID   uuid.UUID
	Text       string
}

// EmbeddingIndex answers nearest-neighbor queries over the document corpus.
// Readers take the read lock; a rebuild stages a complete new generation and
// swaps it in under the write lock, so a concurrent search sees either the
// old or the new generation, never a mix.
type EmbeddingIndex struct {
	embedder Embedder
	store    EmbeddingStore
	logger   *zap.Logger

	mu      sync.RWMutex
	records map[recordKey]*models.EmbeddingRecord
}

func NewEmbeddingIndex(embedder Embedder, store EmbeddingStore, logger *zap.Logger) *EmbeddingIndex {
	return &EmbeddingIndex{
		embedder: embedder,
		store:    store,
		logger:   logger,
		records:  make(map[recordKey]*models.EmbeddingRecord),
	}
}

// Load hydrates the in-memory generation from the store. Called once at
// startup.
func (ix *EmbeddingIndex) Load(ctx context.Context) error {
	recs, err := ix.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embedding records: %w", err)
	}

	generation := make(map[recordKey]*models.EmbeddingRecord, len(recs))
	for _, rec := range recs {
		generation[recordKey{rec.SourceType, rec.SourceID}] = rec
	}

	ix.mu.Lock()
	ix.records = generation
	ix.mu.Unlock()

	ix.logger.Info("Embedding index loaded", zap.Int("records", len(recs)))
	return nil
}

// EmbedText produces a query vector via the embedding vendor.
func (ix *EmbeddingIndex) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := ix.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// Upsert indexes a single document incrementally. An unchanged text hash is
// a no-op; otherwise the document is re-embedded, persisted and replaced in
// the live generation.
func (ix *EmbeddingIndex) Upsert(ctx context.Context, sourceType models.SourceType, sourceID uuid.UUID, text string) (*models.EmbeddingRecord, error) {
	key := recordKey{sourceType, sourceID}
	hash := textHash(text)

	ix.mu.RLock()
	existing, ok := ix.records[key]
	ix.mu.RUnlock()
	if ok && existing.TextHash == hash {
		return existing, nil
	}

	vec, err := ix.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	rec := &models.EmbeddingRecord{
		SourceType: sourceType,
		SourceID:   sourceID,
		Vector:     vec,
		TextHash:   hash,
		UpdatedAt:  time.Now(),
	}

	if err := ix.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist embedding record: %w", err)
	}

	ix.mu.Lock()
	ix.records[key] = rec
	ix.mu.Unlock()

	return rec, nil
}

// Search returns up to topK records sorted by descending cosine similarity,
// ties broken by the most recently updated record. A corpus smaller than
// topK returns everything without error.
func (ix *EmbeddingIndex) Search(queryVec []float32, topK int, filter *SearchFilter) []SearchHit {
	ix.mu.RLock()
	hits := make([]SearchHit, 0, len(ix.records))
	for _, rec := range ix.records {
		if filter != nil && filter.SourceType != "" && rec.SourceType != filter.SourceType {
			continue
		}
		hits = append(hits, SearchHit{
			Record: rec,
			Score:  cosineSimilarity(queryVec, rec.Vector),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.UpdatedAt.After(hits[j].Record.UpdatedAt)
	})

	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Rebuild recomputes the whole index into a staging generation and swaps it
// in atomically. A document whose embedding fails is skipped and counted;
// it never aborts the batch.
func (ix *EmbeddingIndex) Rebuild(ctx context.Context, docs []IndexDocument) (indexed, failed int, err error) {
	staging := make(map[recordKey]*models.EmbeddingRecord, len(docs))

	ix.mu.RLock()
	current := ix.records
	ix.mu.RUnlock()

	for _, doc := range docs {
		if ctx.Err() != nil {
			return indexed, failed, ctx.Err()
		}

		key := recordKey{doc.SourceType, doc.SourceID}
		hash := textHash(doc.Text)

		// Unchanged documents keep their vector; no embedding call needed
		if prev, ok := current[key]; ok && prev.TextHash == hash {
			staging[key] = prev
			indexed++
			continue
		}

		vec, embedErr := ix.embedder.EmbedText(ctx, doc.Text)
		if embedErr != nil {
			failed++
			ix.logger.Warn("Skipping document, embedding failed",
				zap.String("source_type", string(doc.SourceType)),
				zap.String("source_id", doc.SourceID.String()),
				zap.Error(embedErr),
			)
			continue
		}

		rec := &models.EmbeddingRecord{
			SourceType: doc.SourceType,
			SourceID:   doc.SourceID,
			Vector:     vec,
			TextHash:   hash,
			UpdatedAt:  time.Now(),
		}

		if storeErr := ix.store.Upsert(ctx, rec); storeErr != nil {
			failed++
			ix.logger.Warn("Skipping document, persist failed",
				zap.String("source_id", doc.SourceID.String()),
				zap.Error(storeErr),
			)
			continue
		}

		staging[key] = rec
		indexed++
	}

	// Records absent from the new generation are removed from the store as
	// well, so a later Load cannot resurrect them
	for key := range current {
		if _, ok := staging[key]; ok {
			continue
		}
		if delErr := ix.store.Delete(ctx, key.sourceType, key.sourceID); delErr != nil {
			ix.logger.Warn("Failed to delete stale embedding record",
				zap.String("source_type", string(key.sourceType)),
				zap.String("source_id", key.sourceID.String()),
				zap.Error(delErr),
			)
		}
	}

	ix.mu.Lock()
	ix.records = staging
	ix.mu.Unlock()

	ix.logger.Info("Embedding index rebuilt",
		zap.Int("indexed", indexed),
		zap.Int("failed", failed),
	)
	return indexed, failed, nil
}

// Size reports the number of records in the live generation.
func (ix *EmbeddingIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
