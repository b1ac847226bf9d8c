package repository

import (
	"context"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// EmbeddingRepository persists index records. The in-memory index is the
// source of truth for search; this table exists so the index survives a
// restart without re-embedding the whole catalog.
type EmbeddingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEmbeddingRepository(db *pgxpool.Pool, logger *zap.Logger) *EmbeddingRepository {
	return &EmbeddingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *EmbeddingRepository) Upsert(ctx context.Context, rec *models.EmbeddingRecord) error {
	vector := pgtype.FlatArray[float32]{}
	for _, v := range rec.Vector {
		vector = append(vector, v)
	}

	query := squirrel.Insert("embeddings").
		Columns("source_type", "source_id", "vector", "text_hash", "updated_at").
		Values(rec.SourceType, rec.SourceID, vector, rec.TextHash, rec.UpdatedAt).
		Suffix(`ON CONFLICT (source_type, source_id) DO UPDATE SET
			vector = EXCLUDED.vector,
			text_hash = EXCLUDED.text_hash,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *EmbeddingRepository) Delete(ctx context.Context, sourceType models.SourceType, sourceID uuid.UUID) error {
	query := squirrel.Delete("embeddings").
		Where(squirrel.Eq{"source_type": sourceType, "source_id": sourceID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *EmbeddingRepository) ListAll(ctx context.Context) ([]*models.EmbeddingRecord, error) {
	query := squirrel.Select("source_type", "source_id", "vector", "text_hash", "updated_at").
		From("embeddings").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.EmbeddingRecord
	for rows.Next() {
		var rec models.EmbeddingRecord
		var vector pgtype.FlatArray[float32]

		if err := rows.Scan(&rec.SourceType, &rec.SourceID, &vector, &rec.TextHash, &rec.UpdatedAt); err != nil {
			return nil, err
		}

		rec.Vector = []float32(vector)
		records = append(records, &rec)
	}

	return records, nil
}
