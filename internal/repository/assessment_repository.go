package repository

import (
	"context"
	"encoding/json"
	"errors"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type AssessmentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAssessmentRepository(db *pgxpool.Pool, logger *zap.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:     db,
		logger: logger,
	}
}

var assessmentColumns = []string{
	"id", "profile_id", "overall_feasibility", "score_details", "key_gaps",
	"recommended_actions", "ai_explanation", "created_at",
}

func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	details, err := json.Marshal(a.ScoreDetails)
	if err != nil {
		return err
	}

	query := squirrel.Insert("assessments").
		Columns(assessmentColumns...).
		Values(a.ID, a.ProfileID, a.OverallFeasibility, details, a.KeyGaps,
			a.RecommendedActions, a.AIExplanation, a.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Latest returns the most recent assessment, or (nil, nil) when the profile
// has never been assessed.
func (r *AssessmentRepository) Latest(ctx context.Context, profileID uuid.UUID) (*models.Assessment, error) {
	query := squirrel.Select(assessmentColumns...).
		From("assessments").
		Where(squirrel.Eq{"profile_id": profileID}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	a, err := r.scanOne(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *AssessmentRepository) History(ctx context.Context, profileID uuid.UUID, limit int) ([]*models.Assessment, error) {
	query := squirrel.Select(assessmentColumns...).
		From("assessments").
		Where(squirrel.Eq{"profile_id": profileID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*models.Assessment
	for rows.Next() {
		a, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, nil
}

func (r *AssessmentRepository) scanOne(row pgx.Row) (*models.Assessment, error) {
	var a models.Assessment
	var details []byte

	if err := row.Scan(
		&a.ID, &a.ProfileID, &a.OverallFeasibility, &details, &a.KeyGaps,
		&a.RecommendedActions, &a.AIExplanation, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &a.ScoreDetails); err != nil {
		return nil, err
	}

	return &a, nil
}
