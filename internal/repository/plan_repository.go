package repository

import (
	"context"
	"errors"
	"time"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PlanRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPlanRepository(db *pgxpool.Pool, logger *zap.Logger) *PlanRepository {
	return &PlanRepository{
		db:     db,
		logger: logger,
	}
}

var planColumns = []string{"id", "profile_id", "title", "status", "due_date", "created_at", "updated_at"}

func (r *PlanRepository) AddStep(ctx context.Context, step *models.ActionPlanStep) error {
	query := squirrel.Insert("action_plan_steps").
		Columns(planColumns...).
		Values(step.ID, step.ProfileID, step.Title, step.Status, step.DueDate, step.CreatedAt, step.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *PlanRepository) ListSteps(ctx context.Context, profileID uuid.UUID) ([]models.ActionPlanStep, error) {
	query := squirrel.Select(planColumns...).
		From("action_plan_steps").
		Where(squirrel.Eq{"profile_id": profileID}).
		OrderBy("created_at ASC").
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

	var steps []models.ActionPlanStep
	for rows.Next() {
		var step models.ActionPlanStep
		if err := rows.Scan(
			&step.ID, &step.ProfileID, &step.Title, &step.Status, &step.DueDate, &step.CreatedAt, &step.UpdatedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// FindStepByTitle matches case-insensitively and returns (nil, nil) when the
// plan has no such step. Directive application relies on that contract.
func (r *PlanRepository) FindStepByTitle(ctx context.Context, profileID uuid.UUID, title string) (*models.ActionPlanStep, error) {
	query := squirrel.Select(planColumns...).
		From("action_plan_steps").
		Where(squirrel.Eq{"profile_id": profileID}).
		Where(squirrel.ILike{"title": title}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var step models.ActionPlanStep
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&step.ID, &step.ProfileID, &step.Title, &step.Status, &step.DueDate, &step.CreatedAt, &step.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &step, nil
}

func (r *PlanRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*models.ActionPlanStep, error) {
	query := squirrel.Select(planColumns...).
		From("action_plan_steps").
		Where(squirrel.Eq{"id": stepID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var step models.ActionPlanStep
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&step.ID, &step.ProfileID, &step.Title, &step.Status, &step.DueDate, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &step, nil
}

func (r *PlanRepository) UpdateStepStatus(ctx context.Context, stepID uuid.UUID, status models.StepStatus) error {
	query := squirrel.Update("action_plan_steps").
		Set("status", status).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": stepID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
