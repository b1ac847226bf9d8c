package repository

import (
	"context"
	"errors"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ImmigrationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewImmigrationRepository(db *pgxpool.Pool, logger *zap.Logger) *ImmigrationRepository {
	return &ImmigrationRepository{
		db:     db,
		logger: logger,
	}
}

var immigrationColumns = []string{
	"id", "country_code", "visa_type", "min_funds_year_eur", "work_hours_per_week",
	"key_documents", "source_url", "updated_at",
}

func (r *ImmigrationRepository) Upsert(ctx context.Context, rule *models.ImmigrationRule) error {
	query := squirrel.Insert("immigration_rules").
		Columns(immigrationColumns...).
		Values(rule.ID, rule.CountryCode, rule.VisaType, rule.MinFundsYearEUR,
			rule.WorkHoursPerWeek, rule.KeyDocuments, rule.SourceURL, rule.UpdatedAt).
		Suffix(`ON CONFLICT (country_code, visa_type) DO UPDATE SET
			min_funds_year_eur = EXCLUDED.min_funds_year_eur,
			work_hours_per_week = EXCLUDED.work_hours_per_week,
			key_documents = EXCLUDED.key_documents,
			source_url = EXCLUDED.source_url,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetRule returns the rule for a (country, visa type) pair, or (nil, nil)
// when no rule is recorded. The assessment engine falls back to its built-in
// default in that case.
func (r *ImmigrationRepository) GetRule(ctx context.Context, countryCode, visaType string) (*models.ImmigrationRule, error) {
	query := squirrel.Select(immigrationColumns...).
		From("immigration_rules").
		Where(squirrel.Eq{"country_code": countryCode, "visa_type": visaType}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var rule models.ImmigrationRule
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&rule.ID, &rule.CountryCode, &rule.VisaType, &rule.MinFundsYearEUR,
		&rule.WorkHoursPerWeek, &rule.KeyDocuments, &rule.SourceURL, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rule, nil
}
