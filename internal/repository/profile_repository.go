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

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

var profileColumns = []string{
	"id", "user_id", "nationality", "highest_education_level", "highest_education_field",
	"desired_study_level", "desired_field", "english_level", "german_level", "gpa_or_marks",
	"preferred_cities", "budget_funds_eur", "created_at", "updated_at",
}

func (r *ProfileRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	query := squirrel.Insert("student_profiles").
		Columns(profileColumns...).
		Values(
			profile.ID, profile.UserID, profile.Nationality, profile.HighestEducationLevel,
			profile.HighestEducationField, profile.DesiredStudyLevel, profile.DesiredField,
			profile.EnglishLevel, profile.GermanLevel, profile.GPAOrMarks,
			profile.PreferredCities, profile.BudgetFundsEUR, profile.CreatedAt, profile.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StudentProfile, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByUserID returns the user's profile, or (nil, nil) when none exists yet.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.StudentProfile, error) {
	profile, err := r.getOne(ctx, squirrel.Eq{"user_id": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return profile, err
}

func (r *ProfileRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.StudentProfile, error) {
	query := squirrel.Select(profileColumns...).
		From("student_profiles").
		Where(where).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var profile models.StudentProfile
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&profile.ID, &profile.UserID, &profile.Nationality, &profile.HighestEducationLevel,
		&profile.HighestEducationField, &profile.DesiredStudyLevel, &profile.DesiredField,
		&profile.EnglishLevel, &profile.GermanLevel, &profile.GPAOrMarks,
		&profile.PreferredCities, &profile.BudgetFundsEUR, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	profile.UpdatedAt = time.Now()

	query := squirrel.Update("student_profiles").
		Set("nationality", profile.Nationality).
		Set("highest_education_level", profile.HighestEducationLevel).
		Set("highest_education_field", profile.HighestEducationField).
		Set("desired_study_level", profile.DesiredStudyLevel).
		Set("desired_field", profile.DesiredField).
		Set("english_level", profile.EnglishLevel).
		Set("german_level", profile.GermanLevel).
		Set("gpa_or_marks", profile.GPAOrMarks).
		Set("preferred_cities", profile.PreferredCities).
		Set("budget_funds_eur", profile.BudgetFundsEUR).
		Set("updated_at", profile.UpdatedAt).
		Where(squirrel.Eq{"id": profile.ID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ProfileRepository) AddDocument(ctx context.Context, doc *models.StudentDocument) error {
	query := squirrel.Insert("student_documents").
		Columns("id", "user_id", "type", "file_name", "uploaded_at").
		Values(doc.ID, doc.UserID, doc.Type, doc.FileName, doc.UploadedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ProfileRepository) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.StudentDocument, error) {
	query := squirrel.Select("id", "user_id", "type", "file_name", "uploaded_at").
		From("student_documents").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("uploaded_at DESC").
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

	var docs []*models.StudentDocument
	for rows.Next() {
		var doc models.StudentDocument
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Type, &doc.FileName, &doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}

	return docs, nil
}
