package repository

import (
	"context"

	"uni-counselor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CatalogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCatalogRepository(db *pgxpool.Pool, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

var universityColumns = []string{
	"id", "name", "city", "state", "country", "web_pages", "description", "source_url",
	"created_at", "updated_at",
}

// Programme reads join the owning university for its name.
var programmeColumns = []string{
	"p.id", "p.university_id", "u.name", "p.title", "p.degree_type", "p.city", "p.languages",
	"p.tuition_fee_eur_per_semester", "p.duration_semesters", "p.application_deadline",
	"p.description", "p.source_url", "p.created_at", "p.updated_at",
}

// UpsertUniversity inserts or refreshes a university keyed by name. On
// conflict the existing row id is kept and written back into u.ID, so
// programmes and embeddings stay attached across re-imports.
func (r *CatalogRepository) UpsertUniversity(ctx context.Context, u *models.University) error {
	query := squirrel.Insert("universities").
		Columns(universityColumns...).
		Values(u.ID, u.Name, u.City, u.State, u.Country, u.WebPages, u.Description, u.SourceURL,
			u.CreatedAt, u.UpdatedAt).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			web_pages = EXCLUDED.web_pages,
			description = EXCLUDED.description,
			source_url = EXCLUDED.source_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, sql, args...).Scan(&u.ID)
}

func (r *CatalogRepository) GetUniversity(ctx context.Context, id uuid.UUID) (*models.University, error) {
	query := squirrel.Select(universityColumns...).
		From("universities").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var u models.University
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&u.ID, &u.Name, &u.City, &u.State, &u.Country, &u.WebPages, &u.Description, &u.SourceURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *CatalogRepository) ListUniversities(ctx context.Context, limit int) ([]*models.University, error) {
	query := squirrel.Select(universityColumns...).
		From("universities").
		OrderBy("name ASC").
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

	var universities []*models.University
	for rows.Next() {
		var u models.University
		if err := rows.Scan(
			&u.ID, &u.Name, &u.City, &u.State, &u.Country, &u.WebPages, &u.Description, &u.SourceURL,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		universities = append(universities, &u)
	}

	return universities, nil
}

// UpsertProgramme inserts or refreshes a programme keyed by
// (university_id, title, degree_type); the existing row id is written back
// into p.ID on conflict.
func (r *CatalogRepository) UpsertProgramme(ctx context.Context, p *models.Programme) error {
	query := squirrel.Insert("programmes").
		Columns("id", "university_id", "title", "degree_type", "city", "languages",
			"tuition_fee_eur_per_semester", "duration_semesters", "application_deadline",
			"description", "source_url", "created_at", "updated_at").
		Values(p.ID, p.UniversityID, p.Title, p.DegreeType, p.City, p.Languages,
			p.TuitionFeeEURPerSemester, p.DurationSemesters, p.ApplicationDeadline,
			p.Description, p.SourceURL, p.CreatedAt, p.UpdatedAt).
		Suffix(`ON CONFLICT (university_id, title, degree_type) DO UPDATE SET
			city = EXCLUDED.city,
			languages = EXCLUDED.languages,
			tuition_fee_eur_per_semester = EXCLUDED.tuition_fee_eur_per_semester,
			duration_semesters = EXCLUDED.duration_semesters,
			application_deadline = EXCLUDED.application_deadline,
			description = EXCLUDED.description,
			source_url = EXCLUDED.source_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, sql, args...).Scan(&p.ID)
}

func (r *CatalogRepository) GetProgramme(ctx context.Context, id uuid.UUID) (*models.Programme, error) {
	query := squirrel.Select(programmeColumns...).
		From("programmes p").
		Join("universities u ON u.id = p.university_id").
		Where(squirrel.Eq{"p.id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var p models.Programme
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&p.ID, &p.UniversityID, &p.UniversityName, &p.Title, &p.DegreeType, &p.City, &p.Languages,
		&p.TuitionFeeEURPerSemester, &p.DurationSemesters, &p.ApplicationDeadline,
		&p.Description, &p.SourceURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListProgrammes applies the structured filter. String fields match
// case-insensitively; field and language are substring matches since catalog
// values are free-form ("Computer Science (M.Sc.)", "English, German").
func (r *CatalogRepository) ListProgrammes(ctx context.Context, filter models.ProgrammeFilter, limit int) ([]*models.Programme, error) {
	query := squirrel.Select(programmeColumns...).
		From("programmes p").
		Join("universities u ON u.id = p.university_id").
		OrderBy("p.title ASC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	if filter.DegreeType != "" {
		query = query.Where(squirrel.ILike{"p.degree_type": filter.DegreeType + "%"})
	}
	if filter.Field != "" {
		query = query.Where(squirrel.ILike{"p.title": "%" + filter.Field + "%"})
	}
	if filter.City != "" {
		query = query.Where(squirrel.ILike{"p.city": filter.City})
	}
	if filter.Language != "" {
		query = query.Where("EXISTS (SELECT 1 FROM unnest(p.languages) l WHERE l ILIKE ?)", filter.Language)
	}
	if filter.MaxTuition != nil {
		query = query.Where(squirrel.Or{
			squirrel.Eq{"p.tuition_fee_eur_per_semester": nil},
			squirrel.LtOrEq{"p.tuition_fee_eur_per_semester": *filter.MaxTuition},
		})
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

	var programmes []*models.Programme
	for rows.Next() {
		var p models.Programme
		if err := rows.Scan(
			&p.ID, &p.UniversityID, &p.UniversityName, &p.Title, &p.DegreeType, &p.City, &p.Languages,
			&p.TuitionFeeEURPerSemester, &p.DurationSemesters, &p.ApplicationDeadline,
			&p.Description, &p.SourceURL, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		programmes = append(programmes, &p)
	}

	return programmes, nil
}
