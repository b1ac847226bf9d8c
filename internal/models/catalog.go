package models

import (
	"time"

	"github.com/google/uuid"
)

type University struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	City        string    `db:"city"`
	State       string    `db:"state"`
	Country     string    `db:"country"`
	WebPages    []string  `db:"web_pages"`
	Description string    `db:"description"`
	SourceURL   string    `db:"source_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type Programme struct {
	ID                       uuid.UUID  `db:"id"`
	UniversityID             uuid.UUID  `db:"university_id"`
	UniversityName           string     `db:"university_name"`
	Title                    string     `db:"title"`
	DegreeType               string     `db:"degree_type"`
	City                     string     `db:"city"`
	Languages                []string   `db:"languages"`
	TuitionFeeEURPerSemester *float64   `db:"tuition_fee_eur_per_semester"`
	DurationSemesters        *int       `db:"duration_semesters"`
	ApplicationDeadline      *time.Time `db:"application_deadline"`
	Description              string     `db:"description"`
	SourceURL                string     `db:"source_url"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}

// ProgrammeFilter narrows a programme listing. Zero-valued fields impose no
// constraint.
type ProgrammeFilter struct {
	DegreeType string
	Field      string
	City       string
	Language   string
	MaxTuition *float64
}

// ImmigrationRule describes visa requirements for one (country, visa type)
// pair. Consumed read-only by the assessment engine.
type ImmigrationRule struct {
	ID               uuid.UUID `db:"id"`
	CountryCode      string    `db:"country_code"`
	VisaType         string    `db:"visa_type"`
	MinFundsYearEUR  float64   `db:"min_funds_year_eur"`
	WorkHoursPerWeek int       `db:"work_hours_per_week"`
	KeyDocuments     []string  `db:"key_documents"`
	SourceURL        string    `db:"source_url"`
	UpdatedAt        time.Time `db:"updated_at"`
}
