package models

import (
	"time"

	"github.com/google/uuid"
)

// StudentProfile holds the structured data the counselor grounds its
// recommendations and feasibility assessments on.
type StudentProfile struct {
	ID                    uuid.UUID `db:"id"`
	UserID                uuid.UUID `db:"user_id"`
	Nationality           string    `db:"nationality"`
	HighestEducationLevel string    `db:"highest_education_level"`
	HighestEducationField string    `db:"highest_education_field"`
	DesiredStudyLevel     string    `db:"desired_study_level"`
	DesiredField          string    `db:"desired_field"`
	EnglishLevel          string    `db:"english_level"`
	GermanLevel           string    `db:"german_level"`
	GPAOrMarks            string    `db:"gpa_or_marks"`
	PreferredCities       []string  `db:"preferred_cities"`
	BudgetFundsEUR        *float64  `db:"budget_funds_eur"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

type StudentDocumentType string

const (
	DocumentTypeTranscript   StudentDocumentType = "transcript"
	DocumentTypeDegree       StudentDocumentType = "degree_certificate"
	DocumentTypeLanguageCert StudentDocumentType = "language_certificate"
	DocumentTypeCV           StudentDocumentType = "cv"
	DocumentTypeSOP          StudentDocumentType = "sop"
)

// ParseDocumentType validates a client-supplied document type string.
func ParseDocumentType(s string) (StudentDocumentType, bool) {
	switch t := StudentDocumentType(s); t {
	case DocumentTypeTranscript, DocumentTypeDegree, DocumentTypeLanguageCert, DocumentTypeCV, DocumentTypeSOP:
		return t, true
	}
	return "", false
}

// StudentDocument is a record of an uploaded application document. Only the
// record matters here; file storage lives outside this service.
type StudentDocument struct {
	ID         uuid.UUID           `db:"id"`
	UserID     uuid.UUID           `db:"user_id"`
	Type       StudentDocumentType `db:"type"`
	FileName   string              `db:"file_name"`
	UploadedAt time.Time           `db:"uploaded_at"`
}
