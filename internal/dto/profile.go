package dto

type UpdateProfileRequest struct {
	Nationality           *string   `json:"nationality"`
	HighestEducationLevel *string   `json:"highest_education_level"`
	HighestEducationField *string   `json:"highest_education_field"`
	DesiredStudyLevel     *string   `json:"desired_study_level"`
	DesiredField          *string   `json:"desired_field"`
	EnglishLevel          *string   `json:"english_level"`
	GermanLevel           *string   `json:"german_level"`
	GPAOrMarks            *string   `json:"gpa_or_marks"`
	PreferredCities       *[]string `json:"preferred_cities"`
	BudgetFundsEUR        *float64  `json:"budget_funds_eur"`
}

type ProfileResponse struct {
	ID                    string   `json:"id"`
	Nationality           string   `json:"nationality"`
	HighestEducationLevel string   `json:"highest_education_level"`
	HighestEducationField string   `json:"highest_education_field"`
	DesiredStudyLevel     string   `json:"desired_study_level"`
	DesiredField          string   `json:"desired_field"`
	EnglishLevel          string   `json:"english_level"`
	GermanLevel           string   `json:"german_level"`
	GPAOrMarks            string   `json:"gpa_or_marks"`
	PreferredCities       []string `json:"preferred_cities"`
	BudgetFundsEUR        *float64 `json:"budget_funds_eur"`
	UpdatedAt             string   `json:"updated_at"`
}

type AddDocumentRequest struct {
	Type     string `json:"type" validate:"required,oneof=transcript degree_certificate language_certificate cv sop"`
	FileName string `json:"file_name" validate:"required"`
}

type StudentDocumentResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	FileName   string `json:"file_name"`
	UploadedAt string `json:"uploaded_at"`
}
