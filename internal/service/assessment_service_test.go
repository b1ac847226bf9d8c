package service

import (
	"context"
	"errors"
	"testing"

	"uni-counselor/internal/models"
	"uni-counselor/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAssessmentConfig() *config.AssessmentConfig {
	return &config.AssessmentConfig{
		HighThreshold:   75,
		MediumThreshold: 45,
		AcademicWeight:  35,
		LanguageWeight:  25,
		FinancialWeight: 25,
		DocumentsWeight: 15,
	}
}

func newTestAssessmentService(gateway ChatCompleter) *AssessmentService {
	return NewAssessmentService(gateway, testAssessmentConfig(), zap.NewNop())
}

func strongProfile() *models.StudentProfile {
	funds := 15000.0
	return &models.StudentProfile{
		ID:                    uuid.New(),
		Nationality:           "India",
		HighestEducationLevel: "Bachelor",
		HighestEducationField: "Computer Science",
		DesiredStudyLevel:     "Master",
		DesiredField:          "Data Science",
		EnglishLevel:          "B2",
		BudgetFundsEUR:        &funds,
	}
}

func TestAssessStrongProfileIsHigh(t *testing.T) {
	s := newTestAssessmentService(nil)

	a := s.Assess(strongProfile(), nil, nil)

	assert.Equal(t, models.FeasibilityHigh, a.OverallFeasibility)
	assert.Empty(t, a.KeyGaps)
	assert.NotNil(t, a.KeyGaps) // empty slice, not nil: it serializes as []
	assert.InDelta(t, 35, a.ScoreDetails.Components["academic"], 0.01)
	assert.InDelta(t, 21.3, a.ScoreDetails.Components["language"], 0.01)
	assert.InDelta(t, 25, a.ScoreDetails.Components["financial"], 0.01)
	assert.InDelta(t, 0, a.ScoreDetails.Components["documents"], 0.01)
	assert.InDelta(t, 81.3, a.ScoreDetails.Percentage, 0.01)
	// Missing documents yield actions, never gaps
	assert.NotEmpty(t, a.RecommendedActions)
}

func TestAssessIsDeterministic(t *testing.T) {
	s := newTestAssessmentService(nil)
	profile := strongProfile()

	a1 := s.Assess(profile, nil, nil)
	a2 := s.Assess(profile, nil, nil)

	assert.Equal(t, a1.OverallFeasibility, a2.OverallFeasibility)
	assert.Equal(t, a1.ScoreDetails, a2.ScoreDetails)
	assert.Equal(t, a1.KeyGaps, a2.KeyGaps)
	assert.Equal(t, a1.RecommendedActions, a2.RecommendedActions)
}

func TestAssessEmptyProfileIsLowWithGaps(t *testing.T) {
	s := newTestAssessmentService(nil)

	a := s.Assess(&models.StudentProfile{ID: uuid.New(), DesiredStudyLevel: "Master"}, nil, nil)

	assert.Equal(t, models.FeasibilityLow, a.OverallFeasibility)
	assert.Contains(t, a.KeyGaps, gapAcademicMismatch)
	assert.Contains(t, a.KeyGaps, gapNoEnglishCert)
	assert.Contains(t, a.KeyGaps, gapNoFundsRecorded)
	// Every gap gets a matching action
	for _, gap := range a.KeyGaps {
		assert.Contains(t, a.RecommendedActions, gapActions[gap])
	}
}

func TestAssessPartialFunds(t *testing.T) {
	s := newTestAssessmentService(nil)
	profile := strongProfile()
	funds := 9000.0 // above 70% of the 11904 default, below the full amount
	profile.BudgetFundsEUR = &funds

	a := s.Assess(profile, nil, nil)

	assert.Contains(t, a.KeyGaps, gapInsufficientFunds)
	assert.InDelta(t, 12.5, a.ScoreDetails.Components["financial"], 0.01)
}

func TestAssessUsesImmigrationRuleFunds(t *testing.T) {
	s := newTestAssessmentService(nil)
	profile := strongProfile()
	funds := 12500.0
	profile.BudgetFundsEUR = &funds

	rule := &models.ImmigrationRule{MinFundsYearEUR: 13000}
	a := s.Assess(profile, nil, rule)
	assert.Contains(t, a.KeyGaps, gapInsufficientFunds)

	// Same funds clear the default requirement when no rule applies
	a = s.Assess(profile, nil, nil)
	assert.NotContains(t, a.KeyGaps, gapInsufficientFunds)
}

func TestAssessDocumentsCounted(t *testing.T) {
	s := newTestAssessmentService(nil)
	profile := strongProfile()
	docs := []*models.StudentDocument{
		{Type: models.DocumentTypeTranscript},
		{Type: models.DocumentTypeDegree},
		{Type: models.DocumentTypeLanguageCert},
		{Type: models.DocumentTypeCV},
		{Type: models.DocumentTypeSOP},
	}

	a := s.Assess(profile, docs, nil)

	assert.InDelta(t, 15, a.ScoreDetails.Components["documents"], 0.01)
	assert.Empty(t, a.KeyGaps)
}

func TestAssessBachelorEntrySkipsDegreeCertificate(t *testing.T) {
	s := newTestAssessmentService(nil)
	profile := &models.StudentProfile{
		ID:                    uuid.New(),
		HighestEducationLevel: "High School",
		DesiredStudyLevel:     "Bachelor",
		EnglishLevel:          "C1",
	}
	docs := []*models.StudentDocument{
		{Type: models.DocumentTypeTranscript},
		{Type: models.DocumentTypeLanguageCert},
		{Type: models.DocumentTypeCV},
		{Type: models.DocumentTypeSOP},
	}

	a := s.Assess(profile, docs, nil)

	// 4 of 4 required: the degree certificate is not expected at bachelor entry
	assert.InDelta(t, 15, a.ScoreDetails.Components["documents"], 0.01)
}

func TestVisaTypeForProfile(t *testing.T) {
	p := strongProfile()
	assert.Equal(t, "student", VisaTypeForProfile(p))

	p.DesiredStudyLevel = "Studienkolleg"
	assert.Equal(t, "applicant", VisaTypeForProfile(p))

	p.DesiredStudyLevel = ""
	assert.Equal(t, "student", VisaTypeForProfile(p))
}

func TestLanguageLevelScore(t *testing.T) {
	assert.Equal(t, 1.0, languageLevelScore("c1"))
	assert.Equal(t, 1.0, languageLevelScore("testdaf passed"))
	assert.Equal(t, 0.85, languageLevelScore("b2"))
	assert.Equal(t, 0.85, languageLevelScore("ielts 7.0"))
	assert.Equal(t, 0.4, languageLevelScore("b1"))
	assert.Equal(t, 0.2, languageLevelScore("beginner"))
	assert.Equal(t, 0.0, languageLevelScore(""))
}

func TestExplainFailureLeavesAssessmentUnchanged(t *testing.T) {
	failing := completerFunc(func(context.Context, []ChatMessage, float64, int) (*ProviderResponse, error) {
		return nil, errors.New("provider down")
	})
	s := newTestAssessmentService(failing)

	a := s.Assess(strongProfile(), nil, nil)
	verdict := a.OverallFeasibility
	pct := a.ScoreDetails.Percentage

	s.Explain(context.Background(), a, strongProfile())

	assert.Empty(t, a.AIExplanation)
	assert.Equal(t, verdict, a.OverallFeasibility)
	assert.Equal(t, pct, a.ScoreDetails.Percentage)
}

func TestExplainFillsExplanationOnly(t *testing.T) {
	s := newTestAssessmentService(fixedReply("You are in great shape overall."))

	a := s.Assess(strongProfile(), nil, nil)
	verdict := a.OverallFeasibility

	s.Explain(context.Background(), a, strongProfile())

	require.NotEmpty(t, a.AIExplanation)
	assert.Equal(t, verdict, a.OverallFeasibility)
}
