package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"uni-counselor/internal/models"
	"uni-counselor/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssessmentDisclaimer accompanies every feasibility verdict shown to a
// student.
const AssessmentDisclaimer = "This assessment is informational only and not an admission, scholarship, or visa decision."

// Fallback when no immigration rule matches the profile (German student visa
// blocked-account amount).
const defaultMinFundsYearEUR = 11904

// A dimension below this fraction of its weight is reported as a key gap.
const gapThreshold = 0.5

const (
	dimAcademic  = "academic"
	dimLanguage  = "language"
	dimFinancial = "financial"
	dimDocuments = "documents"
)

// gapActions maps each gap to its deterministic recommended action. Keeping
// this a lookup table (not model output) makes the verdict reproducible.
var gapActions = map[string]string{
	gapAcademicMismatch:  "Review entry requirements for the desired study level or consider a preparatory path (Studienkolleg)",
	gapNoEnglishCert:     "Take an English language test (IELTS/TOEFL) or document your CEFR level",
	gapLowLanguageLevel:  "Improve language proficiency; most programmes expect B2 or higher",
	gapNoFundsRecorded:   "Record your available funds; a blocked account or sponsorship proof is required for the visa",
	gapInsufficientFunds: "Increase available funds or look into scholarships and part-time work allowances",
}

const (
	gapAcademicMismatch  = "Current education level does not match the desired study level"
	gapNoEnglishCert     = "No English proficiency recorded (IELTS/TOEFL or CEFR level needed)"
	gapLowLanguageLevel  = "Language proficiency below the level most programmes require"
	gapNoFundsRecorded   = "No budget/funds information recorded"
	gapInsufficientFunds = "Recorded funds are below the visa requirement"
)

// documentActions lists the application documents the engine checks for and
// the action recommended when one is missing.
var documentActions = []struct {
	docType models.StudentDocumentType
	action  string
}{
	{models.DocumentTypeTranscript, "Upload academic transcripts"},
	{models.DocumentTypeDegree, "Upload your degree certificate"},
	{models.DocumentTypeLanguageCert, "Upload a language certificate"},
	{models.DocumentTypeCV, "Prepare and upload a CV/Resume"},
	{models.DocumentTypeSOP, "Prepare and upload a Statement of Purpose (SOP)"},
}

// AssessmentService computes rule-based feasibility verdicts. Scoring is
// fully deterministic; the optional AI explanation is generated afterwards
// and never feeds back into the numbers.
type AssessmentService struct {
	gateway ChatCompleter
	config  *config.AssessmentConfig
	logger  *zap.Logger
}

func NewAssessmentService(gateway ChatCompleter, cfg *config.AssessmentConfig, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{
		gateway: gateway,
		config:  cfg,
		logger:  logger,
	}
}

// Assess evaluates a profile against the immigration rule selected for it.
// Identical inputs always produce identical feasibility and score details.
func (s *AssessmentService) Assess(profile *models.StudentProfile, docs []*models.StudentDocument, rule *models.ImmigrationRule) *models.Assessment {
	assessment := &models.Assessment{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		CreatedAt: time.Now(),
		KeyGaps:   []string{},
	}

	academic := s.scoreAcademic(profile, assessment)
	language := s.scoreLanguage(profile, assessment)
	financial := s.scoreFinancial(profile, rule, assessment)
	documents, docActions := s.scoreDocuments(profile, docs)

	weights := s.config
	totalWeight := weights.AcademicWeight + weights.LanguageWeight + weights.FinancialWeight + weights.DocumentsWeight

	components := map[string]float64{
		dimAcademic:  round1(academic * weights.AcademicWeight),
		dimLanguage:  round1(language * weights.LanguageWeight),
		dimFinancial: round1(financial * weights.FinancialWeight),
		dimDocuments: round1(documents * weights.DocumentsWeight),
	}

	var total float64
	for _, pts := range components {
		total += pts
	}
	percentage := round1(total / totalWeight * 100)

	assessment.ScoreDetails = models.ScoreDetails{
		Percentage: percentage,
		Components: components,
	}

	switch {
	case percentage >= s.config.HighThreshold:
		assessment.OverallFeasibility = models.FeasibilityHigh
	case percentage >= s.config.MediumThreshold:
		assessment.OverallFeasibility = models.FeasibilityMedium
	default:
		assessment.OverallFeasibility = models.FeasibilityLow
	}

	// Actions derive from the gaps via the lookup table, then document
	// completeness items
	for _, gap := range assessment.KeyGaps {
		if action, ok := gapActions[gap]; ok {
			assessment.RecommendedActions = append(assessment.RecommendedActions, action)
		}
	}
	assessment.RecommendedActions = append(assessment.RecommendedActions, docActions...)
	if len(assessment.RecommendedActions) == 0 {
		assessment.RecommendedActions = []string{
			"Research universities and programmes",
			"Check application deadlines",
		}
	}

	return assessment
}

// VisaTypeForProfile selects the visa category for the immigration rule
// lookup. Studienkolleg preparation falls under the study applicant visa;
// degree programmes under the student visa.
func VisaTypeForProfile(profile *models.StudentProfile) string {
	if strings.Contains(strings.ToLower(profile.DesiredStudyLevel), "studienkolleg") {
		return "applicant"
	}
	return "student"
}

// Explain attaches a natural-language gloss to a finished assessment. It
// runs strictly after the deterministic verdict and only fills
// AIExplanation; any provider failure leaves the assessment unchanged.
func (s *AssessmentService) Explain(ctx context.Context, assessment *models.Assessment, profile *models.StudentProfile) {
	if s.gateway == nil {
		return
	}

	prompt := fmt.Sprintf(`A student's study-abroad feasibility was scored at %.1f%% (%s feasibility).
Profile: nationality %s, current education %s, desired %s in %s.
Key gaps: %s
Recommended actions: %s

Write a short, encouraging explanation of this result for the student (3-5 sentences). Do not change or question the score. End with: %q`,
		assessment.ScoreDetails.Percentage,
		assessment.OverallFeasibility,
		orUnspecified(profile.Nationality),
		orUnspecified(profile.HighestEducationLevel),
		orUnspecified(profile.DesiredStudyLevel),
		orUnspecified(profile.DesiredField),
		strings.Join(assessment.KeyGaps, "; "),
		strings.Join(assessment.RecommendedActions, "; "),
		AssessmentDisclaimer,
	)

	resp, err := s.gateway.Complete(ctx, []ChatMessage{{Role: RoleUser, Content: prompt}}, 0.7, 400)
	if err != nil {
		s.logger.Warn("Assessment explanation unavailable", zap.Error(err))
		return
	}

	assessment.AIExplanation = sanitizeUTF8(resp.Content)
}

func (s *AssessmentService) scoreAcademic(profile *models.StudentProfile, a *models.Assessment) float64 {
	current := strings.ToLower(profile.HighestEducationLevel)
	desired := strings.ToLower(profile.DesiredStudyLevel)

	match := func(levels ...string) bool {
		for _, l := range levels {
			if strings.Contains(current, l) {
				return true
			}
		}
		return false
	}

	var score float64
	switch {
	case strings.Contains(desired, "bachelor"):
		if match("high school", "secondary") {
			score = 1
		} else if match("bachelor") {
			score = 0.5 // already holds the degree level
		}
	case strings.Contains(desired, "master"):
		if match("bachelor", "undergraduate") {
			score = 1
		} else if match("master") {
			score = 0.5
		}
	case strings.Contains(desired, "phd"), strings.Contains(desired, "doctor"):
		if match("master", "graduate") {
			score = 1
		}
	case strings.Contains(desired, "studienkolleg"):
		if match("high school", "secondary") {
			score = 1
		}
	}

	if score < gapThreshold {
		a.KeyGaps = append(a.KeyGaps, gapAcademicMismatch)
	}
	return score
}

func (s *AssessmentService) scoreLanguage(profile *models.StudentProfile, a *models.Assessment) float64 {
	english := strings.ToLower(profile.EnglishLevel)
	german := strings.ToLower(profile.GermanLevel)

	score := languageLevelScore(english)
	if g := languageLevelScore(german); g > score {
		score = g
	}

	switch {
	case english == "" && german == "":
		a.KeyGaps = append(a.KeyGaps, gapNoEnglishCert)
	case score < gapThreshold:
		a.KeyGaps = append(a.KeyGaps, gapLowLanguageLevel)
	}
	return score
}

// languageLevelScore maps a recorded proficiency (CEFR level or test name
// with score) onto [0,1].
func languageLevelScore(level string) float64 {
	if level == "" {
		return 0
	}
	switch {
	case strings.Contains(level, "c2"), strings.Contains(level, "c1"),
		strings.Contains(level, "testdaf"), strings.Contains(level, "dsh"):
		return 1
	case strings.Contains(level, "b2"):
		return 0.85
	case strings.Contains(level, "ielts"), strings.Contains(level, "toefl"):
		return 0.85
	case strings.Contains(level, "b1"):
		return 0.4
	default:
		return 0.2
	}
}

func (s *AssessmentService) scoreFinancial(profile *models.StudentProfile, rule *models.ImmigrationRule, a *models.Assessment) float64 {
	minFunds := float64(defaultMinFundsYearEUR)
	if rule != nil && rule.MinFundsYearEUR > 0 {
		minFunds = rule.MinFundsYearEUR
	}

	if profile.BudgetFundsEUR == nil {
		a.KeyGaps = append(a.KeyGaps, gapNoFundsRecorded)
		return 0
	}

	funds := *profile.BudgetFundsEUR
	switch {
	case funds >= minFunds:
		return 1
	case funds >= 0.7*minFunds:
		a.KeyGaps = append(a.KeyGaps, gapInsufficientFunds)
		return 0.5
	default:
		a.KeyGaps = append(a.KeyGaps, gapInsufficientFunds)
		return 0.2
	}
}

// scoreDocuments checks documentation completeness. Missing documents yield
// recommended actions rather than key gaps: they are to-dos on the student's
// side, not structural obstacles.
func (s *AssessmentService) scoreDocuments(profile *models.StudentProfile, docs []*models.StudentDocument) (float64, []string) {
	have := make(map[models.StudentDocumentType]bool, len(docs))
	for _, doc := range docs {
		have[doc.Type] = true
	}

	bachelorEntry := strings.Contains(strings.ToLower(profile.DesiredStudyLevel), "bachelor")

	var required, present int
	var actions []string
	for _, item := range documentActions {
		if item.docType == models.DocumentTypeDegree && bachelorEntry {
			continue // school leavers have no degree certificate yet
		}
		required++
		if have[item.docType] {
			present++
		} else {
			actions = append(actions, item.action)
		}
	}

	if required == 0 {
		return 1, nil
	}
	return float64(present) / float64(required), actions
}

func orUnspecified(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
