package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"uni-counselor/internal/models"
	"uni-counselor/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionBusy signals that a turn is already in flight on the session;
// the caller should retry after it completes.
var ErrSessionBusy = errors.New("session has a turn in progress")

const outageNotice = "I'm sorry - I can't reach the counseling service right now. Your message has been saved, please try again in a few minutes."

type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.CounselorSession, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error)
}

type PlanStore interface {
	ListSteps(ctx context.Context, profileID uuid.UUID) ([]models.ActionPlanStep, error)
	FindStepByTitle(ctx context.Context, profileID uuid.UUID, title string) (*models.ActionPlanStep, error)
	AddStep(ctx context.Context, step *models.ActionPlanStep) error
	UpdateStepStatus(ctx context.Context, stepID uuid.UUID, status models.StepStatus) error
}

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudentProfile, error)
	Update(ctx context.Context, profile *models.StudentProfile) error
}

type AssessmentStore interface {
	Latest(ctx context.Context, profileID uuid.UUID) (*models.Assessment, error)
}

type CatalogStore interface {
	ListProgrammes(ctx context.Context, filter models.ProgrammeFilter, limit int) ([]*models.Programme, error)
	GetProgramme(ctx context.Context, id uuid.UUID) (*models.Programme, error)
	GetUniversity(ctx context.Context, id uuid.UUID) (*models.University, error)
}

// Retriever is the embedding-index capability the orchestrator needs.
// *EmbeddingIndex satisfies it.
type Retriever interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Search(queryVec []float32, topK int, filter *SearchFilter) []SearchHit
}

// CounselorService coordinates one conversation turn: intent extraction,
// retrieval, grounded generation, plan-directive application and transcript
// persistence.
type CounselorService struct {
	sessions    SessionStore
	plans       PlanStore
	profiles    ProfileStore
	assessments AssessmentStore
	catalog     CatalogStore
	retriever   Retriever
	intent      IntentExtractor
	gateway     ChatCompleter
	config      *config.RetrievalConfig
	logger      *zap.Logger

	locks sessionLocks
}

func NewCounselorService(
	sessions SessionStore,
	plans PlanStore,
	profiles ProfileStore,
	assessments AssessmentStore,
	catalog CatalogStore,
	retriever Retriever,
	intent IntentExtractor,
	gateway ChatCompleter,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *CounselorService {
	return &CounselorService{
		sessions:    sessions,
		plans:       plans,
		profiles:    profiles,
		assessments: assessments,
		catalog:     catalog,
		retriever:   retriever,
		intent:      intent,
		gateway:     gateway,
		config:      cfg,
		logger:      logger,
		locks:       sessionLocks{busy: make(map[uuid.UUID]struct{})},
	}
}

// HandleMessage runs one counseling turn end to end. At most one turn per
// session is in flight; a concurrent caller gets ErrSessionBusy. The user
// message is persisted before anything can fail, so the transcript always
// records the attempt, and a total provider outage still produces a
// persisted assistant notice instead of a half-finished turn.
func (s *CounselorService) HandleMessage(ctx context.Context, sessionID uuid.UUID, userText string) (*models.Message, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !s.locks.acquire(sessionID) {
		return nil, ErrSessionBusy
	}
	defer s.locks.release(sessionID)

	userMsg := &models.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Sender:    models.SenderUser,
		Text:      sanitizeUTF8(userText),
		CreatedAt: time.Now(),
	}
	if err := s.sessions.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	history, err := s.sessions.ListMessages(ctx, sessionID, s.config.HistoryWindow)
	if err != nil {
		s.logger.Warn("Failed to load conversation history", zap.Error(err))
	}

	profile, err := s.profiles.GetByID(ctx, session.OwnerProfileID)
	if err != nil {
		s.logger.Warn("Failed to load profile", zap.Error(err))
	}
	if profile != nil {
		s.applyProfileUpdates(ctx, profile, userText, history)
	}

	intent := s.intent.ExtractIntent(ctx, userText, history)

	docs, sources := s.retrieve(ctx, intent)

	assessment, err := s.assessments.Latest(ctx, session.OwnerProfileID)
	if err != nil {
		s.logger.Warn("Failed to load latest assessment", zap.Error(err))
	}
	steps, err := s.plans.ListSteps(ctx, session.OwnerProfileID)
	if err != nil {
		s.logger.Warn("Failed to load action plan", zap.Error(err))
	}

	messages := s.buildPrompt(profile, assessment, steps, docs, history, userText)

	resp, err := s.gateway.Complete(ctx, messages, 0.7, 1000)
	if err != nil {
		if errors.Is(err, ErrNoProviderConfigured) {
			return nil, err
		}
		s.logger.Error("Turn generation failed", zap.Error(err))
		return s.persistAssistantMessage(ctx, sessionID, outageNotice, nil, false)
	}

	planUpdated := false

	directives, replyText, parseErr := ParsePlanDirectives(resp.Content)
	if parseErr != nil {
		// Malformed blocks are dropped, the reply still reaches the user
		s.logger.Warn("Ignoring malformed plan directive block", zap.Error(parseErr))
	} else if len(directives) > 0 {
		planUpdated = s.applyDirectives(ctx, session.OwnerProfileID, directives)
	}

	return s.persistAssistantMessage(ctx, sessionID, replyText, sources, planUpdated)
}

func (s *CounselorService) persistAssistantMessage(ctx context.Context, sessionID uuid.UUID, text string, sources []models.Source, planUpdated bool) (*models.Message, error) {
	msg := &models.Message{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Sender:      models.SenderAssistant,
		Text:        sanitizeUTF8(text),
		Sources:     sources,
		PlanUpdates: planUpdated,
		CreatedAt:   time.Now(),
	}
	if err := s.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	return msg, nil
}

// retrieve gathers grounding documents: a structured catalog query built
// from the planner intent, plus nearest neighbors for the raw query vector.
// The returned sources cover exactly the documents placed into the prompt.
func (s *CounselorService) retrieve(ctx context.Context, intent SearchIntent) ([]RetrievedDoc, []models.Source) {
	topK := s.config.TopK
	seen := make(map[uuid.UUID]bool)
	var docs []RetrievedDoc
	var sources []models.Source

	add := func(doc RetrievedDoc, id uuid.UUID) {
		if seen[id] {
			return
		}
		seen[id] = true
		docs = append(docs, doc)
		if doc.URL != "" {
			sources = append(sources, models.Source{Title: doc.Title, URL: doc.URL})
		}
	}

	if !intent.Empty() {
		filter := models.ProgrammeFilter{
			DegreeType: intent.DegreeType,
			Field:      intent.Field,
			City:       intent.City,
			Language:   intent.Language,
			MaxTuition: intent.BudgetMax,
		}
		programmes, err := s.catalog.ListProgrammes(ctx, filter, topK)
		if err != nil {
			s.logger.Warn("Structured programme query failed", zap.Error(err))
		}
		for _, p := range programmes {
			add(programmeDoc(p), p.ID)
		}
	}

	queryVec, err := s.retriever.EmbedText(ctx, intent.RawQuery)
	if err != nil {
		// Retrieval degrades to the structured results only
		s.logger.Warn("Query embedding unavailable", zap.Error(err))
		return docs, sources
	}

	for _, hit := range s.retriever.Search(queryVec, topK, nil) {
		switch hit.Record.SourceType {
		case models.SourceTypeProgramme:
			p, err := s.catalog.GetProgramme(ctx, hit.Record.SourceID)
			if err != nil || p == nil {
				continue
			}
			// Honor the planner's city filter on the semantic path too
			if intent.City != "" && !strings.EqualFold(p.City, intent.City) {
				continue
			}
			add(programmeDoc(p), p.ID)
		case models.SourceTypeUniversity:
			u, err := s.catalog.GetUniversity(ctx, hit.Record.SourceID)
			if err != nil || u == nil {
				continue
			}
			if intent.City != "" && !strings.EqualFold(u.City, intent.City) {
				continue
			}
			add(universityDoc(u), u.ID)
		}
	}

	return docs, sources
}

func programmeDoc(p *models.Programme) RetrievedDoc {
	tuition := "Free/Not specified"
	if p.TuitionFeeEURPerSemester != nil {
		tuition = fmt.Sprintf("%.0f EUR/semester", *p.TuitionFeeEURPerSemester)
	}
	duration := "Not specified"
	if p.DurationSemesters != nil {
		duration = fmt.Sprintf("%d semesters", *p.DurationSemesters)
	}
	deadline := "Not specified"
	if p.ApplicationDeadline != nil {
		deadline = p.ApplicationDeadline.Format("2006-01-02")
	}

	excerpt := fmt.Sprintf(`- University: %s
- Degree: %s
- City: %s
- Language: %s
- Tuition: %s
- Duration: %s
- Application Deadline: %s`,
		orUnspecified(p.UniversityName),
		orUnspecified(p.DegreeType),
		orUnspecified(p.City),
		orUnspecified(strings.Join(p.Languages, ", ")),
		tuition,
		duration,
		deadline,
	)

	return RetrievedDoc{
		Title:   fmt.Sprintf("Programme: %s - %s", p.Title, p.UniversityName),
		Excerpt: excerpt,
		URL:     p.SourceURL,
	}
}

func universityDoc(u *models.University) RetrievedDoc {
	url := u.SourceURL
	if url == "" && len(u.WebPages) > 0 {
		url = u.WebPages[0]
	}
	return RetrievedDoc{
		Title:   fmt.Sprintf("University: %s", u.Name),
		Excerpt: fmt.Sprintf("- City: %s\n- %s", orUnspecified(u.City), u.Description),
		URL:     url,
	}
}

func (s *CounselorService) buildPrompt(
	profile *models.StudentProfile,
	assessment *models.Assessment,
	steps []models.ActionPlanStep,
	docs []RetrievedDoc,
	history []*models.Message,
	userText string,
) []ChatMessage {
	var contextParts []string
	for _, part := range []string{
		formatProfileContext(profile),
		formatDocumentContext(docs),
		formatAssessmentContext(assessment),
		formatPlanContext(steps),
	} {
		if part != "" {
			contextParts = append(contextParts, part)
		}
	}

	fullContext := "No additional context available."
	if len(contextParts) > 0 {
		fullContext = strings.Join(contextParts, "\n")
	}

	messages := []ChatMessage{{Role: RoleSystem, Content: counselorSystemPrompt}}

	// Prior turns, excluding the user message persisted for this turn
	if len(history) > 1 {
		for _, msg := range history[:len(history)-1] {
			role := RoleUser
			if msg.Sender == models.SenderAssistant {
				role = RoleAssistant
			}
			messages = append(messages, ChatMessage{Role: role, Content: truncate(msg.Text, 300)})
		}
	}

	messages = append(messages, ChatMessage{
		Role:    RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nStudent's question: %s", fullContext, userText),
	})

	return messages
}

// applyDirectives mutates the profile-owned action plan. Additions are
// idempotent by title; status updates only move forward, a completed step
// never regresses through an automated directive.
func (s *CounselorService) applyDirectives(ctx context.Context, profileID uuid.UUID, directives []PlanDirective) bool {
	applied := false

	for _, d := range directives {
		existing, err := s.plans.FindStepByTitle(ctx, profileID, d.Title)
		if err != nil {
			s.logger.Warn("Plan step lookup failed", zap.String("title", d.Title), zap.Error(err))
			continue
		}

		switch d.Action {
		case DirectiveAdd:
			if existing != nil {
				continue
			}
			status := d.Status
			if status == "" {
				status = models.StepStatusPending
			}
			step := &models.ActionPlanStep{
				ID:        uuid.New(),
				ProfileID: profileID,
				Title:     strings.TrimSpace(d.Title),
				Status:    status,
				DueDate:   d.ParsedDueDate(),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			if err := s.plans.AddStep(ctx, step); err != nil {
				s.logger.Warn("Failed to add plan step", zap.String("title", d.Title), zap.Error(err))
				continue
			}
			applied = true

		case DirectiveUpdate:
			if existing == nil {
				s.logger.Warn("Plan directive refers to unknown step", zap.String("title", d.Title))
				continue
			}
			if d.Status.Rank() <= existing.Status.Rank() {
				s.logger.Debug("Refusing plan step status regression",
					zap.String("title", d.Title),
					zap.String("from", string(existing.Status)),
					zap.String("to", string(d.Status)),
				)
				continue
			}
			if err := s.plans.UpdateStepStatus(ctx, existing.ID, d.Status); err != nil {
				s.logger.Warn("Failed to update plan step", zap.String("title", d.Title), zap.Error(err))
				continue
			}
			applied = true
		}
	}

	return applied
}

// applyProfileUpdates extracts profile fields the student mentioned in
// passing and merges them into the stored profile. Strictly best-effort:
// every failure is silent towards the turn.
func (s *CounselorService) applyProfileUpdates(ctx context.Context, profile *models.StudentProfile, userText string, history []*models.Message) {
	var historyContext strings.Builder
	for _, msg := range lastMessages(history, 3) {
		fmt.Fprintf(&historyContext, "%s: %s\n", msg.Sender, truncate(msg.Text, 150))
	}

	prompt := fmt.Sprintf(`Extract student profile information from this message. Return ONLY a JSON object with these fields (null if not mentioned):
- nationality: country name
- highest_education_level: "High School", "Bachelor", "Master", "PhD"
- highest_education_field: field of study
- desired_study_level: "Bachelor", "Master", "PhD", "Studienkolleg"
- desired_field: field of study they want
- english_level: IELTS/TOEFL score or CEFR level (e.g. "IELTS 7.0" or "C1")
- german_level: German proficiency (e.g. "B2" or "TestDaF")
- gpa_or_marks: GPA or percentage
- preferred_cities: array of city names
- budget_funds: approximate funds available in EUR per year

Message: %s

Recent conversation:
%s
Return JSON only:`, userText, historyContext.String())

	resp, err := s.gateway.Complete(ctx, []ChatMessage{
		{Role: RoleSystem, Content: intentSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}, 0.3, 300)
	if err != nil {
		return
	}

	var updates struct {
		Nationality           string   `json:"nationality"`
		HighestEducationLevel string   `json:"highest_education_level"`
		HighestEducationField string   `json:"highest_education_field"`
		DesiredStudyLevel     string   `json:"desired_study_level"`
		DesiredField          string   `json:"desired_field"`
		EnglishLevel          string   `json:"english_level"`
		GermanLevel           string   `json:"german_level"`
		GPAOrMarks            string   `json:"gpa_or_marks"`
		PreferredCities       []string `json:"preferred_cities"`
		BudgetFunds           *float64 `json:"budget_funds"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content)), &updates); err != nil {
		return
	}

	changed := false
	merge := func(dst *string, src string) {
		if src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}
	merge(&profile.Nationality, updates.Nationality)
	merge(&profile.HighestEducationLevel, updates.HighestEducationLevel)
	merge(&profile.HighestEducationField, updates.HighestEducationField)
	merge(&profile.DesiredStudyLevel, updates.DesiredStudyLevel)
	merge(&profile.DesiredField, updates.DesiredField)
	merge(&profile.EnglishLevel, updates.EnglishLevel)
	merge(&profile.GermanLevel, updates.GermanLevel)
	merge(&profile.GPAOrMarks, updates.GPAOrMarks)
	if len(updates.PreferredCities) > 0 {
		profile.PreferredCities = updates.PreferredCities
		changed = true
	}
	if updates.BudgetFunds != nil {
		profile.BudgetFundsEUR = updates.BudgetFunds
		changed = true
	}

	if !changed {
		return
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		s.logger.Warn("Failed to persist profile updates", zap.Error(err))
	}
}

// truncate cuts s to at most n bytes without splitting a rune, so the
// result stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// sessionLocks grants at most one in-flight turn per session without
// blocking the loser.
type sessionLocks struct {
	mu   sync.Mutex
	busy map[uuid.UUID]struct{}
}

func (l *sessionLocks) acquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, inFlight := l.busy[id]; inFlight {
		return false
	}
	l.busy[id] = struct{}{}
	return true
}

func (l *sessionLocks) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.busy, id)
}
