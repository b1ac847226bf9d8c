package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"uni-counselor/internal/models"
	"uni-counselor/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memSessionStore struct {
	session  *models.CounselorSession
	messages []*models.Message
	seq      int64
}

func (s *memSessionStore) GetSession(_ context.Context, id uuid.UUID) (*models.CounselorSession, error) {
	if s.session == nil || s.session.ID != id {
		return nil, errors.New("session not found")
	}
	return s.session, nil
}

func (s *memSessionStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.seq++
	msg.Seq = s.seq
	s.messages = append(s.messages, msg)
	return nil
}

func (s *memSessionStore) ListMessages(_ context.Context, _ uuid.UUID, limit int) ([]*models.Message, error) {
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type memPlanStore struct {
	steps []*models.ActionPlanStep
}

func (s *memPlanStore) ListSteps(_ context.Context, _ uuid.UUID) ([]models.ActionPlanStep, error) {
	out := make([]models.ActionPlanStep, 0, len(s.steps))
	for _, step := range s.steps {
		out = append(out, *step)
	}
	return out, nil
}

func (s *memPlanStore) FindStepByTitle(_ context.Context, _ uuid.UUID, title string) (*models.ActionPlanStep, error) {
	for _, step := range s.steps {
		if strings.EqualFold(step.Title, title) {
			copied := *step
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memPlanStore) AddStep(_ context.Context, step *models.ActionPlanStep) error {
	s.steps = append(s.steps, step)
	return nil
}

func (s *memPlanStore) UpdateStepStatus(_ context.Context, stepID uuid.UUID, status models.StepStatus) error {
	for _, step := range s.steps {
		if step.ID == stepID {
			step.Status = status
			return nil
		}
	}
	return errors.New("step not found")
}

type stubProfileStore struct {
	profile *models.StudentProfile
	updates int
}

func (s *stubProfileStore) GetByID(_ context.Context, _ uuid.UUID) (*models.StudentProfile, error) {
	return s.profile, nil
}

func (s *stubProfileStore) Update(_ context.Context, _ *models.StudentProfile) error {
	s.updates++
	return nil
}

type stubAssessmentStore struct{}

func (stubAssessmentStore) Latest(_ context.Context, _ uuid.UUID) (*models.Assessment, error) {
	return nil, nil
}

type stubCatalog struct {
	programmes   []*models.Programme
	universities []*models.University
}

func (s *stubCatalog) ListProgrammes(_ context.Context, filter models.ProgrammeFilter, limit int) ([]*models.Programme, error) {
	var out []*models.Programme
	for _, p := range s.programmes {
		if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubCatalog) GetProgramme(_ context.Context, id uuid.UUID) (*models.Programme, error) {
	for _, p := range s.programmes {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.New("programme not found")
}

func (s *stubCatalog) GetUniversity(_ context.Context, id uuid.UUID) (*models.University, error) {
	for _, u := range s.universities {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("university not found")
}

type stubRetriever struct {
	vec      []float32
	embedErr error
	hits     []SearchHit
}

func (s *stubRetriever) EmbedText(_ context.Context, _ string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return s.vec, nil
}

func (s *stubRetriever) Search(_ []float32, _ int, _ *SearchFilter) []SearchHit {
	return s.hits
}

// intentFunc adapts a plain function to the IntentExtractor interface.
type intentFunc func(ctx context.Context, userText string, history []*models.Message) SearchIntent

func (f intentFunc) ExtractIntent(ctx context.Context, userText string, history []*models.Message) SearchIntent {
	return f(ctx, userText, history)
}

type counselorFixture struct {
	svc      *CounselorService
	sessions *memSessionStore
	plans    *memPlanStore
	profiles *stubProfileStore
	catalog  *stubCatalog
	session  *models.CounselorSession
}

func newCounselorFixture(t *testing.T, gateway ChatCompleter, retriever Retriever, catalog *stubCatalog) *counselorFixture {
	t.Helper()
	return newCounselorFixtureWithIntent(t, gateway, retriever, catalog, NullIntentExtractor{})
}

func newCounselorFixtureWithIntent(t *testing.T, gateway ChatCompleter, retriever Retriever, catalog *stubCatalog, intent IntentExtractor) *counselorFixture {
	t.Helper()

	profile := strongProfile()
	session := &models.CounselorSession{
		ID:             uuid.New(),
		OwnerProfileID: profile.ID,
		Title:          "Planning",
		CreatedAt:      time.Now(),
	}

	sessions := &memSessionStore{session: session}
	plans := &memPlanStore{}
	profiles := &stubProfileStore{profile: profile}
	if catalog == nil {
		catalog = &stubCatalog{}
	}
	if retriever == nil {
		retriever = &stubRetriever{vec: []float32{1, 0}}
	}

	svc := NewCounselorService(
		sessions, plans, profiles, stubAssessmentStore{}, catalog,
		retriever, intent, gateway,
		&config.RetrievalConfig{TopK: 5, HistoryWindow: 6},
		zap.NewNop(),
	)

	return &counselorFixture{
		svc:      svc,
		sessions: sessions,
		plans:    plans,
		profiles: profiles,
		catalog:  catalog,
		session:  session,
	}
}

func TestHandleMessagePersistsUserThenAssistant(t *testing.T) {
	f := newCounselorFixture(t, fixedReply("Here are your options."), nil, nil)

	reply, err := f.svc.HandleMessage(context.Background(), f.session.ID, "What can I study in Munich?")
	require.NoError(t, err)
	assert.Equal(t, models.SenderAssistant, reply.Sender)
	assert.Equal(t, "Here are your options.", reply.Text)

	require.Len(t, f.sessions.messages, 2)
	assert.Equal(t, models.SenderUser, f.sessions.messages[0].Sender)
	assert.Equal(t, models.SenderAssistant, f.sessions.messages[1].Sender)
	assert.Less(t, f.sessions.messages[0].Seq, f.sessions.messages[1].Seq)
}

func TestHandleMessageOutagePersistsNotice(t *testing.T) {
	down := completerFunc(func(context.Context, []ChatMessage, float64, int) (*ProviderResponse, error) {
		return nil, fmt.Errorf("%w: upstream 503", ErrAllProvidersUnavailable)
	})
	f := newCounselorFixture(t, down, nil, nil)

	reply, err := f.svc.HandleMessage(context.Background(), f.session.ID, "hello?")
	require.NoError(t, err)
	assert.Equal(t, outageNotice, reply.Text)
	assert.False(t, reply.PlanUpdates)
	assert.Empty(t, reply.Sources)

	// Both the user message and the notice are in the transcript
	require.Len(t, f.sessions.messages, 2)
	assert.Equal(t, outageNotice, f.sessions.messages[1].Text)
}

func TestHandleMessageNoProviderConfigured(t *testing.T) {
	none := completerFunc(func(context.Context, []ChatMessage, float64, int) (*ProviderResponse, error) {
		return nil, ErrNoProviderConfigured
	})
	f := newCounselorFixture(t, none, nil, nil)

	_, err := f.svc.HandleMessage(context.Background(), f.session.ID, "hello?")
	assert.ErrorIs(t, err, ErrNoProviderConfigured)
	// The user message was already persisted before the failure
	require.Len(t, f.sessions.messages, 1)
	assert.Equal(t, models.SenderUser, f.sessions.messages[0].Sender)
}

func TestHandleMessageSessionBusy(t *testing.T) {
	f := newCounselorFixture(t, fixedReply("ok"), nil, nil)

	require.True(t, f.svc.locks.acquire(f.session.ID))
	defer f.svc.locks.release(f.session.ID)

	_, err := f.svc.HandleMessage(context.Background(), f.session.ID, "am I blocked?")
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Empty(t, f.sessions.messages)
}

func TestHandleMessageAppliesPlanDirectives(t *testing.T) {
	reply := "Let's book the exam.\n```plan\n{\"version\":1,\"steps\":[{\"action\":\"add\",\"title\":\"Book IELTS exam\",\"status\":\"pending\",\"due_date\":\"2026-10-01\"}]}\n```"
	f := newCounselorFixture(t, fixedReply(reply), nil, nil)

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "I'll take IELTS")
	require.NoError(t, err)
	assert.True(t, msg.PlanUpdates)
	assert.Equal(t, "Let's book the exam.", msg.Text)

	require.Len(t, f.plans.steps, 1)
	assert.Equal(t, "Book IELTS exam", f.plans.steps[0].Title)
	assert.Equal(t, models.StepStatusPending, f.plans.steps[0].Status)
	require.NotNil(t, f.plans.steps[0].DueDate)
}

func TestHandleMessageCompletedStepNeverRegresses(t *testing.T) {
	reply := "Noted.\n```plan\n{\"version\":1,\"steps\":[{\"action\":\"update\",\"title\":\"Book IELTS exam\",\"status\":\"in_progress\"}]}\n```"
	f := newCounselorFixture(t, fixedReply(reply), nil, nil)
	f.plans.steps = append(f.plans.steps, &models.ActionPlanStep{
		ID:        uuid.New(),
		ProfileID: f.session.OwnerProfileID,
		Title:     "Book IELTS exam",
		Status:    models.StepStatusCompleted,
	})

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "actually I'm redoing it")
	require.NoError(t, err)
	assert.False(t, msg.PlanUpdates)
	assert.Equal(t, models.StepStatusCompleted, f.plans.steps[0].Status)
}

func TestHandleMessageMalformedDirectiveTolerated(t *testing.T) {
	f := newCounselorFixture(t, fixedReply("The answer.\n```plan\nnot json\n```"), nil, nil)

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "The answer.", msg.Text)
	assert.False(t, msg.PlanUpdates)
	assert.Empty(t, f.plans.steps)
}

func TestHandleMessageSourcesComeFromRetrievedDocs(t *testing.T) {
	prog := &models.Programme{
		ID:             uuid.New(),
		UniversityName: "TUM",
		Title:          "Informatics",
		DegreeType:     "Master",
		City:           "Munich",
		SourceURL:      "https://tum.example/informatics",
	}
	catalog := &stubCatalog{programmes: []*models.Programme{prog}}
	retriever := &stubRetriever{
		vec: []float32{1, 0},
		hits: []SearchHit{{
			Record: &models.EmbeddingRecord{SourceType: models.SourceTypeProgramme, SourceID: prog.ID},
			Score:  0.9,
		}},
	}
	f := newCounselorFixture(t, fixedReply("TUM Informatics fits you well."), retriever, catalog)

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "CS masters?")
	require.NoError(t, err)
	require.Len(t, msg.Sources, 1)
	assert.Equal(t, "https://tum.example/informatics", msg.Sources[0].URL)
	assert.Contains(t, msg.Sources[0].Title, "Informatics")
}

func TestHandleMessageSemanticHitsHonorCityIntent(t *testing.T) {
	berlin := &models.Programme{
		ID:             uuid.New(),
		UniversityName: "TU Berlin",
		Title:          "Computer Science",
		DegreeType:     "Master",
		City:           "Berlin",
		SourceURL:      "https://tub.example/cs",
	}
	munich := &models.Programme{
		ID:             uuid.New(),
		UniversityName: "TUM",
		Title:          "Informatics",
		DegreeType:     "Master",
		City:           "Munich",
		SourceURL:      "https://tum.example/informatics",
	}
	munichUni := &models.University{
		ID:        uuid.New(),
		Name:      "TUM",
		City:      "Munich",
		SourceURL: "https://tum.example",
	}
	catalog := &stubCatalog{
		programmes:   []*models.Programme{berlin, munich},
		universities: []*models.University{munichUni},
	}
	// The nearest neighbors deliberately sit in the wrong city
	retriever := &stubRetriever{
		vec: []float32{1, 0},
		hits: []SearchHit{
			{Record: &models.EmbeddingRecord{SourceType: models.SourceTypeProgramme, SourceID: munich.ID}, Score: 0.95},
			{Record: &models.EmbeddingRecord{SourceType: models.SourceTypeUniversity, SourceID: munichUni.ID}, Score: 0.92},
			{Record: &models.EmbeddingRecord{SourceType: models.SourceTypeProgramme, SourceID: berlin.ID}, Score: 0.9},
		},
	}
	intent := intentFunc(func(_ context.Context, userText string, _ []*models.Message) SearchIntent {
		return SearchIntent{City: "Berlin", RawQuery: userText}
	})
	f := newCounselorFixtureWithIntent(t, fixedReply("TU Berlin is a strong fit."), retriever, catalog, intent)

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "CS masters in Berlin?")
	require.NoError(t, err)

	// Only the Berlin programme survives; the off-city hits are dropped
	require.Len(t, msg.Sources, 1)
	assert.Equal(t, "https://tub.example/cs", msg.Sources[0].URL)
	assert.Contains(t, msg.Sources[0].Title, "TU Berlin")
}

func TestHandleMessageEmbeddingOutageDegrades(t *testing.T) {
	retriever := &stubRetriever{embedErr: fmt.Errorf("%w: down", ErrEmbeddingUnavailable)}
	f := newCounselorFixture(t, fixedReply("I can still help generally."), retriever, nil)

	msg, err := f.svc.HandleMessage(context.Background(), f.session.ID, "anything in Bremen?")
	require.NoError(t, err)
	assert.Empty(t, msg.Sources)
	require.Len(t, f.sessions.messages, 2)
}

func TestHandleMessageUnknownSession(t *testing.T) {
	f := newCounselorFixture(t, fixedReply("ok"), nil, nil)

	_, err := f.svc.HandleMessage(context.Background(), uuid.New(), "hi")
	assert.Error(t, err)
	assert.Empty(t, f.sessions.messages)
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 300))

	// Cutting inside the two-byte umlaut backs up to the previous boundary
	assert.Equal(t, "M", truncate("Münchner", 2))

	got := truncate(strings.Repeat("ü", 200), 301)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 301)
}
