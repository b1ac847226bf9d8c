package service

import (
	"context"
	"errors"
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/models"
	"uni-counselor/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrUnknownDocumentType = errors.New("unknown document type")

type ProfileService struct {
	profileRepo *repository.ProfileRepository
	logger      *zap.Logger
}

func NewProfileService(profileRepo *repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// EnsureProfile returns the user's profile, creating an empty one on first
// touch. Every profile-scoped endpoint goes through here, so a fresh account
// always has a profile to hang sessions, plans, and assessments on.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID uuid.UUID) (*models.StudentProfile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	now := time.Now()
	profile = &models.StudentProfile{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("Created empty student profile", zap.String("user_id", userID.String()))
	return profile, nil
}

// UpdateProfile applies a partial update; nil fields are left untouched.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *dto.UpdateProfileRequest) (*models.StudentProfile, error) {
	profile, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Nationality != nil {
		profile.Nationality = *req.Nationality
	}
	if req.HighestEducationLevel != nil {
		profile.HighestEducationLevel = *req.HighestEducationLevel
	}
	if req.HighestEducationField != nil {
		profile.HighestEducationField = *req.HighestEducationField
	}
	if req.DesiredStudyLevel != nil {
		profile.DesiredStudyLevel = *req.DesiredStudyLevel
	}
	if req.DesiredField != nil {
		profile.DesiredField = *req.DesiredField
	}
	if req.EnglishLevel != nil {
		profile.EnglishLevel = *req.EnglishLevel
	}
	if req.GermanLevel != nil {
		profile.GermanLevel = *req.GermanLevel
	}
	if req.GPAOrMarks != nil {
		profile.GPAOrMarks = *req.GPAOrMarks
	}
	if req.PreferredCities != nil {
		profile.PreferredCities = *req.PreferredCities
	}
	if req.BudgetFundsEUR != nil {
		profile.BudgetFundsEUR = req.BudgetFundsEUR
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

func (s *ProfileService) AddDocument(ctx context.Context, userID uuid.UUID, docType, fileName string) (*models.StudentDocument, error) {
	parsed, ok := models.ParseDocumentType(docType)
	if !ok {
		return nil, ErrUnknownDocumentType
	}

	doc := &models.StudentDocument{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       parsed,
		FileName:   fileName,
		UploadedAt: time.Now(),
	}
	if err := s.profileRepo.AddDocument(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (s *ProfileService) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.StudentDocument, error) {
	return s.profileRepo.ListDocuments(ctx, userID)
}
