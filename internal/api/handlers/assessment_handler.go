package handlers

import (
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/models"
	"uni-counselor/internal/repository"
	"uni-counselor/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	assessmentRepo    *repository.AssessmentRepository
	immigrationRepo   *repository.ImmigrationRepository
	profileService    *service.ProfileService
	logger            *zap.Logger
}

func NewAssessmentHandler(
	assessmentService *service.AssessmentService,
	assessmentRepo *repository.AssessmentRepository,
	immigrationRepo *repository.ImmigrationRepository,
	profileService *service.ProfileService,
	logger *zap.Logger,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		assessmentRepo:    assessmentRepo,
		immigrationRepo:   immigrationRepo,
		profileService:    profileService,
		logger:            logger,
	}
}

// RunAssessment godoc
// @Summary Run a feasibility assessment
// @Description Score the caller's profile deterministically. Set explain=true for an additional AI-written explanation.
// @Tags assessments
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.RunAssessmentRequest true "Assessment options"
// @Success 201 {object} dto.AssessmentResponse
// @Router /api/v1/assessments [post]
func (h *AssessmentHandler) RunAssessment(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.RunAssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		req = dto.RunAssessmentRequest{}
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assessment failed",
		})
	}

	docs, err := h.profileService.ListDocuments(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assessment failed",
		})
	}

	rule, err := h.immigrationRepo.GetRule(c.Context(), "DE", service.VisaTypeForProfile(profile))
	if err != nil {
		h.logger.Warn("Immigration rule lookup failed, using defaults", zap.Error(err))
	}

	assessment := h.assessmentService.Assess(profile, docs, rule)
	if req.Explain {
		h.assessmentService.Explain(c.Context(), assessment, profile)
	}

	if err := h.assessmentRepo.Create(c.Context(), assessment); err != nil {
		h.logger.Error("Failed to persist assessment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Assessment failed",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(assessmentToResponse(assessment))
}

// LatestAssessment godoc
// @Summary Get the most recent assessment
// @Tags assessments
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.AssessmentResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/assessments/latest [get]
func (h *AssessmentHandler) LatestAssessment(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessment",
		})
	}

	assessment, err := h.assessmentRepo.Latest(c.Context(), profile.ID)
	if err != nil {
		h.logger.Error("Failed to load assessment", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessment",
		})
	}
	if assessment == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No assessment yet",
		})
	}

	return c.JSON(assessmentToResponse(assessment))
}

// AssessmentHistory godoc
// @Summary List past assessments, newest first
// @Tags assessments
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.AssessmentResponse
// @Router /api/v1/assessments [get]
func (h *AssessmentHandler) AssessmentHistory(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessments",
		})
	}

	assessments, err := h.assessmentRepo.History(c.Context(), profile.ID, 20)
	if err != nil {
		h.logger.Error("Failed to load assessments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load assessments",
		})
	}

	resp := make([]dto.AssessmentResponse, 0, len(assessments))
	for _, a := range assessments {
		resp = append(resp, assessmentToResponse(a))
	}
	return c.JSON(resp)
}

func assessmentToResponse(a *models.Assessment) dto.AssessmentResponse {
	return dto.AssessmentResponse{
		ID:                 a.ID.String(),
		OverallFeasibility: string(a.OverallFeasibility),
		Percentage:         a.ScoreDetails.Percentage,
		Components:         a.ScoreDetails.Components,
		KeyGaps:            a.KeyGaps,
		RecommendedActions: a.RecommendedActions,
		AIExplanation:      a.AIExplanation,
		Disclaimer:         service.AssessmentDisclaimer,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
}
