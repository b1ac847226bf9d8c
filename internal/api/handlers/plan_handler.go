package handlers

import (
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/models"
	"uni-counselor/internal/repository"
	"uni-counselor/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PlanHandler struct {
	planRepo       *repository.PlanRepository
	profileService *service.ProfileService
	logger         *zap.Logger
}

func NewPlanHandler(planRepo *repository.PlanRepository, profileService *service.ProfileService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		planRepo:       planRepo,
		profileService: profileService,
		logger:         logger,
	}
}

// GetPlan godoc
// @Summary Get the action plan
// @Description Get the caller's action plan. The plan belongs to the profile and is shared across sessions.
// @Tags plan
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.PlanResponse
// @Router /api/v1/plan [get]
func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
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
			"error": "Failed to load plan",
		})
	}

	steps, err := h.planRepo.ListSteps(c.Context(), profile.ID)
	if err != nil {
		h.logger.Error("Failed to load plan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load plan",
		})
	}

	resp := dto.PlanResponse{Steps: make([]dto.PlanStepResponse, 0, len(steps))}
	for _, step := range steps {
		resp.Steps = append(resp.Steps, stepToResponse(step))
	}
	return c.JSON(resp)
}

// UpdateStep godoc
// @Summary Set a plan step's status
// @Description Manually set a step's status. Unlike counselor-driven updates, this can move a step backwards.
// @Tags plan
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Step ID"
// @Param request body dto.UpdateStepRequest true "New status"
// @Success 200 {object} dto.PlanStepResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/plan/steps/{id} [patch]
func (h *PlanHandler) UpdateStep(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	stepID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid step id",
		})
	}

	var req dto.UpdateStepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	status := models.StepStatus(req.Status)
	if status.Rank() < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown status",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update step",
		})
	}

	step, err := h.planRepo.GetStep(c.Context(), stepID)
	if err != nil || step.ProfileID != profile.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Step not found",
		})
	}

	if err := h.planRepo.UpdateStepStatus(c.Context(), stepID, status); err != nil {
		h.logger.Error("Failed to update step", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update step",
		})
	}

	step.Status = status
	step.UpdatedAt = time.Now()
	return c.JSON(stepToResponse(*step))
}

func stepToResponse(s models.ActionPlanStep) dto.PlanStepResponse {
	resp := dto.PlanStepResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.DueDate != nil {
		due := s.DueDate.Format("2006-01-02")
		resp.DueDate = &due
	}
	return resp
}
