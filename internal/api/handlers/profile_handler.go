package handlers

import (
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/models"
	"uni-counselor/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	logger         *zap.Logger
}

func NewProfileHandler(profileService *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger,
	}
}

// GetProfile godoc
// @Summary Get the student profile
// @Description Get the caller's student profile, creating an empty one on first access
// @Tags profile
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.ProfileResponse
// @Failure 401 {object} map[string]string
// @Router /api/v1/profile [get]
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load profile",
		})
	}

	return c.JSON(profileToResponse(profile))
}

// UpdateProfile godoc
// @Summary Update the student profile
// @Description Partially update the caller's student profile; omitted fields are left unchanged
// @Tags profile
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.UpdateProfileRequest true "Profile fields to update"
// @Success 200 {object} dto.ProfileResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/profile [patch]
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.profileService.UpdateProfile(c.Context(), userID, &req)
	if err != nil {
		h.logger.Error("Failed to update profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(profileToResponse(profile))
}

// AddDocument godoc
// @Summary Record an application document
// @Description Record that the student has an application document (transcript, degree certificate, language certificate, CV, SOP)
// @Tags profile
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.AddDocumentRequest true "Document record"
// @Success 201 {object} dto.StudentDocumentResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/profile/documents [post]
func (h *ProfileHandler) AddDocument(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.AddDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.FileName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_name is required",
		})
	}

	doc, err := h.profileService.AddDocument(c.Context(), userID, req.Type, req.FileName)
	if err != nil {
		if err == service.ErrUnknownDocumentType {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown document type",
			})
		}
		h.logger.Error("Failed to record document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(documentToResponse(doc))
}

// ListDocuments godoc
// @Summary List recorded application documents
// @Tags profile
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.StudentDocumentResponse
// @Router /api/v1/profile/documents [get]
func (h *ProfileHandler) ListDocuments(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	docs, err := h.profileService.ListDocuments(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	resp := make([]dto.StudentDocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, documentToResponse(doc))
	}
	return c.JSON(resp)
}

func profileToResponse(p *models.StudentProfile) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:                    p.ID.String(),
		Nationality:           p.Nationality,
		HighestEducationLevel: p.HighestEducationLevel,
		HighestEducationField: p.HighestEducationField,
		DesiredStudyLevel:     p.DesiredStudyLevel,
		DesiredField:          p.DesiredField,
		EnglishLevel:          p.EnglishLevel,
		GermanLevel:           p.GermanLevel,
		GPAOrMarks:            p.GPAOrMarks,
		PreferredCities:       p.PreferredCities,
		BudgetFundsEUR:        p.BudgetFundsEUR,
		UpdatedAt:             p.UpdatedAt.Format(time.RFC3339),
	}
}

func documentToResponse(d *models.StudentDocument) dto.StudentDocumentResponse {
	return dto.StudentDocumentResponse{
		ID:         d.ID.String(),
		Type:       string(d.Type),
		FileName:   d.FileName,
		UploadedAt: d.UploadedAt.Format(time.RFC3339),
	}
}

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return uuid.Parse(userIDStr)
}
