package handlers

import (
	"errors"
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/models"
	"uni-counselor/internal/repository"
	"uni-counselor/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessionRepo    *repository.SessionRepository
	profileService *service.ProfileService
	counselor      *service.CounselorService
	logger         *zap.Logger
}

func NewSessionHandler(
	sessionRepo *repository.SessionRepository,
	profileService *service.ProfileService,
	counselor *service.CounselorService,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessionRepo:    sessionRepo,
		profileService: profileService,
		counselor:      counselor,
		logger:         logger,
	}
}

// CreateSession godoc
// @Summary Start a counseling session
// @Tags sessions
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.CreateSessionRequest true "Session settings"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	title := req.Title
	if title == "" {
		title = "New counseling session"
	}

	session := &models.CounselorSession{
		ID:             uuid.New(),
		OwnerProfileID: profile.ID,
		Title:          title,
		Purpose:        req.Purpose,
		CreatedAt:      time.Now(),
	}
	if err := h.sessionRepo.CreateSession(c.Context(), session); err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(sessionToResponse(session))
}

// ListSessions godoc
// @Summary List the caller's counseling sessions
// @Tags sessions
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.SessionResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
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
			"error": "Failed to list sessions",
		})
	}

	sessions, err := h.sessionRepo.ListSessions(c.Context(), profile.ID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionToResponse(s))
	}
	return c.JSON(resp)
}

// RenameSession godoc
// @Summary Rename a counseling session
// @Tags sessions
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Session ID"
// @Param request body dto.UpdateSessionRequest true "New title"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id} [patch]
func (h *SessionHandler) RenameSession(c *fiber.Ctx) error {
	session, errResp := h.ownedSession(c)
	if session == nil {
		return errResp
	}

	var req dto.UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}

	if err := h.sessionRepo.UpdateTitle(c.Context(), session.ID, req.Title); err != nil {
		h.logger.Error("Failed to rename session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rename session",
		})
	}

	session.Title = req.Title
	return c.JSON(sessionToResponse(session))
}

// ListMessages godoc
// @Summary Get the session transcript
// @Tags sessions
// @Produce json
// @Security Bearer
// @Param id path string true "Session ID"
// @Success 200 {array} dto.MessageResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/messages [get]
func (h *SessionHandler) ListMessages(c *fiber.Ctx) error {
	session, errResp := h.ownedSession(c)
	if session == nil {
		return errResp
	}

	messages, err := h.sessionRepo.ListMessages(c.Context(), session.ID, 0)
	if err != nil {
		h.logger.Error("Failed to list messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list messages",
		})
	}

	resp := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, messageToResponse(msg))
	}
	return c.JSON(resp)
}

// PostMessage godoc
// @Summary Send a message to the counselor
// @Description Run one counseling turn. At most one turn per session runs at a time.
// @Tags sessions
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Session ID"
// @Param request body dto.PostMessageRequest true "User message"
// @Success 200 {object} dto.MessageResponse
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/sessions/{id}/messages [post]
func (h *SessionHandler) PostMessage(c *fiber.Ctx) error {
	session, errResp := h.ownedSession(c)
	if session == nil {
		return errResp
	}

	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	reply, err := h.counselor.HandleMessage(c.Context(), session.ID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionBusy):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A turn is already in progress for this session",
			})
		case errors.Is(err, service.ErrNoProviderConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "No AI provider is configured",
			})
		default:
			h.logger.Error("Counseling turn failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Counseling turn failed",
			})
		}
	}

	return c.JSON(messageToResponse(reply))
}

// ownedSession loads the session from the path and enforces that it belongs
// to the caller's profile. On failure it returns (nil, responseError).
func (h *SessionHandler) ownedSession(c *fiber.Ctx) (*models.CounselorSession, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid session id",
		})
	}

	profile, err := h.profileService.EnsureProfile(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve profile", zap.Error(err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load session",
		})
	}

	session, err := h.sessionRepo.GetSession(c.Context(), sessionID)
	if err != nil || session.OwnerProfileID != profile.ID {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return session, nil
}

func sessionToResponse(s *models.CounselorSession) dto.SessionResponse {
	return dto.SessionResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		Purpose:   s.Purpose,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func messageToResponse(m *models.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:          m.ID.String(),
		Seq:         m.Seq,
		Sender:      string(m.Sender),
		Text:        m.Text,
		Sources:     m.Sources,
		PlanUpdates: m.PlanUpdates,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}
