package handlers

import (
	"errors"
	"time"

	"uni-counselor/internal/dto"
	"uni-counselor/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type IndexHandler struct {
	indexService *service.IndexService
	index        service.Retriever
	logger       *zap.Logger
}

func NewIndexHandler(indexService *service.IndexService, index service.Retriever, logger *zap.Logger) *IndexHandler {
	return &IndexHandler{
		indexService: indexService,
		index:        index,
		logger:       logger,
	}
}

// RebuildIndex godoc
// @Summary Rebuild the retrieval index from the catalog
// @Description Re-embed every university and programme. Search stays on the previous index until the rebuild completes.
// @Tags index
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.RebuildIndexResponse
// @Failure 503 {object} map[string]string
// @Router /api/v1/index/rebuild [post]
func (h *IndexHandler) RebuildIndex(c *fiber.Ctx) error {
	start := time.Now()

	indexed, failed, err := h.indexService.RebuildFromCatalog(c.Context())
	if err != nil {
		h.logger.Error("Index rebuild failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Index rebuild failed",
		})
	}

	status := "complete"
	if failed > 0 {
		status = "partial"
	}

	return c.JSON(dto.RebuildIndexResponse{
		Indexed:    indexed,
		Failed:     failed,
		DurationMS: time.Since(start).Milliseconds(),
		Status:     status,
	})
}

// Search godoc
// @Summary Semantic search over universities and programmes
// @Tags index
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.SearchRequest true "Search query"
// @Success 200 {object} dto.SearchResponse
// @Failure 503 {object} map[string]string
// @Router /api/v1/search [post]
func (h *IndexHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}
	topK := req.TopK
	if topK <= 0 || topK > 50 {
		topK = 10
	}

	queryVec, err := h.index.EmbedText(c.Context(), req.Query)
	if err != nil {
		if errors.Is(err, service.ErrEmbeddingUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Embedding provider unavailable",
			})
		}
		h.logger.Error("Search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	hits := h.index.Search(queryVec, topK, nil)
	resp := dto.SearchResponse{Hits: make([]dto.SearchHitResponse, 0, len(hits))}
	for _, hit := range hits {
		resp.Hits = append(resp.Hits, dto.SearchHitResponse{
			SourceType: string(hit.Record.SourceType),
			SourceID:   hit.Record.SourceID.String(),
			Score:      hit.Score,
		})
	}

	return c.JSON(resp)
}
