package service

import (
	"context"
	"fmt"
	"strings"

	"uni-counselor/internal/models"

	"go.uber.org/zap"
)

type CatalogLister interface {
	ListUniversities(ctx context.Context, limit int) ([]*models.University, error)
	ListProgrammes(ctx context.Context, filter models.ProgrammeFilter, limit int) ([]*models.Programme, error)
}

// IndexService turns the catalog into index documents and drives full
// rebuilds of the embedding index.
type IndexService struct {
	catalog CatalogLister
	index   *EmbeddingIndex
	logger  *zap.Logger
}

func NewIndexService(catalog CatalogLister, index *EmbeddingIndex, logger *zap.Logger) *IndexService {
	return &IndexService{
		catalog: catalog,
		index:   index,
		logger:  logger,
	}
}

// RebuildFromCatalog re-indexes every university and programme. Search keeps
// serving the previous generation until the rebuild lands.
func (s *IndexService) RebuildFromCatalog(ctx context.Context) (int, int, error) {
	universities, err := s.catalog.ListUniversities(ctx, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list universities: %w", err)
	}
	programmes, err := s.catalog.ListProgrammes(ctx, models.ProgrammeFilter{}, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list programmes: %w", err)
	}

	docs := make([]IndexDocument, 0, len(universities)+len(programmes))
	for _, u := range universities {
		docs = append(docs, IndexDocument{
			SourceType: models.SourceTypeUniversity,
			SourceID:   u.ID,
			Text:       UniversityEmbedText(u),
		})
	}
	for _, p := range programmes {
		docs = append(docs, IndexDocument{
			SourceType: models.SourceTypeProgramme,
			SourceID:   p.ID,
			Text:       ProgrammeEmbedText(p),
		})
	}

	return s.index.Rebuild(ctx, docs)
}

// UniversityEmbedText is the canonical text embedded for a university. The
// same builder runs at seed time and rebuild time so text hashes line up.
func UniversityEmbedText(u *models.University) string {
	parts := []string{u.Name}
	if u.City != "" {
		parts = append(parts, "in "+u.City)
	}
	if u.Description != "" {
		parts = append(parts, u.Description)
	}
	return strings.Join(parts, ". ")
}

// ProgrammeEmbedText is the canonical text embedded for a programme.
func ProgrammeEmbedText(p *models.Programme) string {
	parts := []string{fmt.Sprintf("%s (%s) at %s", p.Title, p.DegreeType, p.UniversityName)}
	if p.City != "" {
		parts = append(parts, "in "+p.City)
	}
	if len(p.Languages) > 0 {
		parts = append(parts, "taught in "+strings.Join(p.Languages, " and "))
	}
	if p.TuitionFeeEURPerSemester != nil {
		parts = append(parts, fmt.Sprintf("tuition %.0f EUR per semester", *p.TuitionFeeEURPerSemester))
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, ". ")
}
