package main

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"uni-counselor/internal/models"
	"uni-counselor/internal/repository"
	"uni-counselor/internal/service"
	"uni-counselor/pkg/config"
	"uni-counselor/pkg/logger"
	"uni-counselor/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	catalogRepo := repository.NewCatalogRepository(db, appLogger)
	immigrationRepo := repository.NewImmigrationRepository(db, appLogger)
	embeddingRepo := repository.NewEmbeddingRepository(db, appLogger)

	appLogger.Info("Starting database seeding...")

	seedDir := filepath.Join("cmd", "seed", "data")
	cacheFile := filepath.Join(seedDir, ".seed_cache.json")
	cache := loadCache(cacheFile, appLogger)

	if err := seedCatalog(ctx, filepath.Join(seedDir, "universities.json"), cache, catalogRepo, appLogger); err != nil {
		appLogger.Fatal("Failed to seed catalog", zap.Error(err))
	}
	if err := seedImmigrationRules(ctx, filepath.Join(seedDir, "immigration_rules.json"), immigrationRepo, appLogger); err != nil {
		appLogger.Fatal("Failed to seed immigration rules", zap.Error(err))
	}

	saveCache(cacheFile, cache, appLogger)

	// Build the retrieval index over whatever the catalog now holds
	embedder := service.NewOpenAIEmbedder(&cfg.Embedding, cfg.AI.RequestTimeout)
	index := service.NewEmbeddingIndex(embedder, embeddingRepo, appLogger)
	if err := index.Load(ctx); err != nil {
		appLogger.Fatal("Failed to load embedding index", zap.Error(err))
	}

	indexService := service.NewIndexService(catalogRepo, index, appLogger)
	indexed, failed, err := indexService.RebuildFromCatalog(ctx)
	if err != nil {
		appLogger.Fatal("Failed to build embedding index", zap.Error(err))
	}
	appLogger.Info("Embedding index built", zap.Int("indexed", indexed), zap.Int("failed", failed))

	appLogger.Info("Database seeding completed successfully!")
}

// ProcessedFile records one already-imported seed file
type ProcessedFile struct {
	FilePath    string    `json:"file_path"`
	FileHash    string    `json:"file_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CacheData stores information about processed files
type CacheData struct {
	ProcessedFiles map[string]ProcessedFile `json:"processed_files"` // key: file path
}

type seedUniversity struct {
	Name        string          `json:"name"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Country     string          `json:"country"`
	WebPages    []string        `json:"web_pages"`
	Description string          `json:"description"`
	SourceURL   string          `json:"source_url"`
	Programmes  []seedProgramme `json:"programmes"`
}

type seedProgramme struct {
	Title                    string   `json:"title"`
	DegreeType               string   `json:"degree_type"`
	City                     string   `json:"city"`
	Languages                []string `json:"languages"`
	TuitionFeeEURPerSemester *float64 `json:"tuition_fee_eur_per_semester"`
	DurationSemesters        *int     `json:"duration_semesters"`
	ApplicationDeadline      string   `json:"application_deadline"`
	Description              string   `json:"description"`
	SourceURL                string   `json:"source_url"`
}

func seedCatalog(ctx context.Context, path string, cache *CacheData, repo *repository.CatalogRepository, appLogger *zap.Logger) error {
	hash, err := fileHash(path)
	if err != nil {
		return err
	}
	if cached, ok := cache.ProcessedFiles[path]; ok && cached.FileHash == hash {
		appLogger.Info("Catalog seed file unchanged, skipping", zap.String("file", path))
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var universities []seedUniversity
	if err := json.Unmarshal(data, &universities); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	now := time.Now()
	var uniCount, progCount int
	for _, su := range universities {
		uni := &models.University{
			ID:          uuid.New(),
			Name:        su.Name,
			City:        su.City,
			State:       su.State,
			Country:     su.Country,
			WebPages:    su.WebPages,
			Description: su.Description,
			SourceURL:   su.SourceURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		// Upserts on natural keys keep re-imports from duplicating rows
		if err := repo.UpsertUniversity(ctx, uni); err != nil {
			return fmt.Errorf("failed to upsert university %q: %w", su.Name, err)
		}
		uniCount++

		for _, sp := range su.Programmes {
			city := sp.City
			if city == "" {
				city = su.City
			}
			prog := &models.Programme{
				ID:                       uuid.New(),
				UniversityID:             uni.ID,
				Title:                    sp.Title,
				DegreeType:               sp.DegreeType,
				City:                     city,
				Languages:                sp.Languages,
				TuitionFeeEURPerSemester: sp.TuitionFeeEURPerSemester,
				DurationSemesters:        sp.DurationSemesters,
				Description:              sp.Description,
				SourceURL:                sp.SourceURL,
				CreatedAt:                now,
				UpdatedAt:                now,
			}
			if sp.ApplicationDeadline != "" {
				if deadline, err := time.Parse("2006-01-02", sp.ApplicationDeadline); err == nil {
					prog.ApplicationDeadline = &deadline
				} else {
					appLogger.Warn("Skipping unparseable deadline",
						zap.String("programme", sp.Title), zap.String("deadline", sp.ApplicationDeadline))
				}
			}
			if err := repo.UpsertProgramme(ctx, prog); err != nil {
				return fmt.Errorf("failed to upsert programme %q: %w", sp.Title, err)
			}
			progCount++
		}
	}

	cache.ProcessedFiles[path] = ProcessedFile{FilePath: path, FileHash: hash, ProcessedAt: time.Now()}
	appLogger.Info("Catalog seeded", zap.Int("universities", uniCount), zap.Int("programmes", progCount))
	return nil
}

type seedImmigrationRule struct {
	CountryCode      string   `json:"country_code"`
	VisaType         string   `json:"visa_type"`
	MinFundsYearEUR  float64  `json:"min_funds_year_eur"`
	WorkHoursPerWeek int      `json:"work_hours_per_week"`
	KeyDocuments     []string `json:"key_documents"`
	SourceURL        string   `json:"source_url"`
}

func seedImmigrationRules(ctx context.Context, path string, repo *repository.ImmigrationRepository, appLogger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rules []seedImmigrationRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Rules upsert on (country_code, visa_type), so re-running is safe
	for _, sr := range rules {
		rule := &models.ImmigrationRule{
			ID:               uuid.New(),
			CountryCode:      sr.CountryCode,
			VisaType:         sr.VisaType,
			MinFundsYearEUR:  sr.MinFundsYearEUR,
			WorkHoursPerWeek: sr.WorkHoursPerWeek,
			KeyDocuments:     sr.KeyDocuments,
			SourceURL:        sr.SourceURL,
			UpdatedAt:        time.Now(),
		}
		if err := repo.Upsert(ctx, rule); err != nil {
			return fmt.Errorf("failed to upsert rule %s/%s: %w", sr.CountryCode, sr.VisaType, err)
		}
	}

	appLogger.Info("Immigration rules seeded", zap.Int("rules", len(rules)))
	return nil
}

func loadCache(path string, appLogger *zap.Logger) *CacheData {
	cache := &CacheData{ProcessedFiles: make(map[string]ProcessedFile)}

	data, err := os.ReadFile(path)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, cache); err != nil {
		appLogger.Warn("Ignoring unreadable seed cache", zap.Error(err))
		return &CacheData{ProcessedFiles: make(map[string]ProcessedFile)}
	}
	if cache.ProcessedFiles == nil {
		cache.ProcessedFiles = make(map[string]ProcessedFile)
	}
	return cache
}

func saveCache(path string, cache *CacheData, appLogger *zap.Logger) {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		appLogger.Warn("Failed to encode seed cache", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		appLogger.Warn("Failed to write seed cache", zap.Error(err))
	}
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
