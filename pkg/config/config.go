package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	AI         AIConfig
	Embedding  EmbeddingConfig
	Retrieval  RetrievalConfig
	Assessment AssessmentConfig
	Logger     LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// ProviderConfig describes one OpenAI-compatible chat-completion vendor.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AIConfig holds the chat-completion provider pair. Primary is tried first,
// fallback takes over on any primary failure. FallbackVendor selects the
// fallback implementation: "openai" (OpenAI-compatible HTTP) or "gigachat".
type AIConfig struct {
	Primary        ProviderConfig
	Fallback       ProviderConfig
	FallbackVendor string
	GigaChat       GigaChatConfig
	RequestTimeout time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

// EmbeddingConfig describes the dedicated embedding vendor. Only this path
// has to support embeddings; the primary chat vendor need not.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type RetrievalConfig struct {
	TopK          int
	HistoryWindow int
}

// AssessmentConfig carries the feasibility thresholds and dimension weights.
// Weights are the maximum points per dimension; thresholds are percentages.
type AssessmentConfig struct {
	HighThreshold   float64
	MediumThreshold float64
	AcademicWeight  float64
	LanguageWeight  float64
	FinancialWeight float64
	DocumentsWeight float64
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine: environment variables may be set directly
	// (useful for Docker/K8s)

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	aiTimeout, _ := strconv.Atoi(getEnv("AI_REQUEST_TIMEOUT", "60"))
	topK, _ := strconv.Atoi(getEnv("RETRIEVAL_TOP_K", "5"))
	historyWindow, _ := strconv.Atoi(getEnv("RETRIEVAL_HISTORY_WINDOW", "6"))
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "uni_counselor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		AI: AIConfig{
			Primary: ProviderConfig{
				APIKey:  getEnv("OPENROUTER_API_KEY", ""),
				BaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:   getEnv("OPENROUTER_MODEL", "meta-llama/llama-3.3-70b-instruct:free"),
			},
			Fallback: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			FallbackVendor: getEnv("AI_FALLBACK_VENDOR", "openai"),
			GigaChat: GigaChatConfig{
				APIKey:             getEnv("GIGACHAT_API_KEY", ""),
				Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
				InsecureSkipVerify: insecureSkipVerify,
			},
			RequestTimeout: time.Duration(aiTimeout) * time.Second,
		},
		Embedding: EmbeddingConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Retrieval: RetrievalConfig{
			TopK:          topK,
			HistoryWindow: historyWindow,
		},
		Assessment: AssessmentConfig{
			HighThreshold:   getEnvFloat("ASSESSMENT_HIGH_THRESHOLD", 75),
			MediumThreshold: getEnvFloat("ASSESSMENT_MEDIUM_THRESHOLD", 45),
			AcademicWeight:  getEnvFloat("ASSESSMENT_ACADEMIC_WEIGHT", 35),
			LanguageWeight:  getEnvFloat("ASSESSMENT_LANGUAGE_WEIGHT", 25),
			FinancialWeight: getEnvFloat("ASSESSMENT_FINANCIAL_WEIGHT", 25),
			DocumentsWeight: getEnvFloat("ASSESSMENT_DOCUMENTS_WEIGHT", 15),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
