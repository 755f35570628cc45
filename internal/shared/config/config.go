package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	DatabaseURL        string
	Env                string
	JWTSecret          string
	ExportBaseDir      string
	ExportTempDir      string
	LLMProvider        string
	LLMModel           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	Export             ExportConfig
}

// ExportConfig holds export subsystem tunables.
type ExportConfig struct {
	MaxExportSizeMB        int
	MaxBulkExportSizeMB    int
	ExportExpiryHours      int
	BulkExpiryHours        int
	FreeExportsPerMonth    int
	PremiumExportsPerMonth int
	MaxBulkResumes         int
	MaxRetries             int
	RetryDelay             time.Duration
	CleanupBatchSize       int
	AutoCleanupEnabled     bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:        dbURL,
		Env:                env,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ExportBaseDir:      getEnv("EXPORT_BASE_DIR", "./data/exports"),
		ExportTempDir:      getEnv("EXPORT_TEMP_DIR", "./data/temp_exports"),
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		LLMModel:           getEnv("LLM_MODEL", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		Export:             loadExportConfig(),
	}
}

func loadExportConfig() ExportConfig {
	return ExportConfig{
		MaxExportSizeMB:        getEnvInt("EXPORT_MAX_SIZE_MB", 50),
		MaxBulkExportSizeMB:    getEnvInt("EXPORT_MAX_BULK_SIZE_MB", 200),
		ExportExpiryHours:      getEnvInt("EXPORT_EXPIRY_HOURS", 24),
		BulkExpiryHours:        getEnvInt("EXPORT_BULK_EXPIRY_HOURS", 48),
		FreeExportsPerMonth:    getEnvInt("EXPORT_FREE_PER_MONTH", 3),
		PremiumExportsPerMonth: getEnvInt("EXPORT_PREMIUM_PER_MONTH", 100),
		MaxBulkResumes:         getEnvInt("EXPORT_MAX_BULK_RESUMES", 20),
		MaxRetries:             getEnvInt("EXPORT_MAX_RETRIES", 3),
		RetryDelay:             time.Duration(getEnvInt("EXPORT_RETRY_DELAY_SECONDS", 5)) * time.Second,
		CleanupBatchSize:       getEnvInt("EXPORT_CLEANUP_BATCH_SIZE", 100),
		AutoCleanupEnabled:     getEnvBool("EXPORT_AUTO_CLEANUP", true),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using default %d", key, raw, def)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: %s invalid bool %q, using default %v", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
