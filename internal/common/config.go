package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Extraction ExtractionConfig
	Ingest     IngestConfig
	LogLevel   string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	UploadRPS       float64
	UploadBurst     int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract        string
	TesseractLang    string
	PSM              int
	HeicConverter    string
	TessdataDir      string
	ArtifactCacheDir string
	Preprocess       bool
	TargetHeight     int
	Timeout          time.Duration
}

// ExtractionConfig holds the engine configuration. RulesPath may be empty,
// in which case the built-in tables are used.
type ExtractionConfig struct {
	RulesPath          string
	Parallel           bool
	DateOrder          string
	CalendarConversion bool
	ReviewThreshold    float64
}

// IngestConfig holds inbox and worker configuration
type IngestConfig struct {
	InboxDir       string
	UploadDir      string
	MaxUploadBytes int64
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	Debounce       time.Duration
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment. Values already set in the environment win over .env.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config.dotenv.failed", "error", err)
	}
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", "file:receipts.db?_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			UploadRPS:       getEnvAsFloat64("UPLOAD_RPS", 2),
			UploadBurst:     getEnvAsInt("UPLOAD_BURST", 5),
		},
		OCR: OCRConfig{
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:    getEnv("TESSERACT_LANG", "eng"),
			PSM:              getEnvAsInt("TESSERACT_PSM", 6),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			Preprocess:       getEnvAsBool("OCR_PREPROCESS", true),
			TargetHeight:     getEnvAsInt("OCR_TARGET_HEIGHT", 1800),
			Timeout:          getEnvAsDuration("OCR_TIMEOUT", 90*time.Second),
		},
		Extraction: ExtractionConfig{
			RulesPath:          getEnv("RULES_PATH", ""),
			Parallel:           getEnvAsBool("EXTRACT_PARALLEL", false),
			DateOrder:          strings.ToUpper(getEnv("DATE_ORDER", "MDY")),
			CalendarConversion: getEnvAsBool("CALENDAR_CONVERSION", true),
			ReviewThreshold:    getEnvAsFloat64("REVIEW_THRESHOLD", 0.5),
		},
		Ingest: IngestConfig{
			InboxDir:       getEnv("INBOX_DIR", ""),
			UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
			Workers:        getEnvAsInt("INGEST_WORKERS", 4),
			QueueSize:      getEnvAsInt("INGEST_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("INGEST_PROCESS_TIMEOUT", 3*time.Minute),
			Debounce:       getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return ConfigError("DB_DRIVER must be postgres or sqlite")
	}
	if c.Database.DSN == "" {
		return ConfigError("DB_URL is required")
	}
	if c.Server.HTTPAddr == "" {
		return ConfigError("HTTP_ADDR is required")
	}
	if c.Server.GRPCAddr == "" {
		return ConfigError("GRPC_ADDR is required")
	}
	switch c.Extraction.DateOrder {
	case "MDY", "DMY":
	default:
		return ConfigError("DATE_ORDER must be MDY or DMY")
	}
	if c.Extraction.ReviewThreshold < 0 || c.Extraction.ReviewThreshold > 1 {
		return ConfigError("REVIEW_THRESHOLD must be within [0,1]")
	}
	if c.Ingest.Workers <= 0 {
		return ConfigError("INGEST_WORKERS must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level; unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON slog logger used by the binaries.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
