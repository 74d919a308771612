package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pagelens/pagelens/pkg/logging"
)

// Config holds complete service configuration
type Config struct {
	// Server configuration
	Server *ServerConfig `json:"server"`

	// OCR engine configuration
	OCR *OCRConfig `json:"ocr"`

	// Upload handling
	Upload *UploadConfig `json:"upload"`

	// Logging configuration
	Logging *logging.LogConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	CORSOrigins  string        `json:"cors_origins"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// OCRConfig holds recognition engine settings
type OCRConfig struct {
	// Language is the tesseract trained data selector
	Language string `json:"language"`
	// OllamaModel is the vision model the neural engine asks for
	OllamaModel string `json:"ollama_model"`
	// OllamaServerURL is the local model server endpoint
	OllamaServerURL string `json:"ollama_server_url"`
}

// UploadConfig holds PDF upload settings
type UploadConfig struct {
	// MaxFileSize caps uploaded PDFs, in bytes
	MaxFileSize int64 `json:"max_file_size"`
	// TempDir receives uploaded files; empty means the OS default
	TempDir string `json:"temp_dir"`
}

// Default returns a complete default configuration. Every value works
// without any environment set.
func Default() *Config {
	return &Config{
		Server: &ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			CORSOrigins:  "*",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		OCR: &OCRConfig{
			Language:        "eng",
			OllamaModel:     "llama3.2-vision",
			OllamaServerURL: "http://localhost:11434",
		},
		Upload: &UploadConfig{
			MaxFileSize: 50 * 1024 * 1024, // 50MB
			TempDir:     "",
		},
		Logging: logging.DefaultLogConfig(),
	}
}

// Load builds the configuration from the environment on top of the
// defaults. Engine selection and zoom are deliberately absent: they reset
// per session and are never persisted.
func Load() *Config {
	cfg := Default()

	cfg.Server.Host = getEnv("PAGELENS_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PAGELENS_PORT", cfg.Server.Port)
	cfg.Server.CORSOrigins = getEnv("PAGELENS_CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.OCR.Language = getEnv("PAGELENS_OCR_LANGUAGE", cfg.OCR.Language)
	cfg.OCR.OllamaModel = getEnv("PAGELENS_OLLAMA_MODEL", cfg.OCR.OllamaModel)
	cfg.OCR.OllamaServerURL = getEnv("PAGELENS_OLLAMA_URL", cfg.OCR.OllamaServerURL)

	cfg.Upload.MaxFileSize = getEnvInt64("PAGELENS_MAX_UPLOAD", cfg.Upload.MaxFileSize)
	cfg.Upload.TempDir = getEnv("PAGELENS_TEMP_DIR", cfg.Upload.TempDir)

	cfg.Logging.Level = getEnv("PAGELENS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("PAGELENS_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.OutputFile = getEnv("PAGELENS_LOG_FILE", cfg.Logging.OutputFile)

	return cfg
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
