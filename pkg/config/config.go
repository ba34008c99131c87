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
	MinIO      MinIOConfig
	OCR        OCRConfig
	Preprocess PreprocessConfig
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

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Folder    string
}

// OCRConfig carries tesseract engine settings. These are passed to the
// engine as-is; the pipeline does not reinterpret them.
type OCRConfig struct {
	Language    string
	Whitelist   string
	PageSegMode int
}

// PreprocessConfig controls the OCR image preprocessing chain. Enabled=false
// makes ingestion feed the uploaded bytes to the engine untouched, for
// sources that are already high-contrast scans.
type PreprocessConfig struct {
	Enabled     bool
	TargetWidth int
	Threshold   uint8
	Gamma       float64
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env is fine, plain environment variables work for Docker/K8s.

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	psm, _ := strconv.Atoi(getEnv("OCR_PAGE_SEG_MODE", "3"))
	targetWidth, _ := strconv.Atoi(getEnv("PREPROCESS_TARGET_WIDTH", "1200"))
	threshold, _ := strconv.Atoi(getEnv("PREPROCESS_THRESHOLD", "128"))
	gamma, _ := strconv.ParseFloat(getEnv("PREPROCESS_GAMMA", "1.5"), 64)

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
			DBName:   getEnv("DB_NAME", "receipto"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "receipts"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
			Folder:    getEnv("MINIO_FOLDER", "Receipts"),
		},
		OCR: OCRConfig{
			Language:    getEnv("OCR_LANGUAGE", "eng"),
			Whitelist:   getEnv("OCR_WHITELIST", "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz%$.,-: "),
			PageSegMode: psm,
		},
		Preprocess: PreprocessConfig{
			Enabled:     getEnv("PREPROCESS_ENABLED", "true") == "true",
			TargetWidth: targetWidth,
			Threshold:   uint8(threshold),
			Gamma:       gamma,
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
