package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	Password           string // Empty disables the login cookie check
	InferenceURL       string
	InferenceTimeout   int // Seconds, 0 waits indefinitely
	CameraDevice       string
	CameraReadFailures int // Consecutive failed reads before a session counts as ended
	SamplingInterval   int // Live detection period in milliseconds
	JPEGQuality        int
	MotionThreshold    int // Changed pixels required to dispatch a live frame, 0 disables the gate

	ArchiveEnabled           bool
	ImageDirectory           string
	DatabasePath             string
	ImageBufferLimit         int
	ImageBufferFlushInterval int
	MaxImageDirectorySize    int64 // GB

	LogDirectory    string
	StaticDirectory string
}

// Load reads an optional .env file and fills Config from the environment.
func Load() *Config {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path. A missing file is not an error.
func LoadFile(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	return &Config{
		Port:               getEnvAsInt("PORT", 8080),
		Password:           getEnv("PASSWORD", ""),
		InferenceURL:       strings.TrimRight(getEnv("INFERENCE_URL", "http://localhost:8000"), "/"),
		InferenceTimeout:   getEnvAsInt("INFERENCE_TIMEOUT", 30),
		CameraDevice:       getEnv("CAMERA_DEVICE", "0"),
		CameraReadFailures: getEnvAsInt("CAMERA_READ_FAILURES", 10),
		SamplingInterval:   getEnvAsInt("SAMPLING_INTERVAL_MS", 1000),
		JPEGQuality:        getEnvAsInt("JPEG_QUALITY", 90),
		MotionThreshold:    getEnvAsInt("MOTION_THRESHOLD", 0),

		ArchiveEnabled:           getEnvAsBool("ARCHIVE_ENABLED", true),
		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "history.db")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 10),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		MaxImageDirectorySize:    getEnvAsInt64("MAX_IMAGE_DIRECTORY_SIZE", 2),

		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
