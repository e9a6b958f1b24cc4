package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg := LoadFile("")

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SamplingInterval != 1000 {
		t.Errorf("Expected default sampling interval 1000ms, got %d", cfg.SamplingInterval)
	}
	if cfg.MotionThreshold != 0 {
		t.Errorf("Expected motion gate disabled by default, got %d", cfg.MotionThreshold)
	}
	if !cfg.ArchiveEnabled {
		t.Error("Expected archive enabled by default")
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INFERENCE_URL", "http://detector:5000/")
	t.Setenv("ARCHIVE_ENABLED", "false")
	t.Setenv("SAMPLING_INTERVAL_MS", "not-a-number")

	cfg := LoadFile("")

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.InferenceURL != "http://detector:5000" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.InferenceURL)
	}
	if cfg.ArchiveEnabled {
		t.Error("Expected archive disabled")
	}
	if cfg.SamplingInterval != 1000 {
		t.Errorf("Expected fallback to default on invalid value, got %d", cfg.SamplingInterval)
	}
}

func TestLoadFile_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "CAMERA_DEVICE=rtsp://cam.local/stream\nJPEG_QUALITY=75\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	// godotenv does not override variables that are already set.
	t.Setenv("JPEG_QUALITY", "60")
	t.Cleanup(func() { os.Unsetenv("CAMERA_DEVICE") })

	cfg := LoadFile(envFile)

	if cfg.CameraDevice != "rtsp://cam.local/stream" {
		t.Errorf("Expected camera device from .env, got %s", cfg.CameraDevice)
	}
	if cfg.JPEGQuality != 60 {
		t.Errorf("Expected environment to win over .env, got %d", cfg.JPEGQuality)
	}
}
