package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"detectdemo/internal/config"
	"detectdemo/internal/dto"
	"detectdemo/internal/model"
	"detectdemo/internal/repository/sqlite"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupHistory(t *testing.T) (*config.Config, *sqlite.SnapshotRepository, *sqlite.DetectionRepository) {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	imagesDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		t.Fatalf("Failed to create images dir: %v", err)
	}

	cfg := &config.Config{ImageDirectory: imagesDir, MaxImageDirectorySize: 2}
	return cfg, sqlite.NewSnapshotRepository(db), sqlite.NewDetectionRepository(db)
}

func createSnapshot(t *testing.T, cfg *config.Config, repo *sqlite.SnapshotRepository, detRepo *sqlite.DetectionRepository,
	filename string, origin model.Origin, classes ...string) int64 {
	t.Helper()

	path := filepath.Join(cfg.ImageDirectory, filename)
	if err := os.WriteFile(path, []byte("fake image data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	id, err := repo.Insert(&model.Snapshot{
		UID:       "uid-" + filename,
		Filename:  filename,
		Origin:    origin,
		Timestamp: time.Now(),
		FilePath:  path,
		FileSize:  15,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var dets []model.SnapshotDetection
	for _, c := range classes {
		dets = append(dets, model.SnapshotDetection{SnapshotID: id, ClassName: c, Confidence: 0.9})
	}
	if len(dets) > 0 {
		if err := detRepo.InsertBatch(dets); err != nil {
			t.Fatalf("InsertBatch failed: %v", err)
		}
	}
	return id
}

// ========================================
// History Handler Tests
// ========================================

func TestHistoryHandler_ListAndFilter(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "a.jpg", model.OriginLive, "helmet", "helmet", "tool")
	createSnapshot(t, cfg, repo, detRepo, "b.jpg", model.OriginUpload, "tool")
	createSnapshot(t, cfg, repo, detRepo, "c.jpg", model.OriginLive)

	handler := HistoryHandler(cfg, testLogger(), repo, detRepo)

	tests := []struct {
		query    string
		expected int
		length   int
	}{
		{"", 3, 3},
		{"?origin=live", 2, 2},
		{"?class=tool", 2, 2},
		{"?limit=2&page=1", 2, 3},
		{"?limit=2&page=2", 1, 3},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/history"+tt.query, nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.query, rr.Code)
		}
		var data struct {
			Snapshots []json.RawMessage `json:"snapshots"`
			Length    int               `json:"length"`
			MaxSize   int64             `json:"maxSize"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&data); err != nil {
			t.Fatalf("%s: invalid JSON: %v", tt.query, err)
		}
		if len(data.Snapshots) != tt.expected {
			t.Errorf("%s: expected %d snapshots, got %d", tt.query, tt.expected, len(data.Snapshots))
		}
		if data.Length != tt.length {
			t.Errorf("%s: expected length %d, got %d", tt.query, tt.length, data.Length)
		}
		if data.MaxSize != 2 {
			t.Errorf("%s: expected max size 2, got %d", tt.query, data.MaxSize)
		}
	}
}

func TestHistoryHandler_Counts(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "a.jpg", model.OriginCapture, "helmet", "helmet", "tool")

	rr := httptest.NewRecorder()
	HistoryHandler(cfg, testLogger(), repo, detRepo)(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var data struct {
		Snapshots []struct {
			Name    string         `json:"name"`
			Origin  string         `json:"origin"`
			Classes []string       `json:"classes"`
			Counts  map[string]int `json:"counts"`
		} `json:"snapshots"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(data.Snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(data.Snapshots))
	}
	s := data.Snapshots[0]
	if s.Origin != "capture" || s.Counts["helmet"] != 2 || len(s.Classes) != 2 {
		t.Errorf("Unexpected snapshot %+v", s)
	}
}

func TestDeleteSnapshotHandler(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "gone.jpg", model.OriginLive, "helmet")

	rr := httptest.NewRecorder()
	DeleteSnapshotHandler(cfg, testLogger(), repo)(rr, httptest.NewRequest(http.MethodPost, "/api/history/delete?filename=gone.jpg", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if _, err := os.Stat(filepath.Join(cfg.ImageDirectory, "gone.jpg")); !os.IsNotExist(err) {
		t.Error("Expected file removed")
	}
	if exists, _ := repo.Exists("gone.jpg"); exists {
		t.Error("Expected row removed")
	}
}

func TestDeleteSnapshotHandler_RejectsTraversal(t *testing.T) {
	cfg, repo, _ := setupHistory(t)

	for _, name := range []string{"", "../secret.jpg", "/etc/passwd", "a/b.jpg"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/history/delete", nil)
		q := req.URL.Query()
		q.Set("filename", name)
		req.URL.RawQuery = q.Encode()

		DeleteSnapshotHandler(cfg, testLogger(), repo)(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", name, rr.Code)
		}
	}
}

func TestClearHistoryHandler(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "1.jpg", model.OriginLive)
	createSnapshot(t, cfg, repo, detRepo, "2.jpg", model.OriginUpload)

	rr := httptest.NewRecorder()
	ClearHistoryHandler(cfg, testLogger(), repo)(rr, httptest.NewRequest(http.MethodPost, "/api/history/clear", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}
	files, _ := os.ReadDir(cfg.ImageDirectory)
	if len(files) != 0 {
		t.Errorf("Expected empty directory, got %d files", len(files))
	}
	if count, _ := repo.GetTotalCount(&dto.SnapshotFilters{}); count != 0 {
		t.Errorf("Expected 0 rows, got %d", count)
	}
}

func TestViewSnapshotHandler(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "view.jpg", model.OriginLive)

	rr := httptest.NewRecorder()
	ViewSnapshotHandler(cfg)(rr, httptest.NewRequest(http.MethodGet, "/api/history/view?image=view.jpg", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "fake image data" {
		t.Errorf("Expected file content, got %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	ViewSnapshotHandler(cfg)(rr, httptest.NewRequest(http.MethodGet, "/api/history/view", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without image, got %d", rr.Code)
	}
}

func TestHistoryStatsHandler(t *testing.T) {
	cfg, repo, detRepo := setupHistory(t)
	createSnapshot(t, cfg, repo, detRepo, "a.jpg", model.OriginLive, "helmet")

	rr := httptest.NewRecorder()
	HistoryStatsHandler(testLogger(), repo)(rr, httptest.NewRequest(http.MethodGet, "/api/history/stats", nil))

	var stats model.SnapshotStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if stats.TotalSnapshots != 1 || stats.ClassCounts["helmet"] != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if result := atoiDefault(tt.input, tt.def); result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestIsValidFilename(t *testing.T) {
	for _, name := range []string{"image.jpg", "2025-06-15_14-30-00.000_live_abc.jpg", "test-file.jpeg"} {
		if !isValidFilename(name) {
			t.Errorf("Expected %s to be valid", name)
		}
	}
	for _, name := range []string{"", "..", "../secret.jpg", "/etc/passwd", "file\x00name.jpg"} {
		if isValidFilename(name) {
			t.Errorf("Expected %q to be invalid", name)
		}
	}
}

func TestParseDateAndTime(t *testing.T) {
	if d := parseDate("2025-06-15"); d.Year() != 2025 || d.Month() != time.June || d.Day() != 15 {
		t.Errorf("Unexpected date %v", d)
	}
	if !parseDate("15/06/2025").IsZero() {
		t.Error("Expected zero time for invalid date")
	}
	if tod := parseTimeOfDay("08:30"); tod.Hour() != 8 || tod.Minute() != 30 {
		t.Errorf("Unexpected time %v", tod)
	}
	if !parseTimeOfDay("8h").IsZero() {
		t.Error("Expected zero time for invalid time")
	}
}

func TestSnapshotInfo_MarshalJSON(t *testing.T) {
	info := dto.SnapshotInfo{
		Name:      "test.jpg",
		Date:      time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		TimeOfDay: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC),
		Origin:    "live",
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var out map[string]interface{}
	json.Unmarshal(data, &out)
	if out["date"] != "15-06-2025" {
		t.Errorf("Expected date format DD-MM-YYYY, got %v", out["date"])
	}
	if out["timeOfDay"] != "14:30" {
		t.Errorf("Expected time format HH:MM, got %v", out["timeOfDay"])
	}
}
