package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"detectdemo/internal/config"
	"detectdemo/internal/dto"
	"detectdemo/internal/logger"
	"detectdemo/internal/model"
	"detectdemo/internal/repository"
	"detectdemo/internal/service/pipeline"

	"github.com/google/uuid"
)

const (
	// DefaultBufferLimit limits how many snapshots per origin are buffered between flushes.
	DefaultBufferLimit = 10
	// DefaultFlushInterval defines how often (seconds) buffered snapshots are flushed to disk.
	DefaultFlushInterval = 30

	TimestampLayout = "2006-01-02_15-04-05.000"
)

// ArchiveService buffers applied results in memory and periodically flushes
// them to disk and the history database.
type ArchiveService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	snapshots     []dto.BufferedSnapshot
	bufferCount   map[model.Origin]int
	mu            sync.Mutex // Guards snapshots and bufferCount
	flushMu       sync.Mutex // Serializes flushes
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	detectionRepo repository.DetectionRepository
}

// NewArchiveService creates an ArchiveService. Either repository may be nil,
// in which case files are still written.
func NewArchiveService(config *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) *ArchiveService {
	limit := config.ImageBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := config.ImageBufferFlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &ArchiveService{
		imagesDir:     config.ImageDirectory,
		limit:         limit,
		flushInterval: time.Duration(interval) * time.Second,
		snapshots:     make([]dto.BufferedSnapshot, 0),
		bufferCount:   make(map[model.Origin]int),
		logger:        logger,
		snapshotRepo:  snapshotRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on every interval until ctx is done, then flushes once more.
func (s *ArchiveService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// Record is a pipeline.Listener that archives every applied result.
func (s *ArchiveService) Record(event pipeline.Event) {
	if event.Kind != pipeline.EventResult || event.Result == nil {
		return
	}
	data := event.Result.Image
	if len(data) == 0 {
		data = event.Source
	}
	s.AddSnapshot(data, event.Origin, event.Result.Detections)
}

// AddSnapshot appends an image to the buffer unless its origin is already
// at the limit for this interval.
func (s *ArchiveService) AddSnapshot(data []byte, origin model.Origin, detections []model.Detection) {
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[origin] >= s.limit {
		return
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		UID:        uuid.NewString(),
		Timestamp:  time.Now().Format(TimestampLayout),
		Origin:     origin,
		Detections: detections,
		Data:       data,
	})
	s.bufferCount[origin]++
	s.logger.Info("Buffer size for %s: %d/%d", origin, s.bufferCount[origin], s.limit)
}

// FileName is <timestamp>_<origin>_<uid>.jpg.
func FileName(timestamp string, origin model.Origin, uid string) string {
	return fmt.Sprintf("%s_%s_%s.jpg", timestamp, origin, uid)
}

// ParseFileName splits a name produced by FileName back into its parts.
func ParseFileName(filename string) (timestamp time.Time, origin model.Origin, uid string, err error) {
	name := strings.TrimSuffix(filename, ".jpg")
	parts := strings.Split(name, "_")

	if len(parts) != 4 {
		return time.Time{}, "", "", fmt.Errorf("invalid filename format: %s", filename)
	}

	timestamp, err = time.ParseInLocation(TimestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, "", "", fmt.Errorf("failed to parse timestamp: %w", err)
	}

	origin = model.Origin(parts[2])
	switch origin {
	case model.OriginUpload, model.OriginCapture, model.OriginLive:
	default:
		return time.Time{}, "", "", fmt.Errorf("unknown origin %q in %s", parts[2], filename)
	}

	if _, err := uuid.Parse(parts[3]); err != nil {
		return time.Time{}, "", "", fmt.Errorf("invalid uid in %s: %w", filename, err)
	}

	return timestamp, origin, parts[3], nil
}

// FlushSnapshots writes buffered snapshots to disk and the database. The
// buffer and per-origin counters are swapped out first, so Record never
// waits on file or database writes.
func (s *ArchiveService) FlushSnapshots() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return
	}

	s.mu.Lock()
	snapshots := s.snapshots
	s.snapshots = make([]dto.BufferedSnapshot, 0, len(snapshots))
	s.bufferCount = make(map[model.Origin]int)
	s.mu.Unlock()

	if len(snapshots) == 0 {
		return
	}

	savedCount := 0
	for _, snapshot := range snapshots {
		filename := FileName(snapshot.Timestamp, snapshot.Origin, snapshot.UID)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, snapshot.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.snapshotRepo != nil {
			ts, err := time.ParseInLocation(TimestampLayout, snapshot.Timestamp, time.Local)
			if err != nil {
				ts = time.Now()
			}

			snapshotID, err := s.snapshotRepo.Insert(&model.Snapshot{
				UID:       snapshot.UID,
				Filename:  filename,
				Origin:    snapshot.Origin,
				Timestamp: ts,
				FilePath:  fullpath,
				FileSize:  int64(len(snapshot.Data)),
			})
			if err != nil {
				s.logger.Error("Error saving snapshot to database %s: %v", filename, err)
				continue
			}

			if s.detectionRepo != nil && len(snapshot.Detections) > 0 {
				if err := s.detectionRepo.InsertBatch(toSnapshotDetections(snapshotID, snapshot.Detections)); err != nil {
					s.logger.Error("Error saving detections to database: %v", err)
				}
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d snapshots to disk", savedCount)
}

func toSnapshotDetections(snapshotID int64, detections []model.Detection) []model.SnapshotDetection {
	out := make([]model.SnapshotDetection, 0, len(detections))
	for _, det := range detections {
		out = append(out, model.SnapshotDetection{
			SnapshotID: snapshotID,
			ClassName:  det.Class,
			Confidence: det.Confidence,
			X1:         det.BBox[0],
			Y1:         det.BBox[1],
			X2:         det.BBox[2],
			Y2:         det.BBox[3],
		})
	}
	return out
}
