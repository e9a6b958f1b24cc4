package model

import "time"

// Snapshot represents an archived result image record.
type Snapshot struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	Filename  string    `json:"filename"`
	Origin    Origin    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// SnapshotDetection represents a detection stored with a snapshot.
type SnapshotDetection struct {
	ID         int64   `json:"id"`
	SnapshotID int64   `json:"snapshot_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// SnapshotStats contains statistics about archived snapshots.
type SnapshotStats struct {
	TotalSnapshots int            `json:"total_snapshots"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerOrigin      map[string]int `json:"per_origin"`
	ClassCounts    map[string]int `json:"class_counts"`
}
