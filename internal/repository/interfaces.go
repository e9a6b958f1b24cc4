package repository

import (
	"detectdemo/internal/dto"
	"detectdemo/internal/model"
)

// SnapshotRepository defines the interface for archived snapshot operations.
type SnapshotRepository interface {
	// Create operations
	Insert(snapshot *model.Snapshot) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Snapshot, error)
	GetByFilename(filename string) (*model.Snapshot, error)
	GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error)
	GetTotalCount(filter *dto.SnapshotFilters) (int, error)
	GetDirectorySize() (int64, error)
	GetStats() (*model.SnapshotStats, error)
	Exists(filename string) (bool, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for stored detection operations.
type DetectionRepository interface {
	// Create operations
	Insert(det *model.SnapshotDetection) (int64, error)
	InsertBatch(detections []model.SnapshotDetection) error

	// Read operations
	GetBySnapshotID(snapshotID int64) ([]model.SnapshotDetection, error)
	GetClassNamesBySnapshotID(snapshotID int64) ([]string, error)
	GetAllClassNames() ([]string, error)

	// Delete operations
	DeleteBySnapshotID(snapshotID int64) error
}
