package repository

import (
	"platecam/internal/dto"
	"platecam/internal/model"
)

// ClipRepository defines the interface for clip ledger operations.
type ClipRepository interface {
	// Create operations
	Insert(clip *model.Clip) (int64, error)

	// Update operations
	UpdateStatus(folder string, status model.ClipStatus, uploadedPath string) error

	// Read operations
	GetByID(id int64) (*model.Clip, error)
	GetAll(filter *dto.ClipFilters) ([]model.Clip, error)
	GetTotalCount(filter *dto.ClipFilters) (int, error)

	// Delete operations
	DeleteAll() error
}

// SightingRepository defines the interface for raw recognition records.
type SightingRepository interface {
	// Create operations
	InsertBatch(sightings []model.Sighting) error

	// Read operations
	GetByIdentifier(identifier string) ([]model.Sighting, error)
	GetAllIdentifiers() ([]string, error)
}
