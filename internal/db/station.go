package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// StationRepository handles database operations for stations
type StationRepository struct {
	db *DB
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *DB) *StationRepository {
	return &StationRepository{db: db}
}

// Create inserts a new station
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	if station.Slug == "" {
		return fmt.Errorf("station slug is required: %w", ErrInvalidInput)
	}
	if err := r.db.WithContext(ctx).Create(station).Error; err != nil {
		return fmt.Errorf("failed to create station: %w", MapGormError(err))
	}
	return nil
}

// GetByID retrieves a station by its UUID
func (r *StationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&station).Error; err != nil {
		return nil, MapGormError(err)
	}
	return &station, nil
}

// GetBySlug retrieves a station by its slug
func (r *StationRepository) GetBySlug(ctx context.Context, slug string) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&station).Error; err != nil {
		return nil, MapGormError(err)
	}
	return &station, nil
}

// List retrieves all stations ordered by slug
func (r *StationRepository) List(ctx context.Context) ([]*models.Station, error) {
	var stations []*models.Station
	if err := r.db.WithContext(ctx).Order("slug ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", MapGormError(err))
	}
	return stations, nil
}

// Delete removes a station and, through the foreign key, its fragments
func (r *StationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Station{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete station: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
