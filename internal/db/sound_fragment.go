package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
	"gorm.io/gorm"
)

// SoundFragmentRepository handles database operations for sound fragments
type SoundFragmentRepository struct {
	db *DB
}

// NewSoundFragmentRepository creates a new sound fragment repository
func NewSoundFragmentRepository(db *DB) *SoundFragmentRepository {
	return &SoundFragmentRepository{db: db}
}

// Create inserts a new sound fragment
func (r *SoundFragmentRepository) Create(ctx context.Context, fragment *models.SoundFragment) error {
	if err := r.db.WithContext(ctx).Create(fragment).Error; err != nil {
		return fmt.Errorf("failed to create sound fragment: %w", MapGormError(err))
	}
	return nil
}

// GetByID retrieves a sound fragment by its UUID
func (r *SoundFragmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SoundFragment, error) {
	var fragment models.SoundFragment
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&fragment).Error; err != nil {
		return nil, MapGormError(err)
	}
	return &fragment, nil
}

// GetByPath retrieves a station's fragment by its source file path
func (r *SoundFragmentRepository) GetByPath(ctx context.Context, stationID uuid.UUID, filePath string) (*models.SoundFragment, error) {
	var fragment models.SoundFragment
	err := r.db.WithContext(ctx).
		Where("station_id = ? AND file_path = ?", stationID.String(), filePath).
		First(&fragment).Error
	if err != nil {
		return nil, MapGormError(err)
	}
	return &fragment, nil
}

// Update saves catalog metadata for an existing fragment. Play statistics
// are left untouched.
func (r *SoundFragmentRepository) Update(ctx context.Context, fragment *models.SoundFragment) error {
	result := r.db.WithContext(ctx).
		Model(&models.SoundFragment{}).
		Where("id = ?", fragment.ID.String()).
		Updates(map[string]any{
			"title":        fragment.Title,
			"artist":       fragment.Artist,
			"content_type": string(fragment.ContentType),
			"duration":     fragment.Duration,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update sound fragment: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBrandSongs returns up to quantity fragments of contentType for a station,
// least played first, skipping excludeIDs. Ties are broken randomly.
func (r *SoundFragmentRepository) GetBrandSongs(
	ctx context.Context,
	stationID uuid.UUID,
	contentType models.ContentType,
	quantity int,
	excludeIDs []uuid.UUID,
) ([]*models.SoundFragment, error) {
	if quantity <= 0 {
		return []*models.SoundFragment{}, nil
	}

	query := r.db.WithContext(ctx).
		Where("station_id = ? AND content_type = ?", stationID.String(), string(contentType))

	if len(excludeIDs) > 0 {
		ids := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			ids[i] = id.String()
		}
		query = query.Where("id NOT IN ?", ids)
	}

	var fragments []*models.SoundFragment
	err := query.
		Order("played_count ASC").
		Order("RANDOM()").
		Limit(quantity).
		Find(&fragments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get brand songs: %w", MapGormError(err))
	}
	return fragments, nil
}

// IncrementPlayedCount bumps the played counter and stamps the play time.
func (r *SoundFragmentRepository) IncrementPlayedCount(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SoundFragment{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"played_count":   gorm.Expr("played_count + 1"),
			"last_played_at": at.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment played count: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStation returns how many fragments a station owns.
func (r *SoundFragmentRepository) CountByStation(ctx context.Context, stationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SoundFragment{}).
		Where("station_id = ?", stationID.String()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sound fragments: %w", MapGormError(err))
	}
	return count, nil
}
