// Package catalog adapts the persistent station and song catalog to the
// interfaces the streaming core consumes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/streaming"
)

// ErrFragmentNotFound is returned for unknown sound fragment IDs.
var ErrFragmentNotFound = errors.New("sound fragment not found")

// Service serves station lookups, song supply and play recording from the
// sqlite catalog.
type Service struct {
	repos *db.Repositories
}

// NewService creates a catalog service over repos
func NewService(repos *db.Repositories) *Service {
	return &Service{repos: repos}
}

// GetStation resolves a station by slug
func (s *Service) GetStation(ctx context.Context, slug string) (*models.Station, error) {
	st, err := s.repos.Stations.GetBySlug(ctx, slug)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", streaming.ErrStationNotFound, slug)
		}
		return nil, fmt.Errorf("failed to load station %s: %w", slug, err)
	}
	return st, nil
}

// ListStations returns every catalog station
func (s *Service) ListStations(ctx context.Context) ([]*models.Station, error) {
	return s.repos.Stations.List(ctx)
}

// CreateStation registers a new station. Duplicate slugs return db.ErrDuplicate.
func (s *Service) CreateStation(ctx context.Context, station *models.Station) error {
	if !station.ManagedBy.IsValid() {
		return fmt.Errorf("%w: managed_by %q", db.ErrInvalidInput, station.ManagedBy)
	}
	return s.repos.Stations.Create(ctx, station)
}

// GetBrandSongs returns the least played songs of a station not in excludeIDs
func (s *Service) GetBrandSongs(ctx context.Context, stationID uuid.UUID, contentType models.ContentType, quantity int, excludeIDs []uuid.UUID) ([]*models.SoundFragment, error) {
	return s.repos.SoundFragments.GetBrandSongs(ctx, stationID, contentType, quantity, excludeIDs)
}

// GetFragment loads a sound fragment by ID
func (s *Service) GetFragment(ctx context.Context, id uuid.UUID) (*models.SoundFragment, error) {
	f, err := s.repos.SoundFragments.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrFragmentNotFound, id)
		}
		return nil, err
	}
	return f, nil
}

// RecordPlay bumps the played counter of a fragment. A fragment deleted
// while it was on air is logged and ignored.
func (s *Service) RecordPlay(ctx context.Context, fragmentID uuid.UUID, at time.Time) error {
	err := s.repos.SoundFragments.IncrementPlayedCount(ctx, fragmentID, at)
	if db.IsNotFound(err) {
		logger.Log.Debug().
			Str("fragment_id", fragmentID.String()).
			Msg("Play recorded for missing fragment")
		return nil
	}
	return err
}

var (
	_ streaming.StationCatalog = (*Service)(nil)
	_ streaming.Supplier       = (*Service)(nil)
	_ streaming.PlayRecorder   = (*Service)(nil)
)
