package streaming

import (
	"context"
	"sort"
	"sync"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// StationCatalog resolves station slugs. Unknown slugs return an error
// wrapping ErrStationNotFound.
type StationCatalog interface {
	GetStation(ctx context.Context, slug string) (*models.Station, error)
}

// StationPool keeps one StreamManager per running station.
type StationPool struct {
	cfg     config.BroadcastConfig
	catalog StationCatalog
	deps    ManagerDeps

	mu       sync.RWMutex
	stations map[string]*StreamManager
}

// NewStationPool creates an empty pool. Every manager it starts shares deps.
func NewStationPool(cfg config.BroadcastConfig, catalog StationCatalog, deps ManagerDeps) *StationPool {
	return &StationPool{
		cfg:      cfg,
		catalog:  catalog,
		deps:     deps,
		stations: make(map[string]*StreamManager),
	}
}

// Start brings a station on air. Starting a running station returns it.
func (p *StationPool) Start(ctx context.Context, slug string) (*StreamManager, error) {
	if m, ok := p.Get(slug); ok {
		return m, nil
	}

	station, err := p.catalog.GetStation(ctx, slug)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if m, ok := p.stations[slug]; ok {
		p.mu.Unlock()
		return m, nil
	}
	m := NewStreamManager(station, p.cfg, p.deps)
	if err := m.Start(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.stations[slug] = m
	active := len(p.stations)
	p.mu.Unlock()

	p.deps.Metrics.SetActiveStations(active)
	logger.Log.Info().Str("station", slug).Int("active_stations", active).Msg("Station added to pool")
	return m, nil
}

// Stop shuts a station down and forgets it.
func (p *StationPool) Stop(_ context.Context, slug string) error {
	p.mu.Lock()
	m, ok := p.stations[slug]
	if ok {
		delete(p.stations, slug)
	}
	active := len(p.stations)
	p.mu.Unlock()

	if !ok {
		return ErrStationNotFound
	}
	m.Shutdown()
	p.deps.Metrics.SetActiveStations(active)
	logger.Log.Info().Str("station", slug).Int("active_stations", active).Msg("Station removed from pool")
	return nil
}

// Get returns the running manager for slug.
func (p *StationPool) Get(slug string) (*StreamManager, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.stations[slug]
	return m, ok
}

// List returns the running managers ordered by slug.
func (p *StationPool) List() []*StreamManager {
	p.mu.RLock()
	out := make([]*StreamManager, 0, len(p.stations))
	for _, m := range p.stations {
		out = append(out, m)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Slug() < out[j].Slug() })
	return out
}

// Len returns the number of running stations
func (p *StationPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stations)
}

// AddFragmentToSlice queues content on a running station.
func (p *StationPool) AddFragmentToSlice(ctx context.Context, slug string, req SliceRequest) error {
	m, ok := p.Get(slug)
	if !ok {
		return ErrStationNotFound
	}
	return m.AddFragmentToSlice(ctx, req)
}

// Stats returns the stats of a running station.
func (p *StationPool) Stats(slug string) (StationStats, error) {
	m, ok := p.Get(slug)
	if !ok {
		return StationStats{}, ErrStationNotFound
	}
	return m.Stats(), nil
}

// StopAll shuts every station down.
func (p *StationPool) StopAll(_ context.Context) {
	p.mu.Lock()
	managers := make([]*StreamManager, 0, len(p.stations))
	for slug, m := range p.stations {
		managers = append(managers, m)
		delete(p.stations, slug)
	}
	p.mu.Unlock()

	for _, m := range managers {
		m.Shutdown()
	}
	p.deps.Metrics.SetActiveStations(0)
	logger.Log.Info().Int("stopped_stations", len(managers)).Msg("All stations stopped")
}
