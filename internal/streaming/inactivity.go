package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// InactivityChecker demotes stations nobody listens to and removes stations
// that stayed idle too long.
type InactivityChecker struct {
	pool *StationPool
	cfg  config.InactivityConfig
	log  zerolog.Logger
	now  func() time.Time

	mu        sync.Mutex
	idleSince map[string]time.Time
	marked    map[string]time.Time
}

// NewInactivityChecker creates a checker over pool.
func NewInactivityChecker(pool *StationPool, cfg config.InactivityConfig) *InactivityChecker {
	return &InactivityChecker{
		pool:      pool,
		cfg:       cfg,
		log:       logger.Component("inactivity"),
		now:       time.Now,
		idleSince: make(map[string]time.Time),
		marked:    make(map[string]time.Time),
	}
}

// Schedule registers the periodic check on rt.
func (c *InactivityChecker) Schedule(rt Runtime) (context.CancelFunc, error) {
	return rt.Every("inactivity_check", c.cfg.Interval, c.cfg.Interval, c.Check)
}

// Check runs one pass over every running station.
func (c *InactivityChecker) Check(ctx context.Context) {
	now := c.now()
	running := make(map[string]struct{})

	for _, m := range c.pool.List() {
		slug := m.Slug()
		running[slug] = struct{}{}

		if c.handleMarked(ctx, m, now) {
			continue
		}
		c.evaluate(m, now)
	}

	c.mu.Lock()
	for slug := range c.idleSince {
		if _, ok := running[slug]; !ok {
			delete(c.idleSince, slug)
		}
	}
	for slug := range c.marked {
		if _, ok := running[slug]; !ok {
			delete(c.marked, slug)
		}
	}
	c.mu.Unlock()
}

// handleMarked removes a station once its removal delay passed, or revives it
// when a listener came back in the meantime. It reports whether m was marked.
func (c *InactivityChecker) handleMarked(ctx context.Context, m *StreamManager, now time.Time) bool {
	slug := m.Slug()
	c.mu.Lock()
	markedAt, ok := c.marked[slug]
	c.mu.Unlock()
	if !ok {
		return false
	}

	if last := m.LastAccess(); !last.IsZero() && last.After(markedAt) && now.Sub(last) < c.cfg.WaitingForCurator {
		c.forget(slug)
		m.State().SetStatus(models.StatusOnline)
		c.log.Info().Str("station", slug).Msg("Listener returned, station revived")
		return true
	}

	if now.Sub(markedAt) < c.cfg.RemovalDelay {
		return true
	}

	c.forget(slug)
	if err := c.pool.Stop(ctx, slug); err != nil {
		c.log.Warn().Err(err).Str("station", slug).Msg("Failed to remove inactive station")
		return true
	}
	c.log.Info().Str("station", slug).Msg("Inactive station removed")
	return true
}

func (c *InactivityChecker) evaluate(m *StreamManager, now time.Time) {
	slug := m.Slug()
	state := m.State()
	status := state.Status()

	ref := m.LastAccess()
	if ref.IsZero() {
		ref = state.StartTime()
	}
	if ref.IsZero() {
		return
	}
	age := now.Sub(ref)

	switch {
	case age < c.cfg.WaitingForCurator:
		switch {
		case status == models.StatusIdle:
			c.clearIdle(slug)
			state.SetStatus(models.StatusOnline)
		case status == models.StatusWaitingForCurator && m.SegmentCount() > 0:
			state.SetStatus(models.StatusOnline)
		}
	case age >= c.cfg.Idle:
		if status.IsActive() && status != models.StatusIdle {
			state.SetStatus(models.StatusIdle)
			status = models.StatusIdle
			c.log.Info().Str("station", slug).Dur("inactive", age).Msg("Station idle")
		}
	default:
		if status.IsActive() && status != models.StatusIdle &&
			status != models.StatusSystemError && status != models.StatusWaitingForCurator {
			state.SetStatus(models.StatusWaitingForCurator)
			c.log.Info().Str("station", slug).Dur("inactive", age).Msg("No listeners, waiting for curator")
		}
	}

	if status != models.StatusIdle {
		return
	}

	c.mu.Lock()
	since, ok := c.idleSince[slug]
	if !ok {
		since = now
		c.idleSince[slug] = now
	}
	expired := now.Sub(since) >= c.cfg.IdleToOffline
	if expired {
		delete(c.idleSince, slug)
		c.marked[slug] = now
	}
	c.mu.Unlock()

	if expired {
		state.SetStatus(models.StatusOffline)
		c.log.Info().Str("station", slug).Dur("removal_delay", c.cfg.RemovalDelay).Msg("Idle station off line, scheduled for removal")
	}
}

func (c *InactivityChecker) clearIdle(slug string) {
	c.mu.Lock()
	delete(c.idleSince, slug)
	c.mu.Unlock()
}

func (c *InactivityChecker) forget(slug string) {
	c.mu.Lock()
	delete(c.idleSince, slug)
	delete(c.marked, slug)
	c.mu.Unlock()
}

// Marked reports whether slug is scheduled for removal.
func (c *InactivityChecker) Marked(slug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.marked[slug]
	return ok
}
