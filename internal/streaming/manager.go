package streaming

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// Supplier returns candidate catalog entries for a station. It may return
// fewer than quantity, or none.
type Supplier interface {
	GetBrandSongs(ctx context.Context, stationID uuid.UUID, contentType models.ContentType, quantity int, excludeIDs []uuid.UUID) ([]*models.SoundFragment, error)
}

// PlayRecorder persists that a catalog entry went on air.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, fragmentID uuid.UUID, at time.Time) error
}

// Runtime runs periodic jobs and one-off tasks on a shared worker pool.
type Runtime interface {
	Every(name string, delay, interval time.Duration, fn func(context.Context)) (context.CancelFunc, error)
	Submit(name string, fn func(context.Context)) error
}

// ManagerDeps are the collaborators of a StreamManager. Plays, Events and
// Metrics are optional.
type ManagerDeps struct {
	Segmenter Segmenter
	Supplier  Supplier
	Runtime   Runtime
	Plays     PlayRecorder
	Events    events.Publisher
	Metrics   *metrics.Metrics
}

// StreamManager owns one station's window, pending stage, fragment queue and
// status, and drives them from the feed and slide timers.
type StreamManager struct {
	station *models.Station
	cfg     config.BroadcastConfig
	deps    ManagerDeps
	log     zerolog.Logger
	bitrate int

	state   *models.StationState
	window  *SegmentWindow
	pending *PendingQueue
	queue   *FragmentQueue
	memory  *SongMemory
	breaker *CircuitBreaker

	nextSeq  atomic.Uint64
	alive    atomic.Bool
	fetching atomic.Bool
	quantity func() int

	// tickMu serializes feed, slide and shutdown.
	tickMu sync.Mutex

	lifeMu     sync.Mutex
	started    bool
	stopped    bool
	lifeCtx    context.Context
	cancelLife context.CancelFunc
	timers     []context.CancelFunc
}

// NewStreamManager builds a stopped manager for station.
func NewStreamManager(station *models.Station, cfg config.BroadcastConfig, deps ManagerDeps) *StreamManager {
	if deps.Events == nil {
		deps.Events = events.Discard{}
	}
	bitrate := station.Bitrate
	if bitrate <= 0 {
		bitrate = cfg.Bitrate
	}

	m := &StreamManager{
		station: station,
		cfg:     cfg,
		deps:    deps,
		log:     logger.Station("stream_manager", station.Slug),
		bitrate: bitrate,
		state:   models.NewStationState(station.Slug, station.ManagedBy),
		window: NewSegmentWindow(WindowConfig{
			Slug:           station.Slug,
			TargetDuration: cfg.SegmentDuration,
			WindowSize:     cfg.WindowSize,
			MaxSegments:    cfg.MaxSegments,
			SafetyBuffer:   cfg.SafetyBuffer,
		}),
		pending:  NewPendingQueue(),
		memory:   NewSongMemory(cfg.MemorySize),
		breaker:  NewCircuitBreaker(cfg.RefillFailureThreshold, cfg.RefillResetTimeout),
		quantity: func() int { return 1 + rand.IntN(2) },
	}
	m.queue = NewFragmentQueue(FragmentQueueConfig{
		Slug:                station.Slug,
		RegularCapacity:     cfg.RegularCapacity,
		SaturationThreshold: cfg.SaturationThreshold,
		SaturationCooldown:  cfg.SaturationCooldown,
		HistorySize:         cfg.HistorySize,
		StarvationCooldown:  cfg.StarvationCooldown,
		DefaultBitrate:      bitrate,
	}, m.state, deps.Segmenter)

	m.state.Observe(m.onStatusChange)
	m.queue.OnStarving(m.onStarving)
	m.queue.OnConsumed(m.onConsumed)
	return m
}

// Slug returns the station slug
func (m *StreamManager) Slug() string { return m.station.Slug }

// Station returns the catalog row this manager broadcasts.
func (m *StreamManager) Station() *models.Station { return m.station }

// State returns the live station state.
func (m *StreamManager) State() *models.StationState { return m.state }

// Status returns the current station status
func (m *StreamManager) Status() models.StationStatus { return m.state.Status() }

// Alive reports whether the manager is started and not shut down.
func (m *StreamManager) Alive() bool { return m.alive.Load() }

// Start enters the initial status for the station's management mode and
// schedules the feed, slide and (for self-managed stations) refill timers.
// A manager cannot be restarted after Shutdown.
func (m *StreamManager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.stopped {
		return ErrStationStopped
	}
	if m.started {
		return ErrStationRunning
	}

	m.lifeCtx, m.cancelLife = context.WithCancel(context.WithoutCancel(ctx))
	m.alive.Store(true)
	m.state.SetStatus(m.station.ManagedBy.InitialStatus())

	jobs := []timerJob{
		{m.jobName("feed"), m.cfg.FeedInterval, m.cfg.FeedInterval, m.Feed},
		{m.jobName("slide"), m.cfg.SlideInterval, m.cfg.SlideInterval, m.Slide},
	}
	if m.station.ManagedBy.SelfManaged() {
		jobs = append(jobs, timerJob{m.jobName("self_managing"), m.cfg.SelfManagingDelay, m.cfg.SelfManagingInterval, m.selfManage})
	}

	for _, job := range jobs {
		cancel, err := m.deps.Runtime.Every(job.name, job.delay, job.interval, job.fn)
		if err != nil {
			m.stopTimersLocked()
			m.alive.Store(false)
			m.cancelLife()
			m.state.SetStatus(models.StatusOffline)
			return NewBroadcastError(ErrorTypeLifecycle, m.station.Slug, "schedule "+job.name, err)
		}
		m.timers = append(m.timers, cancel)
	}
	m.started = true

	m.log.Info().
		Str("managed_by", string(m.station.ManagedBy)).
		Str("status", m.state.Status().String()).
		Int("bitrate", m.bitrate).
		Msg("Station started")
	m.deps.Events.Publish(events.EventStationStarted, events.Payload{"station": m.station.Slug})
	return nil
}

type timerJob struct {
	name     string
	delay    time.Duration
	interval time.Duration
	fn       func(context.Context)
}

func (m *StreamManager) jobName(kind string) string {
	return m.station.Slug + ":" + kind
}

// Feed drips pending segments into the window and refills the pending stage
// from the fragment queue when it runs low.
func (m *StreamManager) Feed(_ context.Context) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if !m.alive.Load() {
		return
	}

	limit := 2 * m.cfg.WindowSize
	dripped := 0
	for dripped < m.cfg.DripPerTick && m.window.SegmentCount() < limit {
		seg, ok := m.pending.Pop()
		if !ok {
			break
		}
		if err := m.window.AddSegment(&seg); err != nil {
			m.log.Warn().Err(err).Uint64("sequence", seg.Sequence).Msg("Dropping segment rejected by window")
			continue
		}
		dripped++
	}

	if dripped > 0 {
		if current := m.state.Status(); current.IsStarting() {
			m.state.CompareAndSetStatus(current, models.StatusOnline)
		}
		m.deps.Metrics.SetWindowSegments(m.station.Slug, m.window.SegmentCount())
	}

	if m.pending.Len() < m.cfg.PendingRefillThreshold {
		if frag := m.queue.GetNextFragment(); frag != nil {
			m.stage(frag)
		}
	}
}

// stage assigns frag's segments one contiguous block of sequence numbers and
// queues them for dripping.
func (m *StreamManager) stage(frag *LiveFragment) {
	n := uint64(len(frag.Segments))
	if n == 0 {
		return
	}
	first := m.nextSeq.Add(n) - n

	staged := make([]Segment, len(frag.Segments))
	for i, seg := range frag.Segments {
		staged[i] = seg.withSequence(first + uint64(i))
	}
	m.pending.Push(staged...)

	m.log.Debug().
		Str("song", frag.Metadata.String()).
		Uint64("first_sequence", first).
		Uint64("segments", n).
		Msg("Fragment staged")
}

// Slide runs the high/low water sweep on the window.
func (m *StreamManager) Slide(_ context.Context) {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if !m.alive.Load() {
		return
	}

	if removed := m.window.Sweep(m.cfg.SweepHighWater, m.cfg.SweepLowWater); removed > 0 {
		m.log.Debug().Int("removed", removed).Int("remaining", m.window.SegmentCount()).Msg("Window swept")
		m.deps.Metrics.SetWindowSegments(m.station.Slug, m.window.SegmentCount())
	}
}

func (m *StreamManager) selfManage(ctx context.Context) {
	if m.queue.RegularLen() > m.cfg.SelfManagingTrigger {
		return
	}
	m.supply(ctx, m.quantity())
}

// onStarving runs under no lock; the fetch itself goes to the pool.
func (m *StreamManager) onStarving() {
	if !m.alive.Load() {
		return
	}
	if err := m.deps.Runtime.Submit(m.jobName("starvation_feed"), func(ctx context.Context) {
		m.supply(ctx, 1)
	}); err != nil {
		m.log.Debug().Err(err).Msg("Starvation feed not submitted")
	}
}

// supply fetches up to quantity songs and slices them as rotation content.
// Only one fetch runs at a time per station.
func (m *StreamManager) supply(ctx context.Context, quantity int) {
	if !m.alive.Load() || !m.fetching.CompareAndSwap(false, true) {
		return
	}
	defer m.fetching.Store(false)

	if !m.breaker.CanAttempt() {
		m.log.Debug().Msg("Refill skipped while supplier circuit is open")
		return
	}

	ctx, cancel := m.bind(ctx)
	defer cancel()

	songs, err := m.deps.Supplier.GetBrandSongs(ctx, m.station.ID, models.ContentSong, quantity, m.memory.Exclusions())
	if err != nil {
		m.refillFailed(NewBroadcastError(ErrorTypeSupplier, m.station.Slug, "fetch songs", err))
		return
	}
	m.memory.Remember(songs...)

	var sliceErr error
	added := 0
	for _, song := range songs {
		if !m.alive.Load() {
			return
		}
		err := m.AddFragmentToSlice(ctx, SliceRequest{
			Fragment:    song,
			Priority:    PriorityRotation,
			MergingType: models.MergingSongOnly,
		})
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrRegularQueueFull):
			m.refillSucceeded()
			return
		case errors.Is(err, ErrStationStopped):
			return
		case errors.Is(err, ErrNoSegments):
		default:
			sliceErr = err
			m.log.Warn().Err(err).Str("fragment_id", song.ID.String()).Msg("Fragment could not be added")
		}
	}

	if added == 0 && sliceErr != nil {
		m.refillFailed(sliceErr)
		return
	}
	m.refillSucceeded()
}

// bind derives a context that also ends when the station shuts down.
func (m *StreamManager) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	m.lifeMu.Lock()
	life := m.lifeCtx
	m.lifeMu.Unlock()
	if life == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *StreamManager) refillFailed(err error) {
	m.deps.Metrics.IncRefillFailure(m.station.Slug)
	opened := m.breaker.RecordFailure()
	m.log.Warn().Err(err).Int("consecutive_failures", m.breaker.Failures()).Msg("Refill failed")

	if opened && m.alive.Load() && m.state.Status() != models.StatusOffline {
		m.state.SetStatus(models.StatusSystemError)
		m.log.Error().Err(err).Msg("Refill keeps failing, station in system error")
	}
}

func (m *StreamManager) refillSucceeded() {
	m.breaker.RecordSuccess()
	if m.state.CompareAndSetStatus(models.StatusSystemError, models.StatusWarmingUp) {
		m.log.Info().Msg("Refill recovered")
	}
}

// AddFragmentToSlice slices and queues a catalog entry on this station.
func (m *StreamManager) AddFragmentToSlice(ctx context.Context, req SliceRequest) error {
	if !m.alive.Load() {
		return ErrStationStopped
	}
	err := m.queue.AddFragmentToSlice(ctx, req)
	switch {
	case err == nil:
		m.deps.Metrics.IncFragmentQueued(m.station.Slug, req.Priority.String())
	case errors.Is(err, ErrRegularQueueFull):
		m.deps.Metrics.IncFragmentRejected(m.station.Slug, "queue_full")
	case errors.Is(err, ErrNoSegments):
		m.deps.Metrics.IncFragmentRejected(m.station.Slug, "no_segments")
	case errors.Is(err, ErrStationStopped):
	default:
		m.deps.Metrics.IncFragmentRejected(m.station.Slug, "segmenter")
	}
	return err
}

func (m *StreamManager) onConsumed(frag *LiveFragment) {
	m.deps.Events.Publish(events.EventNowPlaying, events.Payload{
		"station":     m.station.Slug,
		"title":       frag.Metadata.Title,
		"artist":      frag.Metadata.Artist,
		"fragment_id": frag.SourceID.String(),
		"priority":    frag.Priority.String(),
		"duration":    frag.Duration(),
	})

	if m.deps.Plays == nil || frag.SourceID == uuid.Nil {
		return
	}
	at := time.Now()
	err := m.deps.Runtime.Submit(m.jobName("record_play"), func(ctx context.Context) {
		if err := m.deps.Plays.RecordPlay(ctx, frag.SourceID, at); err != nil {
			m.log.Warn().Err(err).Str("fragment_id", frag.SourceID.String()).Msg("Failed to record play")
		}
	})
	if err != nil {
		m.log.Debug().Err(err).Msg("Play record not submitted")
	}
}

func (m *StreamManager) onStatusChange(slug string, change models.StatusChange) {
	m.deps.Metrics.IncStatusChange(slug, change.To.String())
	m.deps.Events.Publish(events.EventStationStatus, events.Payload{
		"station": slug,
		"from":    change.From.String(),
		"to":      change.To.String(),
		"at":      change.At,
	})
	m.log.Info().Str("from", change.From.String()).Str("to", change.To.String()).Msg("Station status changed")
}

// Manifest renders the current HLS playlist.
func (m *StreamManager) Manifest() string {
	return m.window.Manifest()
}

// GetSegment looks up a live segment. A miss is normal.
func (m *StreamManager) GetSegment(seq uint64) (Segment, bool) {
	return m.window.GetSegment(seq)
}

// LastAccess is the time of the last segment request, zero if none.
func (m *StreamManager) LastAccess() time.Time {
	return m.window.LastAccess()
}

// SegmentCount is the number of segments in the live window
func (m *StreamManager) SegmentCount() int {
	return m.window.SegmentCount()
}

// Shutdown cancels the timers, clears every buffer and resets the sequence
// counter, then goes OFF_LINE. Safe to call more than once and while a refill
// is in flight.
func (m *StreamManager) Shutdown() {
	m.lifeMu.Lock()
	if m.stopped {
		m.lifeMu.Unlock()
		return
	}
	m.stopped = true
	m.alive.Store(false)
	m.stopTimersLocked()
	if m.cancelLife != nil {
		m.cancelLife()
	}
	m.lifeMu.Unlock()

	m.tickMu.Lock()
	m.queue.Close()
	m.pending.Clear()
	m.window.Clear()
	m.nextSeq.Store(0)
	m.tickMu.Unlock()

	m.state.SetStatus(models.StatusOffline)
	m.deps.Metrics.ForgetStation(m.station.Slug)
	m.deps.Events.Publish(events.EventStationStopped, events.Payload{"station": m.station.Slug})
	m.log.Info().Msg("Station stopped")
}

func (m *StreamManager) stopTimersLocked() {
	for _, cancel := range m.timers {
		cancel()
	}
	m.timers = nil
}
