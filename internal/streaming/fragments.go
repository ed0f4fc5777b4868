package streaming

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// Segmenter turns an audio file into fixed-duration encoded segments, one
// list per requested bitrate. An empty result without error means the input
// had nothing usable.
type Segmenter interface {
	Slice(ctx context.Context, meta SongMetadata, filePath string, bitrates []int) (map[int][]Segment, error)
}

// StatusController is the slice of station state the queue may drive.
type StatusController interface {
	Status() models.StationStatus
	SetStatus(next models.StationStatus) bool
	CompareAndSetStatus(from, next models.StationStatus) bool
}

// FragmentQueueConfig bounds the two lanes and their backpressure.
type FragmentQueueConfig struct {
	Slug                string
	RegularCapacity     int
	SaturationThreshold int
	SaturationCooldown  time.Duration
	HistorySize         int
	StarvationCooldown  time.Duration
	DefaultBitrate      int
}

// SliceRequest is a catalog entry to slice and schedule.
type SliceRequest struct {
	Fragment    *models.SoundFragment
	Priority    Priority
	Bitrate     int
	MergingType models.MergingType
	// QueueNumber orders the regular lane; zero assigns the arrival ordinal.
	QueueNumber int64
}

// FragmentQueue picks the next fragment to play. Interrupt content is served
// FIFO ahead of rotation content; rotation content is served by queue number.
type FragmentQueue struct {
	cfg       FragmentQueueConfig
	status    StatusController
	segmenter Segmenter
	log       zerolog.Logger
	now       func() time.Time

	mu                     sync.Mutex
	closed                 bool
	prioritized            []*LiveFragment
	regular                regularLane
	history                []*LiveFragment
	arrivals               uint64
	saturatedAt            time.Time
	draining               bool
	regularSinceSaturation bool
	lastStarvationFeed     time.Time
	playCounts             map[string]int
	onStarving             func()
	onConsumed             func(*LiveFragment)
}

// NewFragmentQueue creates an empty queue driving status.
func NewFragmentQueue(cfg FragmentQueueConfig, status StatusController, segmenter Segmenter) *FragmentQueue {
	if cfg.HistorySize < 1 {
		cfg.HistorySize = 1
	}
	return &FragmentQueue{
		cfg:        cfg,
		status:     status,
		segmenter:  segmenter,
		log:        logger.Station("fragment_queue", cfg.Slug),
		now:        time.Now,
		playCounts: make(map[string]int),
	}
}

// OnStarving installs the callback fired, at most once per starvation
// cooldown, when both lanes are empty. It runs without the queue lock and
// must not block.
func (q *FragmentQueue) OnStarving(fn func()) {
	q.mu.Lock()
	q.onStarving = fn
	q.mu.Unlock()
}

// OnConsumed installs the callback fired for every fragment handed out.
// It runs without the queue lock and must not block.
func (q *FragmentQueue) OnConsumed(fn func(*LiveFragment)) {
	q.mu.Lock()
	q.onConsumed = fn
	q.mu.Unlock()
}

// AddFragmentToSlice slices req.Fragment and schedules it. It returns
// ErrRegularQueueFull when rotation content does not fit, ErrNoSegments when
// slicing yields nothing and a segmenter BroadcastError on failure. Nothing is
// enqueued on error.
func (q *FragmentQueue) AddFragmentToSlice(ctx context.Context, req SliceRequest) error {
	if req.Fragment == nil {
		return ErrNilFragment
	}
	if err := q.admissible(req.Priority); err != nil {
		return err
	}

	bitrate := req.Bitrate
	if bitrate <= 0 {
		bitrate = q.cfg.DefaultBitrate
	}
	meta := SongMetadata{Title: req.Fragment.Title, Artist: req.Fragment.Artist, MergingType: req.MergingType}

	sliced, err := q.segmenter.Slice(ctx, meta, req.Fragment.FilePath, []int{bitrate})
	if err != nil {
		return NewBroadcastError(ErrorTypeSegmenter, q.cfg.Slug,
			fmt.Sprintf("slicing %q failed", req.Fragment.FilePath), err)
	}
	segs := sliced[bitrate]
	if len(segs) == 0 {
		q.log.Warn().
			Str("fragment_id", req.Fragment.ID.String()).
			Str("file", req.Fragment.FilePath).
			Msg("Slicing produced no segments, skipping fragment")
		return ErrNoSegments
	}

	frag := newLiveFragment(req, meta, segs)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrStationStopped
	}

	q.arrivals++
	frag.arrival = q.arrivals
	if frag.QueueNumber == 0 {
		frag.QueueNumber = int64(q.arrivals)
	}

	if frag.Priority == PriorityInterrupt {
		q.prioritized = append(q.prioritized, frag)
		if len(q.prioritized) >= q.cfg.SaturationThreshold && q.status.Status() != models.StatusOffline {
			if q.status.SetStatus(models.StatusQueueSaturated) {
				q.saturatedAt = q.now()
				q.draining = false
				q.regularSinceSaturation = false
				q.log.Info().Int("prioritized", len(q.prioritized)).Msg("Queue saturated")
			}
		}
	} else {
		if q.regular.Len() >= q.cfg.RegularCapacity {
			return ErrRegularQueueFull
		}
		heap.Push(&q.regular, frag)
	}

	q.log.Debug().
		Str("title", meta.Title).
		Str("priority", frag.Priority.String()).
		Int64("queue_number", frag.QueueNumber).
		Int("segments", len(frag.Segments)).
		Msg("Fragment queued")
	return nil
}

// admissible rejects rotation content before slicing when the lane is full.
func (q *FragmentQueue) admissible(p Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrStationStopped
	}
	if p == PriorityRotation && q.regular.Len() >= q.cfg.RegularCapacity {
		return ErrRegularQueueFull
	}
	return nil
}

func newLiveFragment(req SliceRequest, meta SongMetadata, segs []Segment) *LiveFragment {
	id := uuid.New()
	name := meta.String()
	owned := make([]Segment, len(segs))
	for i, s := range segs {
		s.FragmentID = id
		s.SongName = name
		s.FirstOfFragment = i == 0
		owned[i] = s
	}
	return &LiveFragment{
		ID:          id,
		SourceID:    req.Fragment.ID,
		Metadata:    meta,
		QueueNumber: req.QueueNumber,
		Priority:    req.Priority,
		Segments:    owned,
	}
}

// GetNextFragment returns the fragment to play next, or nil when nothing is
// ready. Status changes are decided under the same lock as the pop.
func (q *FragmentQueue) GetNextFragment() *LiveFragment {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return nil
	}

	var picked *LiveFragment
	starving := false

	if len(q.prioritized) > 0 {
		picked = q.prioritized[0]
		q.prioritized[0] = nil
		q.prioritized = q.prioritized[1:]
	} else {
		q.maybeReleaseLocked()

		if q.regular.Len() > 0 {
			picked = heap.Pop(&q.regular).(*LiveFragment)
			if q.draining {
				q.regularSinceSaturation = true
				q.draining = false
			}
		} else if now := q.now(); q.lastStarvationFeed.IsZero() || now.Sub(q.lastStarvationFeed) >= q.cfg.StarvationCooldown {
			q.lastStarvationFeed = now
			starving = true
		}
	}

	if picked != nil {
		q.recordLocked(picked)
	}
	onStarving, onConsumed := q.onStarving, q.onConsumed
	q.mu.Unlock()

	if starving {
		q.log.Debug().Msg("Both queues empty, requesting starvation feed")
		if onStarving != nil {
			onStarving()
		}
	}
	if picked != nil && onConsumed != nil {
		onConsumed(picked)
	}
	return picked
}

// maybeReleaseLocked leaves saturation once the cooldown passed or the next
// pop comes from the regular lane. Caller holds q.mu with prioritized empty.
func (q *FragmentQueue) maybeReleaseLocked() {
	if q.status.Status() != models.StatusQueueSaturated {
		return
	}
	cooled := q.now().Sub(q.saturatedAt) >= q.cfg.SaturationCooldown
	if !cooled && q.regular.Len() == 0 {
		return
	}
	if q.status.CompareAndSetStatus(models.StatusQueueSaturated, models.StatusOnline) {
		q.draining = true
		q.log.Info().Bool("cooldown_elapsed", cooled).Msg("Queue saturation released")
	}
}

func (q *FragmentQueue) recordLocked(f *LiveFragment) {
	q.history = append(q.history, f)
	if len(q.history) > q.cfg.HistorySize {
		q.history[0] = nil
		q.history = q.history[1:]
	}
	q.playCounts[f.Metadata.String()]++
}

// PrioritizedLen returns the interrupt lane length
func (q *FragmentQueue) PrioritizedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.prioritized)
}

// RegularLen returns the rotation lane length
func (q *FragmentQueue) RegularLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.regular.Len()
}

// History returns the recently consumed fragments, oldest first.
func (q *FragmentQueue) History() []*LiveFragment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*LiveFragment, len(q.history))
	copy(out, q.history)
	return out
}

// PlayCounts returns how many times each song was handed out.
func (q *FragmentQueue) PlayCounts() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.playCounts))
	for k, v := range q.playCounts {
		out[k] = v
	}
	return out
}

// RegularPlayedSinceSaturation reports whether rotation resumed after the
// last saturation was released.
func (q *FragmentQueue) RegularPlayedSinceSaturation() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.regularSinceSaturation
}

// Close empties both lanes and the history and rejects further work.
func (q *FragmentQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.prioritized = nil
	q.regular = nil
	q.history = nil
}

// regularLane is a min-heap on (QueueNumber, arrival).
type regularLane []*LiveFragment

func (l regularLane) Len() int { return len(l) }

func (l regularLane) Less(i, j int) bool {
	if l[i].QueueNumber != l[j].QueueNumber {
		return l[i].QueueNumber < l[j].QueueNumber
	}
	return l[i].arrival < l[j].arrival
}

func (l regularLane) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

func (l *regularLane) Push(x any) { *l = append(*l, x.(*LiveFragment)) }

func (l *regularLane) Pop() any {
	old := *l
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*l = old[:n-1]
	return item
}
