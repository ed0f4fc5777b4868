package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/config"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/events"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

func makeSegment(seq uint64, song string) *Segment {
	return &Segment{
		Sequence:  seq,
		Timestamp: time.Unix(int64(seq), 0),
		Data:      []byte(fmt.Sprintf("seg-%d", seq)),
		Duration:  10,
		Size:      6,
		SongName:  song,
	}
}

// fakeSegmenter returns segments per file path; missing paths yield count
// default segments.
type fakeSegmenter struct {
	mu       sync.Mutex
	perSong  int
	counts   map[string]int
	failures map[string]error
	calls    int

	// when release is set, Slice signals entered and waits on release
	entered chan struct{}
	release chan struct{}
}

func newFakeSegmenter(perSong int) *fakeSegmenter {
	return &fakeSegmenter{perSong: perSong, counts: map[string]int{}, failures: map[string]error{}}
}

func (f *fakeSegmenter) Slice(_ context.Context, meta SongMetadata, filePath string, bitrates []int) (map[int][]Segment, error) {
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failures[filePath]; err != nil {
		return nil, err
	}
	n, ok := f.counts[filePath]
	if !ok {
		n = f.perSong
	}
	out := make(map[int][]Segment, len(bitrates))
	for _, br := range bitrates {
		segs := make([]Segment, n)
		for i := range segs {
			segs[i] = Segment{
				Data:     []byte(fmt.Sprintf("%s-%d", meta.Title, i)),
				Duration: 10,
				Size:     100,
				Bitrate:  br,
			}
		}
		out[br] = segs
	}
	return out, nil
}

// hold makes the next Slice calls block until the returned func is called.
func (f *fakeSegmenter) hold() (entered <-chan struct{}, release func()) {
	f.entered = make(chan struct{}, 1)
	f.release = make(chan struct{})
	return f.entered, func() { close(f.release) }
}

func (f *fakeSegmenter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSupplier struct {
	mu       sync.Mutex
	songs    []*models.SoundFragment
	err      error
	requests []supplierRequest
}

type supplierRequest struct {
	quantity int
	exclude  []uuid.UUID
}

func (f *fakeSupplier) GetBrandSongs(_ context.Context, _ uuid.UUID, _ models.ContentType, quantity int, exclude []uuid.UUID) ([]*models.SoundFragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, supplierRequest{quantity: quantity, exclude: exclude})
	if f.err != nil {
		return nil, f.err
	}
	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []*models.SoundFragment
	for _, s := range f.songs {
		if len(out) == quantity {
			break
		}
		if !excluded[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSupplier) Requests() []supplierRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]supplierRequest(nil), f.requests...)
}

type fakePlays struct {
	mu     sync.Mutex
	played []uuid.UUID
}

func (f *fakePlays) RecordPlay(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	f.played = append(f.played, id)
	f.mu.Unlock()
	return nil
}

func (f *fakePlays) Played() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.played...)
}

// fakeRuntime records periodic jobs and runs submitted tasks inline.
type fakeRuntime struct {
	mu        sync.Mutex
	jobs      map[string]func(context.Context)
	cancelled map[string]bool
	submitted []string
	everyErr  error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{jobs: map[string]func(context.Context){}, cancelled: map[string]bool{}}
}

func (r *fakeRuntime) Every(name string, _, _ time.Duration, fn func(context.Context)) (context.CancelFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.everyErr != nil {
		return nil, r.everyErr
	}
	r.jobs[name] = fn
	return func() {
		r.mu.Lock()
		r.cancelled[name] = true
		r.mu.Unlock()
	}, nil
}

func (r *fakeRuntime) Submit(name string, fn func(context.Context)) error {
	r.mu.Lock()
	r.submitted = append(r.submitted, name)
	r.mu.Unlock()
	fn(context.Background())
	return nil
}

func (r *fakeRuntime) Job(name string) func(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[name]
}

func (r *fakeRuntime) Cancelled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[name]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventType
}

func (p *recordingPublisher) Publish(t events.EventType, _ events.Payload) {
	p.mu.Lock()
	p.events = append(p.events, t)
	p.mu.Unlock()
}

func (p *recordingPublisher) Count(t events.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == t {
			n++
		}
	}
	return n
}

type mapCatalog map[string]*models.Station

func (c mapCatalog) GetStation(_ context.Context, slug string) (*models.Station, error) {
	if s, ok := c[slug]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("station %q: %w", slug, ErrStationNotFound)
}

func testBroadcastConfig() config.BroadcastConfig {
	cfg := config.Defaults()
	cfg.WindowSize = 4
	cfg.MaxSegments = 8
	cfg.SweepHighWater = 10
	cfg.SweepLowWater = 6
	cfg.PendingRefillThreshold = 3
	return cfg
}

func newSong(stationID uuid.UUID, title string) *models.SoundFragment {
	return models.NewSoundFragment(stationID, title, "Artist", "/music/"+title+".mp3")
}

var errSupplierDown = errors.New("catalog unavailable")
