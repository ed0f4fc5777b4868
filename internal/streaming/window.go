package streaming

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

const (
	noRequest        = int64(-1)
	minSafetyBuffer  = 2
	manifestHeader   = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-ALLOW-CACHE:NO\n"
	segmentURIPrefix = "segments/"
)

var segmentNamePattern = regexp.MustCompile(`^(.+)_([0-9]+)\.ts$`)

// SegmentFileName is the file name a segment is served under.
func SegmentFileName(slug string, seq uint64) string {
	return fmt.Sprintf("%s_%d.ts", slug, seq)
}

// SegmentURI is the manifest-relative path of a segment.
func SegmentURI(slug string, seq uint64) string {
	return segmentURIPrefix + SegmentFileName(slug, seq)
}

// ParseSegmentName splits "<slug>_<seq>.ts" (optionally prefixed with a path).
func ParseSegmentName(name string) (string, uint64, error) {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	m := segmentNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSegmentName, name)
	}
	seq, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %w", ErrInvalidSegmentName, name, err)
	}
	return m[1], seq, nil
}

// WindowConfig sizes a SegmentWindow.
type WindowConfig struct {
	Slug           string
	TargetDuration int
	WindowSize     int
	MaxSegments    int
	SafetyBuffer   int
}

type windowSnapshot struct {
	segments   []Segment // ascending by sequence
	totalBytes int64
}

// SegmentWindow holds the playable segments of one station. Writers are
// serialized by a mutex and publish immutable snapshots; readers never lock.
type SegmentWindow struct {
	cfg WindowConfig
	log zerolog.Logger
	now func() time.Time

	writeMu       sync.Mutex
	snap          atomic.Pointer[windowSnapshot]
	lastRequested atomic.Int64
	lastAccess    atomic.Int64
}

// NewSegmentWindow creates an empty window.
func NewSegmentWindow(cfg WindowConfig) *SegmentWindow {
	if cfg.SafetyBuffer < minSafetyBuffer {
		cfg.SafetyBuffer = minSafetyBuffer
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	if cfg.MaxSegments < cfg.WindowSize {
		cfg.MaxSegments = cfg.WindowSize
	}

	w := &SegmentWindow{
		cfg: cfg,
		log: logger.Station("window", cfg.Slug),
		now: time.Now,
	}
	w.snap.Store(&windowSnapshot{})
	w.lastRequested.Store(noRequest)
	return w
}

// AddSegment trims by count, then inserts seg. Sequences must strictly increase.
func (w *SegmentWindow) AddSegment(seg *Segment) error {
	if seg == nil {
		w.log.Warn().Msg("Ignoring nil segment")
		return ErrNilSegment
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	cur := w.snap.Load()
	if n := len(cur.segments); n > 0 && seg.Sequence <= cur.segments[n-1].Sequence {
		w.log.Warn().
			Uint64("sequence", seg.Sequence).
			Uint64("highest", cur.segments[n-1].Sequence).
			Msg("Rejecting out of order segment")
		return fmt.Errorf("%w: %d", ErrSequenceRegression, seg.Sequence)
	}

	kept := w.countTrim(cur.segments)

	next := make([]Segment, len(kept), len(kept)+1)
	copy(next, kept)
	next = append(next, *seg)
	w.snap.Store(&windowSnapshot{segments: next, totalBytes: sumBytes(next)})

	if dropped := len(cur.segments) - len(kept); dropped > 0 {
		w.log.Debug().
			Int("dropped", dropped).
			Int64("last_requested", w.lastRequested.Load()).
			Msg("Trimmed window on insert")
	}
	return nil
}

// Trim applies the count-based policy on its own and returns how many
// segments were removed.
func (w *SegmentWindow) Trim() int {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	cur := w.snap.Load()
	kept := w.countTrim(cur.segments)
	removed := len(cur.segments) - len(kept)
	if removed > 0 {
		w.store(kept)
	}
	return removed
}

// countTrim drops everything older than the safety buffer behind the last
// requested sequence, once occupancy exceeds MaxSegments. With no request
// recorded it keeps everything.
func (w *SegmentWindow) countTrim(segs []Segment) []Segment {
	if len(segs) <= w.cfg.MaxSegments {
		return segs
	}
	last := w.lastRequested.Load()
	if last == noRequest {
		return segs
	}
	cutoff := last - int64(w.cfg.SafetyBuffer-1)
	if cutoff <= 0 {
		return segs
	}
	idx := sort.Search(len(segs), func(i int) bool {
		return segs[i].Sequence >= uint64(cutoff)
	})
	return segs[idx:]
}

// Sweep drops the oldest segments down to low once more than high are held.
// low is never below the manifest window, so listed segments survive.
func (w *SegmentWindow) Sweep(high, low int) int {
	if low < w.cfg.WindowSize {
		low = w.cfg.WindowSize
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	cur := w.snap.Load()
	n := len(cur.segments)
	if n <= high || n <= low {
		return 0
	}

	drop := n - low
	w.store(cur.segments[drop:])
	w.log.Debug().Int("dropped", drop).Int("remaining", low).Msg("Swept window")
	return drop
}

func (w *SegmentWindow) store(segs []Segment) {
	next := make([]Segment, len(segs))
	copy(next, segs)
	w.snap.Store(&windowSnapshot{segments: next, totalBytes: sumBytes(next)})
}

func sumBytes(segs []Segment) int64 {
	var total int64
	for i := range segs {
		total += int64(segs[i].Size)
	}
	return total
}

// GetSegment looks up seq. Only a hit moves the trim anchor, so a request
// for an evicted or future sequence cannot evict what readers still fetch.
// A miss is normal: the segment was evicted or is not produced yet.
func (w *SegmentWindow) GetSegment(seq uint64) (Segment, bool) {
	w.lastAccess.Store(w.now().UnixNano())

	segs := w.snap.Load().segments
	i := sort.Search(len(segs), func(i int) bool { return segs[i].Sequence >= seq })
	if i < len(segs) && segs[i].Sequence == seq {
		if seq <= math.MaxInt64 {
			w.lastRequested.Store(int64(seq))
		}
		return segs[i], true
	}
	return Segment{}, false
}

// Manifest renders the HLS media playlist for the current window.
func (w *SegmentWindow) Manifest() string {
	w.lastAccess.Store(w.now().UnixNano())

	segs := w.snap.Load().segments

	var b strings.Builder
	b.WriteString(manifestHeader)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", w.cfg.TargetDuration)

	if len(segs) == 0 {
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		return b.String()
	}

	highest := segs[len(segs)-1].Sequence
	var floor uint64
	if size := uint64(w.cfg.WindowSize); highest+1 > size {
		floor = highest + 1 - size
	}
	start := sort.Search(len(segs), func(i int) bool { return segs[i].Sequence >= floor })
	listed := segs[start:]
	if len(listed) > w.cfg.WindowSize {
		listed = listed[:w.cfg.WindowSize]
	}

	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", listed[0].Sequence)
	for i := range listed {
		s := &listed[i]
		fmt.Fprintf(&b, "#EXTINF:%s,%s\n%s\n",
			strconv.FormatFloat(s.Duration, 'f', -1, 64),
			titleField(s.SongName),
			SegmentURI(w.cfg.Slug, s.Sequence))
	}
	return b.String()
}

var titleReplacer = strings.NewReplacer("\r", " ", "\n", " ")

func titleField(name string) string {
	return titleReplacer.Replace(name)
}

// SegmentCount returns the number of retained segments
func (w *SegmentWindow) SegmentCount() int {
	return len(w.snap.Load().segments)
}

// TotalBytes returns the payload size of all retained segments
func (w *SegmentWindow) TotalBytes() int64 {
	return w.snap.Load().totalBytes
}

// HighestSequence returns the newest retained sequence, false when empty.
func (w *SegmentWindow) HighestSequence() (uint64, bool) {
	segs := w.snap.Load().segments
	if len(segs) == 0 {
		return 0, false
	}
	return segs[len(segs)-1].Sequence, true
}

// Sequences returns the retained sequence numbers, ascending.
func (w *SegmentWindow) Sequences() []uint64 {
	segs := w.snap.Load().segments
	out := make([]uint64, len(segs))
	for i := range segs {
		out[i] = segs[i].Sequence
	}
	return out
}

// SongSegmentCounts counts retained segments per song name.
func (w *SegmentWindow) SongSegmentCounts() map[string]int {
	segs := w.snap.Load().segments
	out := make(map[string]int)
	for i := range segs {
		out[segs[i].SongName]++
	}
	return out
}

// LastRequested returns the last requested sequence, false if none yet.
func (w *SegmentWindow) LastRequested() (uint64, bool) {
	v := w.lastRequested.Load()
	if v == noRequest {
		return 0, false
	}
	return uint64(v), true
}

// LastAccess is the time of the last manifest or segment read.
func (w *SegmentWindow) LastAccess() time.Time {
	v := w.lastAccess.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Clear drops every segment and forgets the reader position.
func (w *SegmentWindow) Clear() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.snap.Store(&windowSnapshot{})
	w.lastRequested.Store(noRequest)
}
