package streaming

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// Priority selects the queue lane a fragment is scheduled in.
type Priority int

const (
	// PriorityRotation is ordinary rotation content
	PriorityRotation Priority = iota
	// PriorityInterrupt is curator or AI submitted content that plays next
	PriorityInterrupt
)

// String returns the string representation of Priority
func (p Priority) String() string {
	if p == PriorityInterrupt {
		return "interrupt"
	}
	return "rotation"
}

// ParsePriority accepts "interrupt" or "rotation" (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rotation", "regular":
		return PriorityRotation, nil
	case "interrupt", "prioritized":
		return PriorityInterrupt, nil
	default:
		return PriorityRotation, fmt.Errorf("unknown priority %q", s)
	}
}

// SongMetadata describes the song a segment belongs to.
type SongMetadata struct {
	Title       string             `json:"title"`
	Artist      string             `json:"artist"`
	MergingType models.MergingType `json:"merging_type"`
}

// String renders "Artist - Title", or just the title.
func (m SongMetadata) String() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}

// Segment is one fixed-duration chunk of encoded audio. Segments are passed by
// value and never modified once their sequence is assigned.
type Segment struct {
	Sequence        uint64
	Timestamp       time.Time
	Data            []byte
	Duration        float64
	Size            int
	Bitrate         int
	SongName        string
	FragmentID      uuid.UUID
	FirstOfFragment bool
}

func (s Segment) withSequence(seq uint64) Segment {
	s.Sequence = seq
	return s
}

// LiveFragment is a sliced song waiting in, or consumed from, a queue.
type LiveFragment struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	Metadata    SongMetadata
	QueueNumber int64
	Priority    Priority
	Segments    []Segment

	arrival uint64
}

// Duration sums the segment durations.
func (f *LiveFragment) Duration() float64 {
	var total float64
	for _, s := range f.Segments {
		total += s.Duration
	}
	return total
}
