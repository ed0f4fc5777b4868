package streaming

import (
	"time"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// StationStats is a point-in-time view of one running station.
type StationStats struct {
	Slug               string                `json:"slug"`
	Status             models.StationStatus  `json:"status"`
	ManagedBy          models.ManagedBy      `json:"managed_by"`
	AliveDuration      time.Duration         `json:"alive_duration"`
	History            []models.StatusChange `json:"history"`
	WindowSegments     int                   `json:"window_segments"`
	PendingSegments    int                   `json:"pending_segments"`
	PrioritizedQueue   int                   `json:"prioritized_queue"`
	RegularQueue       int                   `json:"regular_queue"`
	TotalBytes         int64                 `json:"total_bytes"`
	HighestSequence    *uint64               `json:"highest_sequence,omitempty"`
	LastRequested      *uint64               `json:"last_requested,omitempty"`
	LastAccess         *time.Time            `json:"last_access,omitempty"`
	SongSegments       map[string]int        `json:"song_segments"`
	PlayCounts         map[string]int        `json:"play_counts"`
	RecentlyPlayed     []string              `json:"recently_played"`
	RefillCircuitState string                `json:"refill_circuit_state"`
}

// Stats snapshots the station. Safe to call concurrently with the timers.
func (m *StreamManager) Stats() StationStats {
	now := time.Now()
	st := StationStats{
		Slug:               m.station.Slug,
		Status:             m.state.Status(),
		ManagedBy:          m.station.ManagedBy,
		AliveDuration:      m.state.AliveDuration(now),
		History:            m.state.History(),
		WindowSegments:     m.window.SegmentCount(),
		PendingSegments:    m.pending.Len(),
		PrioritizedQueue:   m.queue.PrioritizedLen(),
		RegularQueue:       m.queue.RegularLen(),
		TotalBytes:         m.window.TotalBytes(),
		SongSegments:       m.window.SongSegmentCounts(),
		PlayCounts:         m.queue.PlayCounts(),
		RefillCircuitState: m.breaker.State().String(),
	}

	if seq, ok := m.window.HighestSequence(); ok {
		st.HighestSequence = &seq
	}
	if seq, ok := m.window.LastRequested(); ok {
		st.LastRequested = &seq
	}
	if at := m.window.LastAccess(); !at.IsZero() {
		st.LastAccess = &at
	}

	history := m.queue.History()
	st.RecentlyPlayed = make([]string, 0, len(history))
	for _, frag := range history {
		st.RecentlyPlayed = append(st.RecentlyPlayed, frag.Metadata.String())
	}
	return st
}
