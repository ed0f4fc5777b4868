package streaming

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

// SongMemory remembers which catalog entries were recently handed to a
// station so the supplier can be asked to skip them.
type SongMemory struct {
	mu     sync.Mutex
	limit  int
	order  []uuid.UUID
	counts map[uuid.UUID]int
}

// NewSongMemory keeps at most limit distinct entries.
func NewSongMemory(limit int) *SongMemory {
	if limit < 1 {
		limit = 1
	}
	return &SongMemory{limit: limit, counts: make(map[uuid.UUID]int)}
}

// Remember records a selection. Re-selecting an entry moves it to the newest
// position and bumps its count.
func (m *SongMemory) Remember(fragments ...*models.SoundFragment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range fragments {
		if f == nil {
			continue
		}
		if _, seen := m.counts[f.ID]; seen {
			m.removeLocked(f.ID)
		}
		m.order = append(m.order, f.ID)
		m.counts[f.ID]++

		for len(m.order) > m.limit {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.counts, oldest)
		}
	}
}

func (m *SongMemory) removeLocked(id uuid.UUID) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// WasSelected reports whether id is remembered
func (m *SongMemory) WasSelected(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.counts[id]
	return ok
}

// SelectionCount returns how often id was selected while remembered
func (m *SongMemory) SelectionCount(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

// Exclusions returns the remembered IDs, oldest first.
func (m *SongMemory) Exclusions() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, len(m.order))
	copy(out, m.order)
	return out
}

// Reset forgets everything
func (m *SongMemory) Reset() {
	m.mu.Lock()
	m.order = nil
	m.counts = make(map[uuid.UUID]int)
	m.mu.Unlock()
}
