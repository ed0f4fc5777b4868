package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStationStatusPredicates(t *testing.T) {
	tests := []struct {
		status   StationStatus
		alive    bool
		starting bool
		active   bool
	}{
		{StatusOffline, false, false, false},
		{StatusWarmingUp, false, true, true},
		{StatusWaitingForCurator, false, true, true},
		{StatusIdle, false, false, true},
		{StatusOnline, true, false, true},
		{StatusQueueSaturated, true, false, true},
		{StatusSystemError, false, false, true},
		{StationStatus("BROKEN"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.alive, tt.status.IsAlive())
			assert.Equal(t, tt.starting, tt.status.IsStarting())
			assert.Equal(t, tt.active, tt.status.IsActive())
		})
	}
}

func TestSoundFragmentDisplayName(t *testing.T) {
	f := &SoundFragment{Title: "So What"}
	assert.Equal(t, "So What", f.DisplayName())
	f.Artist = "Miles Davis"
	assert.Equal(t, "Miles Davis - So What", f.DisplayName())
	f.Duration = 562
	assert.Equal(t, "09:22", f.DurationString())
}

func TestParseManagedBy(t *testing.T) {
	m, err := ParseManagedBy(" mix ")
	assert.NoError(t, err)
	assert.Equal(t, ManagedByMix, m)
	assert.True(t, m.IsValid())

	_, err = ParseManagedBy("robot")
	assert.Error(t, err)
	assert.False(t, ManagedBy("robot").IsValid())
}
