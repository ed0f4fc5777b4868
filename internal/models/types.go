package models

import (
	"fmt"
	"strings"
)

// StationStatus is the broadcast lifecycle state of a station.
type StationStatus string

// Station statuses
const (
	StatusOffline           StationStatus = "OFF_LINE"
	StatusWarmingUp         StationStatus = "WARMING_UP"
	StatusWaitingForCurator StationStatus = "WAITING_FOR_CURATOR"
	StatusIdle              StationStatus = "IDLE"
	StatusOnline            StationStatus = "ON_LINE"
	StatusQueueSaturated    StationStatus = "QUEUE_SATURATED"
	StatusSystemError       StationStatus = "SYSTEM_ERROR"
)

var validStatuses = map[StationStatus]struct{}{
	StatusOffline:           {},
	StatusWarmingUp:         {},
	StatusWaitingForCurator: {},
	StatusIdle:              {},
	StatusOnline:            {},
	StatusQueueSaturated:    {},
	StatusSystemError:       {},
}

func (s StationStatus) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s StationStatus) IsValid() bool {
	_, ok := validStatuses[s]
	return ok
}

// IsAlive reports whether listeners are being served live content.
func (s StationStatus) IsAlive() bool {
	return s == StatusOnline || s == StatusQueueSaturated
}

// IsStarting reports whether the station is up but has not gone on air yet.
func (s StationStatus) IsStarting() bool {
	return s == StatusWarmingUp || s == StatusWaitingForCurator
}

// IsActive reports whether the station is running in any state but off line.
func (s StationStatus) IsActive() bool {
	return s.IsValid() && s != StatusOffline
}

// ManagedBy tells who decides what a station plays.
type ManagedBy string

// Management modes
const (
	ManagedByItself ManagedBy = "ITSELF"
	ManagedByMix    ManagedBy = "MIX"
	ManagedByDJ     ManagedBy = "DJ"
)

// InitialStatus is the status a freshly started station enters.
func (m ManagedBy) InitialStatus() StationStatus {
	if m == ManagedByItself {
		return StatusWarmingUp
	}
	return StatusWaitingForCurator
}

// SelfManaged reports whether the station refills its own rotation.
func (m ManagedBy) SelfManaged() bool {
	return m == ManagedByItself || m == ManagedByMix
}

// IsValid reports whether m is a known management mode.
func (m ManagedBy) IsValid() bool {
	switch m {
	case ManagedByItself, ManagedByMix, ManagedByDJ:
		return true
	}
	return false
}

// ParseManagedBy parses a management mode case-insensitively.
func ParseManagedBy(s string) (ManagedBy, error) {
	m := ManagedBy(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown management mode %q", s)
	}
	return m, nil
}

// MergingType describes how a fragment was assembled upstream.
type MergingType string

// Merging types
const (
	MergingNotMixed      MergingType = "NOT_MIXED"
	MergingSongOnly      MergingType = "SONG_ONLY"
	MergingIntroSong     MergingType = "INTRO_SONG"
	MergingIntroPlusSong MergingType = "INTRO_PLUS_SONG"
	MergingSongIntroSong MergingType = "SONG_INTRO_SONG"
	MergingFillerSong    MergingType = "FILLER_SONG"
)

// ContentType classifies catalog entries.
type ContentType string

// Content types
const (
	ContentSong          ContentType = "SONG"
	ContentAdvertisement ContentType = "ADVERTISEMENT"
	ContentJingle        ContentType = "JINGLE"
)
