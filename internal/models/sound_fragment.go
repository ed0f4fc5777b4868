package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SoundFragment is one playable catalog entry belonging to a station.
type SoundFragment struct {
	ID           uuid.UUID   `json:"id" gorm:"type:text;primaryKey;column:id"`
	StationID    uuid.UUID   `json:"station_id" gorm:"type:text;not null;index;column:station_id"`
	Title        string      `json:"title" gorm:"type:text;not null;column:title"`
	Artist       string      `json:"artist" gorm:"type:text;not null;default:'';column:artist"`
	ContentType  ContentType `json:"content_type" gorm:"type:text;not null;default:SONG;column:content_type"`
	FilePath     string      `json:"file_path" gorm:"type:text;not null;column:file_path"`
	Duration     int64       `json:"duration" gorm:"type:integer;not null;default:0;column:duration"` // seconds
	PlayedCount  int64       `json:"played_count" gorm:"type:integer;not null;default:0;column:played_count"`
	LastPlayedAt *time.Time  `json:"last_played_at,omitempty" gorm:"type:datetime;column:last_played_at"`
	CreatedAt    time.Time   `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewSoundFragment creates a song entry with a generated ID.
func NewSoundFragment(stationID uuid.UUID, title, artist, filePath string) *SoundFragment {
	return &SoundFragment{
		ID:          uuid.New(),
		StationID:   stationID,
		Title:       title,
		Artist:      artist,
		ContentType: ContentSong,
		FilePath:    filePath,
		CreatedAt:   time.Now().UTC(),
	}
}

// DisplayName is the "Artist - Title" label used in manifests and stats.
func (f *SoundFragment) DisplayName() string {
	if f.Artist == "" {
		return f.Title
	}
	return fmt.Sprintf("%s - %s", f.Artist, f.Title)
}

// DurationString returns duration in MM:SS form.
func (f *SoundFragment) DurationString() string {
	return fmt.Sprintf("%02d:%02d", f.Duration/60, f.Duration%60)
}
