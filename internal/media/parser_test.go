package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantArtist string
		wantTitle  string
		wantTrack  *int
	}{
		{
			name:       "artist and title",
			path:       "/music/Miles Davis - So What.mp3",
			wantArtist: "Miles Davis",
			wantTitle:  "So What",
		},
		{
			name:       "track artist title",
			path:       "/music/03 - Nina Simone - Feeling Good.flac",
			wantArtist: "Nina Simone",
			wantTitle:  "Feeling Good",
			wantTrack:  intPtr(3),
		},
		{
			name:       "track title with artist album directory",
			path:       "/music/Miles Davis - Kind of Blue/01 - So What.flac",
			wantArtist: "Miles Davis",
			wantTitle:  "So What",
			wantTrack:  intPtr(1),
		},
		{
			name:       "dotted track number and underscores",
			path:       "/music/Bill Evans/07. Blue_in_Green.mp3",
			wantArtist: "Bill Evans",
			wantTitle:  "Blue in Green",
			wantTrack:  intPtr(7),
		},
		{
			name:       "bare name uses directory",
			path:       "/music/Jingles/station_id.ogg",
			wantArtist: "Jingles",
			wantTitle:  "station id",
		},
		{
			name:      "relative bare name",
			path:      "loop.wav",
			wantTitle: "loop",
		},
		{
			name:       "four digit number is not a track",
			path:       "/music/1999 - Prince.mp3",
			wantArtist: "1999",
			wantTitle:  "Prince",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFilename(tt.path)
			assert.Equal(t, tt.wantArtist, got.Artist)
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.wantTrack, got.Track)
			assert.Equal(t, tt.path, got.RawFilename)
		})
	}
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, isAudioFile("/a/b.MP3"))
	assert.True(t, isAudioFile("song.flac"))
	assert.True(t, isAudioFile("song.m4a"))
	assert.False(t, isAudioFile("cover.jpg"))
	assert.False(t, isAudioFile("notes"))
}

func intPtr(n int) *int { return &n }
