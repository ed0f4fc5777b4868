package segmenter

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
)

// ErrNotMediaPlaylist is returned when FFmpeg wrote a master playlist.
var ErrNotMediaPlaylist = errors.New("not a media playlist")

// playlistEntry is one segment listed by FFmpeg
type playlistEntry struct {
	File     string
	Duration float64
}

// parsePlaylist reads the segment list of a VOD media playlist in order.
func parsePlaylist(r io.Reader) ([]playlistEntry, error) {
	pl, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, ErrNotMediaPlaylist
	}
	media, ok := pl.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, ErrNotMediaPlaylist
	}

	entries := make([]playlistEntry, 0, len(media.Segments))
	for _, seg := range media.Segments {
		if seg == nil || seg.URI == "" {
			continue
		}
		name := path.Base(strings.ReplaceAll(seg.URI, "\\", "/"))
		entries = append(entries, playlistEntry{File: name, Duration: seg.Duration})
	}
	return entries, nil
}
