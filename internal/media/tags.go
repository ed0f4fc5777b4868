package media

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// EmbeddedTags are the descriptive tags stored inside an audio file
type EmbeddedTags struct {
	Title  string
	Artist string
	Album  string
	Track  int
}

// ReadEmbeddedTags reads ID3, MP4, FLAC or Ogg tags from path
func ReadEmbeddedTags(path string) (*EmbeddedTags, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := m.Track()
	return &EmbeddedTags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Track:  track,
	}, nil
}
