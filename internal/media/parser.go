package media

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParseResult contains metadata derived from a file path
type ParseResult struct {
	Artist      string // empty when no artist could be derived
	Title       string
	Track       *int // nil if the name carries no track number
	RawFilename string
}

// Patterns for matching artist, title and track in filenames
var (
	// "01 - Artist - Title"
	patternTrackArtistTitle = regexp.MustCompile(`^(\d{1,3})\s*[-.]\s*(.+?)\s+-\s+(.+)$`)

	// "Artist - Title"
	patternArtistTitle = regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)

	// "01 - Title", "01. Title", "01 Title"
	patternTrackTitle = regexp.MustCompile(`^(\d{1,3})(?:\s*[-.]\s*|\s+)(.+)$`)

	// Directory named "Artist - Album"
	patternArtistAlbumDir = regexp.MustCompile(`^(.+?)\s+-\s+.+$`)

	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// ParseFilename extracts artist, title and track from an audio file path.
// Names without an artist fall back to the containing directory.
func ParseFilename(fullPath string) ParseResult {
	result := ParseResult{RawFilename: fullPath}

	filename := filepath.Base(fullPath)
	name := cleanName(strings.TrimSuffix(filename, filepath.Ext(filename)))

	if m := patternTrackArtistTitle.FindStringSubmatch(name); m != nil {
		result.Track = parseInt(m[1])
		result.Artist = m[2]
		result.Title = m[3]
		return result
	}

	if m := patternTrackTitle.FindStringSubmatch(name); m != nil {
		result.Track = parseInt(m[1])
		result.Title = m[2]
		result.Artist = artistFromDir(filepath.Dir(fullPath))
		return result
	}

	if m := patternArtistTitle.FindStringSubmatch(name); m != nil {
		result.Artist = m[1]
		result.Title = m[2]
		return result
	}

	result.Title = name
	result.Artist = artistFromDir(filepath.Dir(fullPath))
	return result
}

func artistFromDir(dir string) string {
	base := filepath.Base(dir)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return ""
	}
	base = cleanName(base)
	if m := patternArtistAlbumDir.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return base
}

// cleanName turns separator characters into spaces
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
