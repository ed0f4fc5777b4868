package media

import (
	"os"
	"slices"
	"strings"
)

// ValidationResult contains the result of media validation
type ValidationResult struct {
	Playable bool     // long enough and carries audio
	Unusual  bool     // codec outside the common set, slicing may be slow or fail
	Reasons  []string // Human-readable findings
	Readable bool     // File exists and is accessible
}

// minPlayableSeconds rejects jingles too short to fill a segment
const minPlayableSeconds = 1

var commonAudioCodecs = []string{"mp3", "aac", "flac", "vorbis", "opus", "alac", "pcm_s16le", "pcm_s24le"}

// ValidateAudio checks probe output for a usable catalog entry
func ValidateAudio(metadata *AudioMetadata) ValidationResult {
	result := ValidationResult{
		Playable: true,
		Reasons:  []string{},
		Readable: true, // Assumed readable if we have metadata
	}

	codec := strings.ToLower(metadata.Codec)
	if codec == "" {
		result.Unusual = true
		result.Reasons = append(result.Reasons, "audio codec information missing")
	} else if !slices.Contains(commonAudioCodecs, codec) {
		result.Unusual = true
		result.Reasons = append(result.Reasons, "audio codec '"+metadata.Codec+"' is uncommon")
	}

	if metadata.Duration < minPlayableSeconds {
		result.Playable = false
		result.Reasons = append(result.Reasons, "duration too short")
	}

	return result
}

// ValidateFile checks if a file exists and is readable
// Returns ValidationResult with Readable field set appropriately
func ValidateFile(filePath string) ValidationResult {
	result := ValidationResult{
		Reasons: []string{},
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			result.Reasons = append(result.Reasons, "file does not exist")
		} else if os.IsPermission(err) {
			result.Reasons = append(result.Reasons, "file is not readable (permission denied)")
		} else {
			result.Reasons = append(result.Reasons, "file access error: "+err.Error())
		}
		return result
	}

	if info.IsDir() {
		result.Reasons = append(result.Reasons, "path is a directory, not a file")
		return result
	}
	if info.Size() == 0 {
		result.Reasons = append(result.Reasons, "file is empty")
		return result
	}

	// Actually try to open the file to verify read permissions
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsPermission(err) {
			result.Reasons = append(result.Reasons, "file is not readable (permission denied)")
		} else {
			result.Reasons = append(result.Reasons, "cannot open file: "+err.Error())
		}
		return result
	}
	file.Close()

	result.Readable = true
	return result
}
