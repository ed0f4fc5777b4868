package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found")
	ErrFileNotFound    = errors.New("file not found or not readable")
	ErrInvalidFile     = errors.New("invalid or corrupted audio file")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// FFprobeResult represents the top-level JSON output from FFprobe
type FFprobeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream of the probed file
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // "audio", "video" (cover art) ...
	Duration   string `json:"duration,omitempty"`
	BitRate    string `json:"bit_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
}

// Format represents the container information
type Format struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// AudioMetadata is the subset of probe output the catalog stores
type AudioMetadata struct {
	Duration   int64 // seconds
	Codec      string
	BitRate    int
	SampleRate int
	Channels   int
	FileSize   int64
	Title      string // from container tags, may be empty
	Artist     string
}

// Prober extracts audio metadata from a file
type Prober interface {
	Probe(ctx context.Context, filePath string) (*AudioMetadata, error)
}

// FFprobe runs the ffprobe binary
type FFprobe struct {
	Binary string
}

// Probe executes ffprobe on the given file and returns its metadata
func (p FFprobe) Probe(ctx context.Context, filePath string) (*AudioMetadata, error) {
	binary := p.Binary
	if binary == "" {
		binary = "ffprobe"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, ErrFFprobeNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, ffprobeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}

	var result FFprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	metadata, err := extractMetadata(&result)
	if err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("file_path", filePath).
		Int64("duration", metadata.Duration).
		Str("codec", metadata.Codec).
		Int("bit_rate", metadata.BitRate).
		Msg("Probed audio file")

	return metadata, nil
}

// extractMetadata converts FFprobeResult to AudioMetadata
func extractMetadata(result *FFprobeResult) (*AudioMetadata, error) {
	var audio *Stream
	for i := range result.Streams {
		if result.Streams[i].CodecType == "audio" {
			audio = &result.Streams[i]
			break
		}
	}
	if audio == nil {
		return nil, fmt.Errorf("%w: no audio stream", ErrInvalidFile)
	}

	metadata := &AudioMetadata{
		Codec:    audio.CodecName,
		Channels: audio.Channels,
	}
	metadata.SampleRate, _ = strconv.Atoi(audio.SampleRate)

	// Stream values win over container values when present.
	metadata.BitRate = atoiFirst(audio.BitRate, result.Format.BitRate)
	if d := parseSeconds(audio.Duration); d > 0 {
		metadata.Duration = d
	} else {
		metadata.Duration = parseSeconds(result.Format.Duration)
	}
	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		metadata.FileSize = size
	}

	for k, v := range result.Format.Tags {
		switch strings.ToLower(k) {
		case "title":
			metadata.Title = strings.TrimSpace(v)
		case "artist":
			metadata.Artist = strings.TrimSpace(v)
		}
	}

	if metadata.Duration == 0 {
		return nil, fmt.Errorf("%w: could not determine duration", ErrInvalidFile)
	}
	return metadata, nil
}

func parseSeconds(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f)
}

func atoiFirst(values ...string) int {
	for _, v := range values {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
