// Package segmenter slices audio files into HLS MPEG-TS segments with FFmpeg.
package segmenter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

const (
	audioChannels   = 2
	playlistName    = "index.m3u8"
	segmentPattern  = "seg_%05d.ts"
	audioCodec      = "aac"
	defaultLogLevel = "error"
)

// Common errors
var (
	ErrEmptyInputFile         = errors.New("input file cannot be empty")
	ErrEmptyOutputDir         = errors.New("output directory cannot be empty")
	ErrInvalidBitrate         = errors.New("bitrate must be positive")
	ErrInvalidSegmentDuration = errors.New("segment duration must be positive")
)

// SliceParams describes one FFmpeg run producing a VOD HLS rendition.
type SliceParams struct {
	InputFile       string // Path to the source audio
	OutputDir       string // Directory receiving index.m3u8 and the segments
	Bitrate         int    // Audio bitrate in bits per second
	SegmentDuration int    // Target segment length in seconds
}

// Command is a built FFmpeg invocation
type Command struct {
	Args []string // Command arguments (without "ffmpeg" itself)
}

// BuildSliceCommand builds the FFmpeg arguments for params.
func BuildSliceCommand(params SliceParams) (*Command, error) {
	if err := validateSliceParams(params); err != nil {
		return nil, err
	}

	args := make([]string, 0, 32)
	args = append(args, buildInputArgs(params)...)
	args = append(args, buildAudioEncodeArgs(params.Bitrate)...)
	args = append(args, buildHLSArgs(params)...)
	args = append(args, PlaylistPath(params.OutputDir))

	return &Command{Args: args}, nil
}

func validateSliceParams(params SliceParams) error {
	if params.InputFile == "" {
		return ErrEmptyInputFile
	}
	if params.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if params.Bitrate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBitrate, params.Bitrate)
	}
	if params.SegmentDuration <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSegmentDuration, params.SegmentDuration)
	}
	return nil
}

func buildInputArgs(params SliceParams) []string {
	return []string{
		"-hide_banner",
		"-loglevel", defaultLogLevel,
		"-nostdin",
		"-y",
		"-i", params.InputFile,
		// drop cover art and any other non-audio streams
		"-vn",
		"-map", "0:a:0",
	}
}

func buildAudioEncodeArgs(bitrate int) []string {
	return []string{
		"-c:a", audioCodec,
		"-b:a", strconv.Itoa(bitrate/1000) + "k",
		"-ac", strconv.Itoa(audioChannels),
	}
}

func buildHLSArgs(params SliceParams) []string {
	return []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(params.SegmentDuration),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(params.OutputDir, segmentPattern),
	}
}

// PlaylistPath is where FFmpeg writes the rendition playlist inside dir.
func PlaylistPath(dir string) string {
	return filepath.Join(dir, playlistName)
}
