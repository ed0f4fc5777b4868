package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video"},
    {"index": 1, "codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100",
     "channels": 2, "bit_rate": "320000", "duration": "214.752000"}
  ],
  "format": {
    "filename": "so_what.mp3", "format_name": "mp3", "duration": "214.800000",
    "size": "8593408", "bit_rate": "320053",
    "tags": {"TITLE": "So What", "artist": " Miles Davis "}
  }
}`

func TestExtractMetadataFromProbeOutput(t *testing.T) {
	var result FFprobeResult
	require.NoError(t, json.Unmarshal([]byte(sampleProbeJSON), &result))

	meta, err := extractMetadata(&result)
	require.NoError(t, err)
	assert.Equal(t, int64(214), meta.Duration)
	assert.Equal(t, "mp3", meta.Codec)
	assert.Equal(t, 320000, meta.BitRate)
	assert.Equal(t, 44100, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, int64(8593408), meta.FileSize)
	assert.Equal(t, "So What", meta.Title)
	assert.Equal(t, "Miles Davis", meta.Artist)
}

func TestExtractMetadata(t *testing.T) {
	tests := []struct {
		name         string
		result       *FFprobeResult
		wantErr      bool
		wantDuration int64
		wantBitRate  int
	}{
		{
			name: "duration from format only",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "audio", CodecName: "aac"}},
				Format:  Format{Duration: "61.9", BitRate: "128000"},
			},
			wantDuration: 61,
			wantBitRate:  128000,
		},
		{
			name: "no audio stream",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "video", CodecName: "h264", Duration: "10"}},
				Format:  Format{Duration: "10"},
			},
			wantErr: true,
		},
		{
			name: "no duration",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "audio", CodecName: "mp3"}},
			},
			wantErr: true,
		},
		{
			name: "unparseable duration",
			result: &FFprobeResult{
				Streams: []Stream{{CodecType: "audio", CodecName: "mp3", Duration: "N/A"}},
				Format:  Format{Duration: "N/A"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := extractMetadata(tt.result)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDuration, meta.Duration)
			assert.Equal(t, tt.wantBitRate, meta.BitRate)
		})
	}
}
