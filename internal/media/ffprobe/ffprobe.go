// Package ffprobe wraps the ffprobe child process, turning its JSON output
// into the container/stream facts C2 needs before C3's tempo estimation and
// C8's record assembly.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"audiolib/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

// Facts is the subset of TechnicalFacts this adapter can derive from the
// container alone — BPM is estimated separately by the tempo package.
type Facts struct {
	DurationSec  float64
	SampleRateHz int
	Channels     int
	BitRate      int64
	Codec        string
}

// Inspect runs ffprobe against path and returns its parsed container facts.
// A non-zero exit or invalid JSON is fatal for the track (ProbeFailed).
func Inspect(ctx context.Context, binary, path string) (Facts, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Facts{}, services.Wrap(services.ErrValidation, "probe", "inspect", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Facts{}, services.Wrap(services.ErrExternalTool, "probe", "inspect",
			fmt.Sprintf("ffprobe failed: %s", strings.TrimSpace(string(output))), err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Facts{}, services.Wrap(services.ErrExternalTool, "probe", "inspect", "ffprobe emitted invalid json", err)
	}

	stream, ok := primaryAudioStream(result.Streams)
	if !ok {
		return Facts{}, services.Wrap(services.ErrExternalTool, "probe", "inspect", "no audio stream found", errors.New("probe failed"))
	}

	return Facts{
		DurationSec:  parseFloat(result.Format.Duration),
		SampleRateHz: parseInt(stream.SampleRate),
		Channels:     stream.Channels,
		BitRate:      int64(parseFloat(result.Format.BitRate)),
		Codec:        stream.CodecName,
	}, nil
}

func primaryAudioStream(streams []Stream) (Stream, bool) {
	for _, s := range streams {
		if strings.EqualFold(s.CodecType, "audio") {
			return s, true
		}
	}
	return Stream{}, false
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}

func parseInt(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
