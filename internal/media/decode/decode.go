// Package decode spawns ffmpeg to produce mono float32 PCM for downstream
// tempo estimation. Grounded on the same
// exec.CommandContext + stdout pipe pattern the teacher uses to extract
// audio for WhisperX.
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"audiolib/internal/services"
)

// Window describes the portion of a source file to decode.
type Window struct {
	StartSec    float64
	DurationSec float64
}

// PCM decodes path to mono float32 PCM at sampleRate, optionally restricted
// to window. A zero-value Window decodes the entire file.
func PCM(ctx context.Context, ffmpegBinary, path string, sampleRate int, window Window) ([]float32, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}

	args := []string{"-v", "error", "-hide_banner"}
	if window.StartSec > 0 {
		args = append(args, "-ss", strconv.FormatFloat(window.StartSec, 'f', 3, 64))
	}
	args = append(args, "-i", path)
	if window.DurationSec > 0 {
		args = append(args, "-t", strconv.FormatFloat(window.DurationSec, 'f', 3, 64))
	}
	args = append(args,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	)

	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "pcm", "pipe stdout", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "pcm", "start ffmpeg", err)
	}

	data, readErr := io.ReadAll(stdout)
	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "pcm", "read pcm stream", readErr)
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "pcm",
			fmt.Sprintf("ffmpeg exited: %s", strings.TrimSpace(stderr.String())), waitErr)
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
