// Package tempo estimates a track's BPM using two strategies — "thirds"
// sampling with percussion-aware octave folding, and a single-window
// autocorrelation fallback — exactly as specified in C3. Both strategies are
// non-fatal: when neither produces a usable value the caller persists
// bpm = null.
package tempo

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/window"

	"audiolib/internal/media/decode"
)

// Source identifies which strategy (or tag override) produced the final BPM.
type Source string

const (
	SourceThirds Source = "thirds"
	SourceACF    Source = "acf"
	SourceID3    Source = "id3"
)

// Estimate is the BPM estimator's output before any ID3 override is applied.
type Estimate struct {
	BPM    float64
	Source Source
	Found  bool
}

// Hints carries the coarse instrument-presence signal (from C2's probe
// adapter) this estimator's percussion-aware and rock-bias heuristics key on.
type Hints struct {
	DrumsPresent  bool
	GuitarPresent bool
	BrassPresent  bool
}

const (
	sampleRate44k = 44100
	minBPM        = 50.0
	maxBPM        = 200.0
)

// Decoder abstracts the ffmpeg PCM decode step so the estimator's control
// flow can be unit tested against synthetic PCM without spawning ffmpeg.
type Decoder func(ctx context.Context, window decode.Window, sampleRate int) ([]float32, error)

// FFmpegDecoder builds a Decoder bound to a concrete ffmpeg binary and path.
func FFmpegDecoder(ffmpegBinary, path string) Decoder {
	return func(ctx context.Context, window decode.Window, sampleRate int) ([]float32, error) {
		return decode.PCM(ctx, ffmpegBinary, path, sampleRate, window)
	}
}

// EstimateBPM runs the thirds strategy and, if it fails to produce a value,
// falls back to the ACF strategy.
func EstimateBPM(ctx context.Context, decoder Decoder, durationSec float64, hints Hints) Estimate {
	if est, ok := thirdsEstimate(ctx, decoder, durationSec, hints); ok {
		return est
	}
	if est, ok := acfEstimate(ctx, decoder, durationSec, hints); ok {
		return est
	}
	return Estimate{}
}

// --- Thirds strategy -------------------------------------------------------

func thirdsEstimate(ctx context.Context, decoder Decoder, durationSec float64, hints Hints) (Estimate, bool) {
	if durationSec <= 0 {
		return Estimate{}, false
	}

	starts := []float64{0, durationSec / 3, 2 * durationSec / 3}
	baseWindow := durationSec / 12 // a third's width, quartered
	if baseWindow <= 0 {
		return Estimate{}, false
	}

	var bpms []float64
	for _, start := range starts {
		w := decode.Window{StartSec: start, DurationSec: baseWindow}
		samples, sr, err := pullWindow(ctx, decoder, w, sampleRate44k)
		if err != nil {
			continue
		}
		// One-time widen up to 60s if the first pull returned less than 6s.
		if float64(len(samples))/float64(sr) < 6 && baseWindow*1.5 <= 60 {
			widened := decode.Window{StartSec: start, DurationSec: math.Min(baseWindow*1.5, 60)}
			if resamples, _, err := pullWindow(ctx, decoder, widened, sampleRate44k); err == nil {
				samples = resamples
			}
		}
		if len(samples) == 0 {
			continue
		}

		raw, ok := onsetACFBPM(samples, sr, 1024, 256)
		if !ok {
			continue
		}
		folded := foldBPM(raw, 70, 180)
		adjusted := percussionNormalize(folded, hints.DrumsPresent)
		bpms = append(bpms, adjusted)
	}

	if len(bpms) == 0 {
		return Estimate{}, false
	}
	mean := 0.0
	for _, v := range bpms {
		mean += v
	}
	mean /= float64(len(bpms))
	return Estimate{BPM: math.Round(mean), Source: SourceThirds, Found: true}, true
}

// foldBPM repeatedly halves or doubles bpm until it lands within [lo, hi].
func foldBPM(bpm, lo, hi float64) float64 {
	if bpm <= 0 {
		return bpm
	}
	for bpm > hi {
		bpm /= 2
	}
	for bpm < lo {
		bpm *= 2
	}
	return bpm
}

// percussionNormalize applies the percussion-aware octave preference: when
// drums are present and the folded BPM sits in the "half-time" band,
// double it if that lands in a plausible up-tempo band; when drums are
// absent and the folded BPM sits in a common "double-time" band, halve it
// if that lands in a plausible mid-tempo band.
func percussionNormalize(bpm float64, drumsPresent bool) float64 {
	switch {
	case drumsPresent && bpm >= 70 && bpm <= 95:
		if doubled := bpm * 2; doubled >= 100 && doubled <= 190 {
			return doubled
		}
	case !drumsPresent && bpm >= 135 && bpm <= 170:
		if halved := bpm / 2; halved >= 68 && halved <= 100 {
			return halved
		}
	}
	return bpm
}

// --- ACF fallback strategy ---------------------------------------------------

func acfEstimate(ctx context.Context, decoder Decoder, durationSec float64, hints Hints) (Estimate, bool) {
	if durationSec <= 0 {
		return Estimate{}, false
	}
	windowSec := math.Min(60, math.Max(20, math.Floor(0.4*durationSec)))
	center := durationSec / 2
	start := math.Max(0, center-windowSec/2)

	const downsampledRate = sampleRate44k / 2
	w := decode.Window{StartSec: start, DurationSec: windowSec}
	samples, sr, err := pullWindow(ctx, decoder, w, downsampledRate)
	if err != nil || len(samples) == 0 {
		return Estimate{}, false
	}

	raw, confidence, ok := onsetACFBPMConfidence(samples, sr, 1024, 256)
	if !ok {
		return Estimate{}, false
	}
	_ = confidence // carried for future surfacing; not part of the persisted record today.

	// The autocorrelation lag search is already restricted to the [50,200]
	// BPM range, so the candidate set {raw, raw/2, raw*2} always picks raw
	// itself — implemented literally per spec so the step remains visible
	// and adjustable if the lag search range ever widens.
	candidates := []float64{raw, raw / 2, raw * 2}
	chosen := closestTo(raw, candidates)

	if (hints.GuitarPresent || hints.BrassPresent) && chosen < 110 && raw >= 120 {
		chosen = math.Round(raw)
	}

	return Estimate{BPM: math.Round(chosen), Source: SourceACF, Found: true}, true
}

func closestTo(target float64, candidates []float64) float64 {
	best := candidates[0]
	bestDist := math.Abs(candidates[0] - target)
	for _, c := range candidates[1:] {
		if d := math.Abs(c - target); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func pullWindow(ctx context.Context, decoder Decoder, w decode.Window, sampleRate int) ([]float32, int, error) {
	samples, err := decoder(ctx, w, sampleRate)
	if err != nil {
		return nil, 0, err
	}
	return samples, sampleRate, nil
}

// --- Shared onset-envelope / autocorrelation math ---------------------------

// onsetEnvelope computes a rectified, peak-normalized onset strength curve
// from per-frame energy differences.
func onsetEnvelope(samples []float32, frameSize, hop int) []float64 {
	if frameSize <= 0 || hop <= 0 || len(samples) < frameSize {
		return nil
	}
	frameCount := (len(samples)-frameSize)/hop + 1
	if frameCount < 2 {
		return nil
	}
	energy := make([]float64, frameCount)
	frameBuf := make([]float64, frameSize)
	for i := 0; i < frameCount; i++ {
		start := i * hop
		for j, s := range samples[start : start+frameSize] {
			frameBuf[j] = float64(s)
		}
		windowed := window.Hann(frameBuf)
		sum := 0.0
		for _, v := range windowed {
			sum += v * v
		}
		energy[i] = sum
	}

	onset := make([]float64, frameCount)
	peak := 0.0
	for i := 1; i < frameCount; i++ {
		diff := energy[i] - energy[i-1]
		if diff < 0 {
			diff = 0
		}
		onset[i] = diff
		if diff > peak {
			peak = diff
		}
	}
	if peak > 0 {
		for i := range onset {
			onset[i] /= peak
		}
	}
	return onset
}

// autocorrelate returns the normalized autocorrelation of envelope across
// [minLag, maxLag], along with the best and second-best peak values.
func autocorrelate(envelope []float64, minLag, maxLag int) (bestLag int, best, secondBest float64) {
	for lag := minLag; lag <= maxLag && lag < len(envelope); lag++ {
		sum := 0.0
		for i := 0; i+lag < len(envelope); i++ {
			sum += envelope[i] * envelope[i+lag]
		}
		if sum > best {
			secondBest = best
			best = sum
			bestLag = lag
		} else if sum > secondBest {
			secondBest = sum
		}
	}
	return bestLag, best, secondBest
}

func onsetACFBPM(samples []float32, sampleRate, frameSize, hop int) (float64, bool) {
	bpm, _, ok := onsetACFBPMConfidence(samples, sampleRate, frameSize, hop)
	return bpm, ok
}

func onsetACFBPMConfidence(samples []float32, sampleRate, frameSize, hop int) (bpm, confidence float64, ok bool) {
	envelope := onsetEnvelope(samples, frameSize, hop)
	if len(envelope) < 2 {
		return 0, 0, false
	}

	framesPerSec := float64(sampleRate) / float64(hop)
	minLag := int(framesPerSec * 60 / maxBPM)
	maxLag := int(framesPerSec * 60 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag <= minLag {
		return 0, 0, false
	}

	lag, best, secondBest := autocorrelate(envelope, minLag, maxLag)
	if lag == 0 || best <= 0 {
		return 0, 0, false
	}

	seconds := float64(lag) / framesPerSec
	bpm = 60 / seconds
	confidence = best / (best + secondBest)
	return bpm, confidence, true
}

// windowTimeout is a per-window wall-clock bound exposed through
// WindowTimeout; the estimator's own decode windows are not bounded by it.
const windowTimeout = 15 * time.Second

// WindowTimeout returns the shared per-window timeout.
func WindowTimeout() time.Duration { return windowTimeout }
