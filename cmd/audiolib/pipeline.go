package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"audiolib/internal/analysiscache"
	"audiolib/internal/config"
	"audiolib/internal/creative"
	"audiolib/internal/ensemble"
	"audiolib/internal/fileutil"
	"audiolib/internal/media/ffprobe"
	"audiolib/internal/media/probes"
	"audiolib/internal/media/tags"
	"audiolib/internal/pathkey"
	"audiolib/internal/scheduler"
	"audiolib/internal/tempo"
	"audiolib/internal/track"
)

// cachedTechnical is the shape persisted under an analysiscache entry's
// Technical payload: the scheduler's TechnicalResult carries both the
// technical facts and the coarse probe hints, so both must round-trip.
type cachedTechnical struct {
	Facts track.TechnicalFacts `json:"facts"`
	Hints map[string]bool      `json:"hints"`
}

// buildTechnicalRunner wires C2 (ffprobe + ID3 tags + probe classifier) and
// C3 (tempo estimation) into the scheduler's RunTechnical dependency. When
// cache is non-nil, a hit against the file's current content hash skips
// ffprobe, the probe classifier, and tempo estimation entirely.
func buildTechnicalRunner(cfg *config.Config, cache *analysiscache.Cache) func(ctx context.Context, path string) (scheduler.TechnicalResult, error) {
	probeTimeout := time.Duration(cfg.ProbeWindowTimeoutSec) * time.Second

	return func(ctx context.Context, path string) (scheduler.TechnicalResult, error) {
		trackKey, contentHash := cacheIdentity(cache, path)

		if cache != nil && contentHash != "" {
			if entry, ok, err := cache.Lookup(ctx, trackKey, contentHash); err == nil && ok {
				var cached cachedTechnical
				if err := analysiscache.UnmarshalInto(entry.Technical, &cached); err == nil {
					return scheduler.TechnicalResult{Facts: cached.Facts, Hints: cached.Hints}, nil
				}
			}
		}

		probed, err := ffprobe.Inspect(ctx, cfg.FFprobePath, path)
		if err != nil {
			return scheduler.TechnicalResult{}, fmt.Errorf("inspect %s: %w", path, err)
		}

		tagMap := tags.Read(path)
		facts := track.TechnicalFromProbe(probed, tagMap)

		probeResult := probes.Run(ctx, cfg.EnsembleBin, path, probed.DurationSec, probeTimeout)

		decoder := tempo.FFmpegDecoder(cfg.FFmpegPath, path)
		hints := tempo.Hints{
			DrumsPresent:  probeResult.Hints["drums"],
			GuitarPresent: probeResult.Hints["electric guitar"] || probeResult.Hints["acoustic guitar"],
			BrassPresent:  probeResult.Hints["brass"],
		}
		estimate := tempo.EstimateBPM(ctx, decoder, probed.DurationSec, hints)
		facts.ApplyBPM(estimate.BPM, string(estimate.Source), estimate.Found)

		result := scheduler.TechnicalResult{Facts: facts, Hints: probeResult.Hints}

		if cache != nil && contentHash != "" {
			if payload, err := analysiscache.MarshalTechnical(cachedTechnical{Facts: facts, Hints: probeResult.Hints}); err == nil {
				storeCacheField(ctx, cache, trackKey, contentHash, payload, nil)
			}
		}

		return result, nil
	}
}

// cacheIdentity resolves the (trackKey, contentHash) pair a cache lookup or
// store call keys on. An empty contentHash (hashing failure) disables
// caching for this call rather than risking a stale hit.
func cacheIdentity(cache *analysiscache.Cache, path string) (string, string) {
	if cache == nil {
		return "", ""
	}
	hash, err := fileutil.HashFile(path)
	if err != nil {
		return pathkey.Key(path), ""
	}
	return pathkey.Key(path), hash
}

// storeCacheField upserts one of the two cached payloads (technical,
// ensemble) while preserving whichever sibling field an earlier phase
// already wrote for this (trackKey, contentHash) pair. The Technical and
// Instrumentation phases store their payloads in separate calls (Technical
// finishes before Instrumentation starts) and each only knows its own
// payload, so a naive Store call here would null out the field the earlier
// phase wrote.
func storeCacheField(ctx context.Context, cache *analysiscache.Cache, trackKey, contentHash string, technical, ensemble []byte) {
	existing, ok, err := cache.Lookup(ctx, trackKey, contentHash)
	if err != nil {
		return
	}
	entry := analysiscache.Entry{TrackKey: trackKey, ContentHash: contentHash}
	if ok {
		entry.Technical = existing.Technical
		entry.Ensemble = existing.Ensemble
	}
	if technical != nil {
		entry.Technical = technical
	}
	if ensemble != nil {
		entry.Ensemble = ensemble
	}
	_ = cache.Store(ctx, entry)
}

// buildCreativeRunner wires C4's LLM client into the scheduler's RunCreative
// dependency.
func buildCreativeRunner(cfg *config.Config) func(ctx context.Context, req creative.Request) creative.Result {
	client := creative.NewClient(creative.Config{
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		TimeoutSeconds: cfg.LLMTimeoutSec,
	})
	return client.Analyze
}

// buildInstrumentationRunner wires C5's ensemble classifier into the
// scheduler's RunInstrumentation dependency. Each call spawns the classifier
// against a per-call temporary output file, which is removed once read. When
// cache is non-nil, a hit against the file's current content hash skips the
// classifier subprocess entirely.
func buildInstrumentationRunner(cfg *config.Config, cache *analysiscache.Cache) func(ctx context.Context, path string) (scheduler.InstrumentationResult, error) {
	return func(ctx context.Context, path string) (scheduler.InstrumentationResult, error) {
		trackKey, contentHash := cacheIdentity(cache, path)

		if cache != nil && contentHash != "" {
			if entry, ok, err := cache.Lookup(ctx, trackKey, contentHash); err == nil && ok && len(entry.Ensemble) > 0 {
				var out ensemble.Output
				if err := analysiscache.UnmarshalInto(entry.Ensemble, &out); err == nil {
					return scheduler.InstrumentationResult{Ensemble: out}, nil
				}
			}
		}

		tmp, err := os.CreateTemp(cfg.CacheDir, "ensemble-*.json")
		if err != nil {
			return scheduler.InstrumentationResult{}, fmt.Errorf("create ensemble output file: %w", err)
		}
		outputPath := tmp.Name()
		_ = tmp.Close()
		defer os.Remove(outputPath)

		out := ensemble.Run(ctx, cfg.EnsembleBin, path, outputPath, true)

		if cache != nil && contentHash != "" {
			if payload, err := analysiscache.MarshalTechnical(out); err == nil {
				storeCacheField(ctx, cache, trackKey, contentHash, nil, payload)
			}
		}

		return scheduler.InstrumentationResult{Ensemble: out}, nil
	}
}
