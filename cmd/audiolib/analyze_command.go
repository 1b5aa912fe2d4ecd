package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"audiolib/internal/analysiscache"
	"audiolib/internal/config"
	"audiolib/internal/library"
	"audiolib/internal/logging"
	"audiolib/internal/notifications"
	"audiolib/internal/scheduler"
)

// audioExtensions is the fixed set of container extensions the library walk
// accepts; anything else is skipped.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aiff": true,
	".aif":  true,
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a library directory and persist per-track records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newCLILogger(cfg)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			dir := strings.TrimSpace(dirFlag)
			if dir == "" {
				dir = cfg.LibraryDir
			}

			return runAnalyze(cmd.Context(), cfg, dir, logger, cmd.OutOrStdout(), ctx.JSONMode())
		},
	}

	cmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Library directory to scan (defaults to the configured library_dir)")
	return cmd
}

// runAnalyze acquires the single-instance lock, discovers audio files under
// dir, submits them to the scheduler, and reports a summary when the batch
// completes. Mirrors the daemon's single-instance flock pattern, scaled down
// to a one-shot batch run instead of a long-lived process.
func runAnalyze(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger, out io.Writer, jsonMode bool) error {
	files, err := discoverAudioFiles(dir)
	if err != nil {
		return fmt.Errorf("scan library directory %q: %w", dir, err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No audio files found under %s\n", dir)
		return nil
	}

	lockPath := filepath.Join(cfg.CacheDir, "audiolib.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another audiolib analyze run holds %s", lockPath)
	}
	defer lock.Unlock()

	cache, err := analysiscache.Open(filepath.Join(cfg.CacheDir, "analysis_cache.db"), logger)
	if err != nil {
		logger.Warn("analysis cache unavailable; continuing without memoization", logging.Error(err))
		cache = nil
	}
	if cache != nil {
		defer cache.Close()
	}

	store := library.New(cfg.DBDir)
	notifier := notifications.NewService(cfg)

	sched := scheduler.New(scheduler.Config{
		TechnicalWorkers:       cfg.TechnicalWorkers,
		CreativeWorkers:        cfg.CreativeWorkers,
		InstrumentationWorkers: cfg.InstrumentationWorkers,
		Mode:                   schedulerMode(cfg.SchedulerMode),
		LibraryFolder:          dir,
	}, scheduler.Deps{
		RunTechnical:       buildTechnicalRunner(cfg, cache),
		RunCreative:        buildCreativeRunner(cfg),
		RunInstrumentation: buildInstrumentationRunner(cfg, cache),
		Store:              store,
	}, logger)

	sched.Start(ctx)
	defer sched.Stop()

	_ = notifier.Publish(ctx, notifications.EventBatchStarted, notifications.Payload{"count": len(files)})

	bar := newProgressBar(out, len(files))

	handles := make([]*scheduler.Handle, 0, len(files))
	for _, f := range files {
		handles = append(handles, sched.Submit(f))
	}
	sched.SignalReady()

	start := time.Now()
	var processed, failed int
	var firstErr error

	for _, h := range handles {
		drainProgress(h)
		final := <-h.Final
		if final.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = final.Err
			}
			logger.Error("track analysis failed", logging.String("path", h.Path), logging.Error(final.Err))
		} else {
			processed++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	elapsed := time.Since(start)

	if _, err := store.RebuildCriteria(); err != nil {
		logger.Warn("criteria rebuild failed", logging.Error(err))
	}

	if failed > 0 && processed == 0 {
		_ = notifier.Publish(ctx, notifications.EventBatchFailed, notifications.Payload{"reason": fmt.Sprintf("all %d tracks failed", failed)})
	} else {
		_ = notifier.Publish(ctx, notifications.EventBatchCompleted, notifications.Payload{
			"processed": processed,
			"failed":    failed,
			"duration":  elapsed,
		})
	}

	if jsonMode {
		doc, err := json.MarshalIndent(analyzeSummary{
			Total:     len(files),
			Processed: processed,
			Failed:    failed,
			ElapsedMs: elapsed.Milliseconds(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		fmt.Fprintln(out, string(doc))
	} else {
		fmt.Fprintf(out, "Analyzed %s: %d succeeded, %d failed in %s\n",
			humanize.Comma(int64(len(files))), processed, failed, elapsed.Truncate(time.Second))
	}

	if firstErr != nil && processed == 0 {
		return fmt.Errorf("batch analysis failed: %w", firstErr)
	}
	return nil
}

// analyzeSummary is the --json projection of a completed batch run.
type analyzeSummary struct {
	Total     int   `json:"total"`
	Processed int   `json:"processed"`
	Failed    int   `json:"failed"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

func schedulerMode(raw string) scheduler.Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(scheduler.ModeSequential)) {
		return scheduler.ModeSequential
	}
	return scheduler.ModeConcurrent
}

// drainProgress consumes a handle's Partial channel and any buffered
// Progress events without blocking the caller's wait on Final.
func drainProgress(h *scheduler.Handle) {
	select {
	case <-h.Partial:
	default:
	}
	for {
		select {
		case <-h.Progress:
		default:
			return
		}
	}
}

// newProgressBar returns nil when out is not a terminal, so piping CLI
// output never gets interleaved with carriage-return redraws.
func newProgressBar(out io.Writer, total int) *progressbar.ProgressBar {
	f, ok := out.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(f),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Analyzing tracks"),
		progressbar.OptionClearOnFinish(),
	)
}

func discoverAudioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
