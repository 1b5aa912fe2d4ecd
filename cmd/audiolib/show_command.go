package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"audiolib/internal/library"
	"audiolib/internal/pathkey"
	"audiolib/internal/track"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show the persisted analysis record for one track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path := args[0]
			store := library.New(cfg.DBDir)
			mainStore, err := store.Load()
			if err != nil {
				return fmt.Errorf("load library store: %w", err)
			}

			rec, ok := mainStore.Tracks[pathkey.Key(path)]
			if !ok {
				return fmt.Errorf("no analysis record found for %s (run analyze first)", path)
			}

			out := cmd.OutOrStdout()
			if ctx.JSONMode() {
				doc, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal record: %w", err)
				}
				fmt.Fprintln(out, string(doc))
				return nil
			}

			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, showRows(rec), []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
	return cmd
}

func showRows(rec track.Record) [][]string {
	bpm := "—"
	if rec.Technical.BPM != nil {
		bpm = strconv.Itoa(*rec.Technical.BPM)
	}
	return [][]string{
		{"key", rec.Key},
		{"path", rec.Path},
		{"duration_sec", strconv.FormatFloat(rec.Technical.DurationSec, 'f', 2, 64)},
		{"sample_rate_hz", strconv.Itoa(rec.Technical.SampleRateHz)},
		{"channels", strconv.Itoa(rec.Technical.Channels)},
		{"bit_rate", strconv.Itoa(rec.Technical.BitRate)},
		{"bpm", bpm},
		{"bpm_source", rec.Technical.BPMSource},
		{"genre", strings.Join(rec.Creative.Genre, ", ")},
		{"mood", strings.Join(rec.Creative.Mood, ", ")},
		{"theme", strings.Join(rec.Creative.Theme, ", ")},
		{"vocals", strings.Join(rec.Creative.Vocals, ", ")},
		{"creative_status", rec.CreativeStatus},
		{"instruments", strings.Join(rec.Analysis.FinalInstruments, ", ")},
		{"waveform_png", rec.WaveformPNG},
		{"analyzed_at", rec.AnalyzedAt.Format("2006-01-02 15:04:05")},
	}
}
