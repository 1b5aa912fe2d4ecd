package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"audiolib/internal/library"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the library and criteria stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := library.New(cfg.DBDir)
			main, err := store.Load()
			if err != nil {
				return fmt.Errorf("load library store: %w", err)
			}

			criteria, err := store.RebuildCriteria()
			if err != nil {
				return fmt.Errorf("rebuild criteria store: %w", err)
			}

			dirChecks := []dirAccessCheck{
				{"library_dir", cfg.LibraryDir},
				{"db_dir", cfg.DBDir},
				{"cache_dir", cfg.CacheDir},
			}

			out := cmd.OutOrStdout()
			if ctx.JSONMode() {
				doc, err := json.MarshalIndent(statusSummary{
					Tracks:             len(main.Tracks),
					Genres:             len(criteria.Genre),
					Moods:              len(criteria.Mood),
					Instruments:        len(criteria.Instrument),
					Artists:            len(criteria.Artists),
					TempoBands:         len(criteria.TempoBands),
					ElectronicElements: len(criteria.ElectronicElements),
					Directories:        dirAccessSummaries(dirChecks),
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Fprintln(out, string(doc))
				return nil
			}

			rows := [][]string{
				{"tracks", strconv.Itoa(len(main.Tracks))},
				{"genres", strconv.Itoa(len(criteria.Genre))},
				{"moods", strconv.Itoa(len(criteria.Mood))},
				{"instruments", strconv.Itoa(len(criteria.Instrument))},
				{"artists", strconv.Itoa(len(criteria.Artists))},
				{"tempo_bands", strconv.Itoa(len(criteria.TempoBands))},
				{"electronic_elements", strconv.Itoa(len(criteria.ElectronicElements))},
			}
			fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

			dirRows := make([][]string, 0, len(dirChecks))
			for _, check := range dirChecks {
				status := "ok"
				if err := checkDirectoryAccess(check.Path); err != nil {
					status = err.Error()
				}
				dirRows = append(dirRows, []string{check.Label, check.Path, status})
			}
			fmt.Fprintln(out, renderTable([]string{"Directory", "Path", "Status"}, dirRows, []columnAlignment{alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

type statusSummary struct {
	Tracks             int                `json:"tracks"`
	Genres             int                `json:"genres"`
	Moods              int                `json:"moods"`
	Instruments        int                `json:"instruments"`
	Artists            int                `json:"artists"`
	TempoBands         int                `json:"tempo_bands"`
	ElectronicElements int                `json:"electronic_elements"`
	Directories        []dirAccessSummary `json:"directories"`
}

type dirAccessCheck struct {
	Label string
	Path  string
}

type dirAccessSummary struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

func dirAccessSummaries(checks []dirAccessCheck) []dirAccessSummary {
	out := make([]dirAccessSummary, 0, len(checks))
	for _, check := range checks {
		status := "ok"
		if err := checkDirectoryAccess(check.Path); err != nil {
			status = err.Error()
		}
		out = append(out, dirAccessSummary{Label: check.Label, Path: check.Path, Status: status})
	}
	return out
}

// checkDirectoryAccess confirms path exists, is a directory, and is
// readable, writable, and traversable by this process — the same
// read/write/execute probe the scheduler relies on implicitly when it
// opens the cache database and writes per-file records under these paths.
func checkDirectoryAccess(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("does not exist")
		}
		return fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions: %w", err)
	}
	return nil
}
