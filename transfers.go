package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bongocloud/bongo-go/internal/journal"
)

func newTransfersCmd() *cobra.Command {
	var (
		limit       int
		prune       bool
		interrupted bool
	)

	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Show recent transfer activity",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if err := a.withJournal(); err != nil {
				return err
			}
			defer a.closeJournal()

			if prune {
				cutoff := time.Now().Add(-a.cfg.JournalRetention.Duration)

				removed, err := a.journal.Prune(cutoff)
				if err != nil {
					return err
				}

				statusf("Pruned %d old records\n", removed)
			}

			var records []journal.Record

			if interrupted {
				records, err = a.journal.Interrupted()
			} else {
				records, err = a.journal.Recent(limit)
			}
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(records)
			}

			if len(records) == 0 {
				statusf("(no transfers)\n")

				return nil
			}

			rows := make([][]string, 0, len(records))

			for _, rec := range records {
				progress := formatSize(rec.Transferred)
				if rec.Size > 0 {
					progress = fmt.Sprintf("%s / %s", formatSize(rec.Transferred), formatSize(rec.Size))
				}

				rows = append(rows, []string{
					rec.Kind,
					rec.Name,
					rec.State,
					progress,
					formatTime(rec.CreatedAt),
				})
			}

			printTable(os.Stdout, []string{"KIND", "NAME", "STATE", "BYTES", "STARTED"}, rows)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")
	cmd.Flags().BoolVar(&prune, "prune", false, "drop finished records past the retention window")
	cmd.Flags().BoolVar(&interrupted, "interrupted", false, "show only downloads that can be resumed")

	return cmd
}
