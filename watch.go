package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bongocloud/bongo-go/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <local-dir> [remote-folder]",
		Short: "Upload files dropped into a local directory",
		Long: "Watches a local directory and uploads new or changed files into the " +
			"given remote folder (the root by default). Runs until interrupted.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if err := a.withJournal(); err != nil {
				return err
			}
			defer a.closeJournal()

			remotePath := "/"
			if len(args) == 2 {
				remotePath = args[1]
			}

			parent, err := a.resolveFolder(cmd.Context(), remotePath)
			if err != nil {
				return err
			}

			parentID := parentIDOf(parent)

			upload := func(ctx context.Context, localPath string) error {
				return uploadFile(ctx, a, localPath, parentID)
			}

			w := watcher.New(args[0], a.cfg.WatchDebounce.Duration, upload, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			statusf("Watching %s, uploading to %s (Ctrl-C to stop)\n", args[0], remotePath)

			return w.Run(ctx)
		},
	}
}
