package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/config"
	"github.com/bongocloud/bongo-go/internal/fscache"
	"github.com/bongocloud/bongo-go/internal/journal"
	"github.com/bongocloud/bongo-go/internal/session"
	"github.com/bongocloud/bongo-go/internal/tokenstore"
	"github.com/bongocloud/bongo-go/internal/transfer"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagBaseURL    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

// httpClientTimeout bounds JSON API calls. Transfers get their own client
// without a deadline — a large download legitimately outlives any timeout.
const httpClientTimeout = 30 * time.Second

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bongo",
		Short:   "Bongo Cloud CLI client",
		Long:    "A command-line client for Bongo Cloud file storage: browse, transfer, and share files.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(flagConfigPath, flagBaseURL)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			resolvedCfg = cfg

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API base URL override")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newShareCmd())
	cmd.AddCommand(newUnshareCmd())
	cmd.AddCommand(newSharesCmd())
	cmd.AddCommand(newTransfersCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// app bundles the wired subsystems a command needs. Built per invocation
// after config resolution.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tokens   *tokenstore.Store
	client   *api.Client
	cache    *fscache.Cache
	session  *session.Session
	transfer *transfer.Controller

	journal *journal.Store
}

// newApp wires the subsystems from the resolved config. Commands that move
// payloads call withJournal afterward.
func newApp() (*app, error) {
	logger := buildLogger()

	if err := os.MkdirAll(resolvedCfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	tokens := tokenstore.New(resolvedCfg.TokenPath())
	client := api.NewClient(resolvedCfg.BaseURL, &http.Client{Timeout: httpClientTimeout}, tokens, logger)
	cache := fscache.New(resolvedCfg.CacheTTL.Duration, logger)

	a := &app{
		cfg:     resolvedCfg,
		logger:  logger,
		tokens:  tokens,
		client:  client,
		cache:   cache,
		session: session.New(client, tokens, cache, logger),
	}

	a.transfer = transfer.New(transferClient(client), nil, logger)

	return a, nil
}

// withJournal opens the transfer journal and rebuilds the transfer
// controller around it. The caller closes it via closeJournal.
func (a *app) withJournal() error {
	store, err := journal.Open(a.cfg.JournalPath(), a.logger)
	if err != nil {
		return err
	}

	a.journal = store
	a.transfer = transfer.New(transferClient(a.client), store, a.logger)

	return nil
}

func (a *app) closeJournal() {
	if a.journal == nil {
		return
	}

	if err := a.journal.Close(); err != nil {
		a.logger.Warn("closing journal failed", slog.String("error", err.Error()))
	}
}

// transferClient adapts the API client for the transfer layer, swapping in
// an HTTP client without a request timeout. The round-tripper is shared with
// the API client so both draw from one connection pool.
func transferClient(client *api.Client) transfer.Transport {
	return &unboundedTransport{
		client: client,
		http:   http.Client{Transport: client.HTTPClient().Transport},
	}
}

type unboundedTransport struct {
	client *api.Client
	http   http.Client
}

func (t *unboundedTransport) BearerToken(ctx context.Context) string {
	return t.client.BearerToken(ctx)
}

func (t *unboundedTransport) RotateFromHeader(h http.Header) { t.client.RotateFromHeader(h) }
func (t *unboundedTransport) BaseURL() string                { return t.client.BaseURL() }
func (t *unboundedTransport) HTTPClient() *http.Client       { return &t.http }

// buildLogger creates an slog.Logger honoring --verbose and --quiet.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
