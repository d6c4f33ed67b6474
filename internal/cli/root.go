// Package cli implements the command-line interface for finsync.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kilupskalvis/finsync/internal/config"
	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/kilupskalvis/finsync/internal/logging"
	"github.com/kilupskalvis/finsync/internal/remote"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/spf13/cobra"
)

var verbose bool

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config    *config.Config
	Open      store.Opener
	Watermark *core.Watermark
	Logger    *slog.Logger
	Syncer    *core.Syncer
}

// initContext loads the config and prepares the local store opener (no remote)
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	return &cmdContext{
		Config:    cfg,
		Open:      store.NewOpener(cfg.DatabasePath()),
		Watermark: core.NewWatermark(cfg.WatermarkPath()),
		Logger:    newLogger(cfg, os.Stderr),
	}
}

// initSyncContext also builds the remote client and the syncer
func initSyncContext() *cmdContext {
	c := initContext()
	if c.Config.RemoteURL == "" {
		exitError("no remote configured, set remote_url in %s or %s", c.Config.Path(), config.EnvRemoteURL)
	}

	syncer, err := core.New(core.Options{
		Open:         c.Open,
		Client:       newRemoteClient(c.Config, c.Logger),
		Watermark:    c.Watermark,
		Logger:       c.Logger,
		MaxPushBytes: c.Config.PushMaxBytes,
	})
	if err != nil {
		exitError("%v", err)
	}
	c.Syncer = syncer
	return c
}

// newRemoteClient builds the HTTP client with the configured retry policy
func newRemoteClient(cfg *config.Config, logger *slog.Logger) remote.Client {
	client := remote.NewHTTPClient(cfg.RemoteURL, cfg.Token, cfg.RequestTimeout.Duration)
	if cfg.Retries <= 0 {
		return client
	}
	rc := remote.DefaultRetryConfig()
	rc.MaxRetries = cfg.Retries
	rc.Interval = cfg.RetryInterval.Duration
	rc.Logger = logger
	return remote.NewRetryClient(client, rc)
}

// newLogger builds the logger of an interactive command. It only shows
// warnings unless --verbose is set.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(w, level, cfg.LogFormat)
}

// withStore opens the local store for one command
func (c *cmdContext) withStore(ctx context.Context, fn func(st *store.Store) error) error {
	st, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to prepare local database: %w", err)
	}
	return fn(st)
}

var rootCmd = &cobra.Command{
	Use:   "finsync",
	Short: "Offline-first sync for the finance tracker",
	Long: `finsync keeps a local finance tracker database in sync with a central
server. Changes are recorded locally while offline and exchanged with the
server on every sync.`,
	SilenceUsage: true,
}

// Execute runs the root command. Cancelling ctx aborts the running command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(fixedCmd)
	rootCmd.AddCommand(serverCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
