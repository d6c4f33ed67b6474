package cli

import (
	"io"
	"os"
	"time"

	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/kilupskalvis/finsync/internal/logging"
	"github.com/spf13/cobra"
)

var (
	daemonInterval time.Duration
	daemonUser     int64
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync in the background on an interval",
	Long: `Run a sync immediately, then again every interval until interrupted.
Cycles never overlap; a failed cycle is logged and retried on the next tick.

Logs go to stderr and to the rotated log file in the .finsync directory.`,
	Run: runDaemon,
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "Time between syncs (default from config)")
	daemonCmd.Flags().Int64Var(&daemonUser, "user", -1, "Only push changes owned by this user id (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) {
	c := initSyncContext()

	logFile := logging.RotatingFile(c.Config.LogPath())
	defer logFile.Close()

	level := c.Config.LogLevel
	if verbose {
		level = "debug"
	}
	logger := logging.New(io.MultiWriter(os.Stderr, logFile), level, c.Config.LogFormat)

	syncer, err := core.New(core.Options{
		Open:         c.Open,
		Client:       newRemoteClient(c.Config, logger),
		Watermark:    c.Watermark,
		Logger:       logger,
		MaxPushBytes: c.Config.PushMaxBytes,
	})
	if err != nil {
		exitError("%v", err)
	}

	interval := daemonInterval
	if interval <= 0 {
		interval = c.Config.SyncInterval.Duration
	}

	scope := scopeFor(c, daemonUser)
	sched := core.NewScheduler(core.ForSyncer(syncer, scope), interval, logger)

	ctx := cmd.Context()
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()

	st := sched.Status()
	logger.Info("daemon stopped", "cycles", st.Cycles, "last_sync", st.LastSync)
}
