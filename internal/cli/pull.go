package cli

import (
	"fmt"

	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/spf13/cobra"
)

var pullFull bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Apply remote changes received since the last pull",
	Long: `Fetch every change the server accepted after the stored watermark and apply
it to the local database in one transaction.

Examples:
  finsync pull          Pull changes since the last pull
  finsync pull --full   Forget the watermark and replay the whole remote log`,
	Run: runPull,
}

func init() {
	pullCmd.Flags().BoolVar(&pullFull, "full", false, "Reset the watermark and pull the full remote log")
}

func runPull(cmd *cobra.Command, args []string) {
	c := initSyncContext()

	if err := c.Syncer.EnsureSchema(cmd.Context()); err != nil {
		exitError("%v", err)
	}

	if pullFull {
		if err := c.Watermark.Reset(); err != nil {
			exitError("failed to reset watermark: %v", err)
		}
		fmt.Println("Watermark reset, pulling full history...")
	}

	res := c.Syncer.Pull(cmd.Context())
	printPull(res)
	if res.Status == core.StatusFailed {
		c.Logger.Warn("pull failed", "error", res.Err)
		failSync()
	}
}
