package cli

import (
	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/spf13/cobra"
)

var pushUser int64

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send the local changelog to the server",
	Long: `Send pending local changes to the sync server. Delivered entries are removed
from the changelog; on failure they are kept for the next push.

Examples:
  finsync push             Push with the scope from the config
  finsync push --user 0    Push changes of every user
  finsync push --user 3    Push only changes owned by user 3`,
	Run: runPush,
}

func init() {
	pushCmd.Flags().Int64Var(&pushUser, "user", -1, "Only push changes owned by this user id (default from config)")
}

func runPush(cmd *cobra.Command, args []string) {
	c := initSyncContext()

	if err := c.Syncer.EnsureSchema(cmd.Context()); err != nil {
		exitError("%v", err)
	}

	res := c.Syncer.Push(cmd.Context(), scopeFor(c, pushUser))
	printPush(res)
	if res.Status == core.StatusFailed {
		c.Logger.Warn("push failed", "error", res.Err)
		failSync()
	}
}
