package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/spf13/cobra"
)

var syncUser int64

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local changes, then pull remote ones",
	Long: `Run one sync cycle: send the local changelog to the server and apply
everything the server has received since the last pull.

Nothing is lost when the server cannot be reached. Local changes stay in the
changelog and are sent on the next sync.`,
	Run: runSync,
}

func init() {
	syncCmd.Flags().Int64Var(&syncUser, "user", -1, "Only push changes owned by this user id (default from config)")
}

// scopeFor picks the push scope from the flag value, falling back to the config
func scopeFor(c *cmdContext, flag int64) models.Scope {
	if flag >= 0 {
		return models.UserScope(flag)
	}
	return models.UserScope(c.Config.UserID)
}

func runSync(cmd *cobra.Command, args []string) {
	c := initSyncContext()

	res := c.Syncer.Sync(cmd.Context(), scopeFor(c, syncUser))
	if res.SchemaErr != nil {
		c.Logger.Error("sync aborted", "error", res.SchemaErr)
		failSync()
	}

	printPush(res.Push)
	printPull(res.Pull)

	if !res.OK() {
		c.Logger.Warn("sync incomplete", "error", res.Err())
		failSync()
	}
}

// failSync prints the user-facing failure notice and exits
func failSync() {
	color.New(color.FgRed).Fprintln(os.Stderr, "Sync failed, changes kept for next run.")
	os.Exit(1)
}

func printPush(r *core.PushResult) {
	if r == nil {
		return
	}
	switch r.Status {
	case core.StatusNoop:
		fmt.Println("Nothing to push.")
	case core.StatusOK:
		color.New(color.FgGreen).Printf("Pushed %d change(s)\n", r.Pushed)
	case core.StatusFailed:
		color.New(color.FgYellow).Println("Push failed, local changes kept.")
	}
}

func printPull(r *core.PullResult) {
	if r == nil {
		return
	}
	switch r.Status {
	case core.StatusNoop:
		fmt.Println("Already up-to-date.")
	case core.StatusOK:
		green := color.New(color.FgGreen)
		green.Printf("Pulled %d change(s)", r.Received)
		fmt.Printf(", applied %d", r.Stats.Applied)
		if skipped := r.Dropped + r.Stats.Malformed + r.Stats.Unknown; skipped > 0 {
			color.New(color.FgYellow).Printf(", skipped %d", skipped)
		}
		fmt.Println()
	case core.StatusFailed:
		color.New(color.FgYellow).Println("Pull failed, nothing applied.")
	}
}
