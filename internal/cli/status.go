package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local sync state",
	Long:  `Show the configured remote, the number of unsent local changes and the pull watermark.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	c := initContext()

	var pending int
	err := c.withStore(cmd.Context(), func(st *store.Store) error {
		var err error
		pending, err = st.CountPendingChanges(cmd.Context())
		return err
	})
	if err != nil {
		exitError("failed to read changelog: %v", err)
	}

	watermark, err := c.Watermark.Load()
	if err != nil {
		exitError("%v", err)
	}

	yellow := color.New(color.FgYellow)

	if c.Config.RemoteURL != "" {
		fmt.Printf("Remote: %s\n", c.Config.RemoteURL)
	} else {
		yellow.Println("Remote: not configured")
	}
	if c.Config.UserID != 0 {
		fmt.Printf("Push scope: user %d\n", c.Config.UserID)
	} else {
		fmt.Println("Push scope: all users")
	}

	if pending == 0 {
		fmt.Println("Nothing to push, changelog is empty")
	} else {
		yellow.Printf("%d change(s) waiting to be pushed\n", pending)
	}

	if watermark == "" {
		fmt.Println("Never pulled")
	} else {
		fmt.Printf("Last pulled change: %s\n", watermark)
	}
}
