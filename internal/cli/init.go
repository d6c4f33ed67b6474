package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/config"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a finsync project",
	Long: `Initialize finsync in the current directory.
This creates a .finsync directory holding the config, the local database
and the pull watermark.`,
	Run: runInit,
}

var (
	initRemote string
	initToken  string
	initUser   int64
)

func init() {
	initCmd.Flags().StringVar(&initRemote, "remote", "", "Sync server URL")
	initCmd.Flags().StringVar(&initToken, "token", "", "Bearer token for the sync server")
	initCmd.Flags().Int64Var(&initUser, "user", 0, "Only push changes owned by this user id")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindRoot(); err == nil {
		exitError("finsync project already exists")
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	cfg, err := config.Initialize(cwd, initRemote)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}
	if initToken != "" || initUser != 0 {
		cfg.Token, cfg.UserID = initToken, initUser
		if err := cfg.Save(); err != nil {
			exitError("failed to save config: %v", err)
		}
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to create store: %v", err)
	}
	defer st.Close()

	if err := st.Bootstrap(cmd.Context()); err != nil {
		exitError("failed to initialize store: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Initialized finsync in %s/\n", config.Dir)
	if initRemote != "" {
		fmt.Printf("Syncing with %s\n", initRemote)
	} else {
		color.New(color.FgYellow).Println("No remote set, add remote_url to the config to enable sync.")
	}
}
