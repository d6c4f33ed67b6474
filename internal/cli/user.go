package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	userPassword string
	userAdmin    bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user account",
	Long: `Create a user account in the local database. The password is read from
--password or, when omitted, from the first line of stdin.`,
	Args: cobra.ExactArgs(1),
	Run:  runUserAdd,
}

func init() {
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Account password")
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "Grant admin rights")
}

func runUserAdd(cmd *cobra.Command, args []string) {
	c := initContext()

	password := userPassword
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			exitError("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		exitError("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		exitError("failed to hash password: %v", err)
	}

	u := &models.User{
		Username:     args[0],
		PasswordHash: string(hash),
		IsAdmin:      userAdmin,
	}
	err = c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.CreateUser(cmd.Context(), u)
	})
	if err != nil {
		exitError("failed to create user: %v", err)
	}

	color.New(color.FgGreen).Printf("Created user '%s'", u.Username)
	fmt.Printf(" (id %d)\n", u.ID)
}
