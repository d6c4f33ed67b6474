package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	fixedUser     int64
	fixedAmount   string
	fixedDesc     string
	fixedUsage    string
	fixedMonths   int
	fixedStartDay string
)

var fixedCmd = &cobra.Command{
	Use:   "fixed",
	Short: "Manage recurring fixed costs",
}

var fixedAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a fixed cost booked every month",
	Long: `Add a recurring entry booked once a month for the given number of months.

Examples:
  finsync fixed add --user 1 --amount -950 --desc "Rent" --usage housing --months 12`,
	Run: runFixedAdd,
}

var fixedRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a fixed cost",
	Args:  cobra.ExactArgs(1),
	Run:   runFixedRm,
}

func init() {
	fixedCmd.AddCommand(fixedAddCmd, fixedRmCmd)

	f := fixedAddCmd.Flags()
	f.Int64Var(&fixedUser, "user", 0, "Owner user id")
	f.StringVar(&fixedAmount, "amount", "", "Monthly amount, negative for costs")
	f.StringVar(&fixedDesc, "desc", "", "Description")
	f.StringVar(&fixedUsage, "usage", "", "Category")
	f.IntVar(&fixedMonths, "months", 12, "Number of months")
	f.StringVar(&fixedStartDay, "start", "", "First booking date (YYYY-MM-DD, default today)")
	_ = fixedAddCmd.MarkFlagRequired("user")
	_ = fixedAddCmd.MarkFlagRequired("amount")
}

func runFixedAdd(cmd *cobra.Command, args []string) {
	c := initContext()

	amount, err := decimal.NewFromString(fixedAmount)
	if err != nil {
		exitError("invalid amount %q", fixedAmount)
	}
	if fixedMonths <= 0 {
		exitError("--months must be positive")
	}

	r := &models.RecurringEntry{
		UserID:      fixedUser,
		Description: fixedDesc,
		Usage:       fixedUsage,
		Amount:      amount,
		Duration:    fixedMonths,
		StartDate:   parseDate(fixedStartDay),
	}
	err = c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.CreateRecurringEntry(cmd.Context(), r)
	})
	if err != nil {
		exitError("failed to add fixed cost: %v", err)
	}

	color.New(color.FgGreen).Printf("Added fixed cost %d", r.ID)
	fmt.Printf(" (%s x %d months)\n", r.Amount.StringFixed(2), r.Duration)
}

func runFixedRm(cmd *cobra.Command, args []string) {
	c := initContext()
	id := parseID(args[0])

	err := c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.DeleteRecurringEntry(cmd.Context(), id)
	})
	if err != nil {
		exitError("failed to delete fixed cost %d: %v", id, err)
	}

	fmt.Printf("Deleted fixed cost %d\n", id)
}
