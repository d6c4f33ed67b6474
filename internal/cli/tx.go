package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var (
	txUser   int64
	txAmount string
	txDesc   string
	txUsage  string
	txDate   string
	txPaid   bool
	txUnpaid bool
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Book and edit transactions",
	Long: `Commands for editing transactions in the local database. Every change is
recorded in the changelog and sent on the next sync.`,
}

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Book a transaction",
	Long: `Book a transaction. Expenses use a negative amount.

Examples:
  finsync tx add --user 1 --amount -42.10 --desc "Groceries" --usage food
  finsync tx add --user 1 --amount 2500 --desc "Salary" --date 2026-10-01 --paid`,
	Run: runTxAdd,
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's transactions",
	Run:   runTxList,
}

var txPaidCmd = &cobra.Command{
	Use:   "paid <id>",
	Short: "Mark a transaction as paid",
	Args:  cobra.ExactArgs(1),
	Run:   runTxPaid,
}

var txRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a transaction",
	Args:  cobra.ExactArgs(1),
	Run:   runTxRm,
}

func init() {
	txCmd.AddCommand(txAddCmd, txListCmd, txPaidCmd, txRmCmd)

	f := txAddCmd.Flags()
	f.Int64Var(&txUser, "user", 0, "Owner user id")
	f.StringVar(&txAmount, "amount", "", "Amount, negative for expenses")
	f.StringVar(&txDesc, "desc", "", "Description")
	f.StringVar(&txUsage, "usage", "", "Category")
	f.StringVar(&txDate, "date", "", "Booking date (YYYY-MM-DD, default today)")
	f.BoolVar(&txPaid, "paid", false, "Mark as already paid")
	_ = txAddCmd.MarkFlagRequired("user")
	_ = txAddCmd.MarkFlagRequired("amount")

	txListCmd.Flags().Int64Var(&txUser, "user", 0, "Owner user id")
	_ = txListCmd.MarkFlagRequired("user")

	txPaidCmd.Flags().BoolVar(&txUnpaid, "undo", false, "Mark as unpaid instead")
}

// parseID parses a row id argument
func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitError("invalid id %q", arg)
	}
	return id
}

// parseDate parses an optional YYYY-MM-DD flag value
func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		exitError("invalid date %q, expected YYYY-MM-DD", value)
	}
	return d
}

func runTxAdd(cmd *cobra.Command, args []string) {
	c := initContext()

	amount, err := decimal.NewFromString(txAmount)
	if err != nil {
		exitError("invalid amount %q", txAmount)
	}

	t := &models.Transaction{
		UserID:      txUser,
		Date:        parseDate(txDate),
		Description: txDesc,
		Usage:       txUsage,
		Amount:      amount,
		Paid:        txPaid,
	}

	err = c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.CreateTransaction(cmd.Context(), t)
	})
	if err != nil {
		exitError("failed to book transaction: %v", err)
	}

	color.New(color.FgGreen).Printf("Booked transaction %d", t.ID)
	fmt.Printf(" (%s %s)\n", t.Amount.StringFixed(2), t.Description)
}

func runTxList(cmd *cobra.Command, args []string) {
	c := initContext()

	var list []*models.Transaction
	err := c.withStore(cmd.Context(), func(st *store.Store) error {
		var err error
		list, err = st.ListTransactions(cmd.Context(), txUser)
		return err
	})
	if err != nil {
		exitError("failed to list transactions: %v", err)
	}

	if len(list) == 0 {
		fmt.Println("No transactions")
		return
	}

	red := color.New(color.FgRed)
	total := decimal.Zero

	fmt.Printf("  %-6s  %-10s  %12s  %-4s  %-16s  %s\n", "ID", "Date", "Amount", "Paid", "Usage", "Description")
	for _, t := range list {
		paid := ""
		if t.Paid {
			paid = "yes"
		}
		amount := fmt.Sprintf("%12s", t.Amount.StringFixed(2))
		if t.Amount.IsNegative() {
			amount = red.Sprint(amount)
		}
		fmt.Printf("  %-6d  %-10s  %s  %-4s  %-16s  %s\n",
			t.ID, t.Date.Format(dateLayout), amount, paid, t.Usage, t.Description)
		total = total.Add(t.Amount)
	}
	fmt.Printf("\n  Balance: %s\n", total.StringFixed(2))
}

func runTxPaid(cmd *cobra.Command, args []string) {
	c := initContext()
	id := parseID(args[0])

	err := c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.SetTransactionPaid(cmd.Context(), id, !txUnpaid)
	})
	if err != nil {
		exitError("failed to update transaction %d: %v", id, err)
	}

	if txUnpaid {
		fmt.Printf("Marked transaction %d as unpaid\n", id)
	} else {
		fmt.Printf("Marked transaction %d as paid\n", id)
	}
}

func runTxRm(cmd *cobra.Command, args []string) {
	c := initContext()
	id := parseID(args[0])

	err := c.withStore(cmd.Context(), func(st *store.Store) error {
		return st.DeleteTransaction(cmd.Context(), id)
	})
	if err != nil {
		exitError("failed to delete transaction %d: %v", id, err)
	}

	fmt.Printf("Deleted transaction %d\n", id)
}
