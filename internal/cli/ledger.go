package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/daemon"
	"github.com/qor-network/qor/internal/domain"
)

func init() {
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "Number of entries to show")
	rootCmd.AddCommand(ledgerCmd)
}

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger ACCOUNT",
	Short: "Show a journal account's balance and recent entries",
	Long: `Show a journal account. ACCOUNT is user:<id>, stake:<robot> or escrow:<task>;
a bare name is read as user:<name>.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := args[0]
		if !strings.Contains(account, ":") {
			account = domain.UserAccount(account)
		}
		return withDaemon(func(d *daemon.Daemon) error {
			balance, entries, err := d.Core.Account(cmd.Context(), account, ledgerLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"account": account,
					"balance": balance,
					"entries": entries,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %s\n", account, display(d, balance))
			if len(entries) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout())
			w := table(cmd)
			fmt.Fprintln(w, "TIME\tTYPE\tENTRY\tAMOUNT\tBALANCE\tREF")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					timeOrDash(e.Timestamp), e.Type, e.EntryType,
					display(d, e.Amount), display(d, e.Balance), e.Ref)
			}
			return w.Flush()
		})
	},
}
