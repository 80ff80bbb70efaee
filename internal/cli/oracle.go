package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/daemon"
)

func init() {
	oracleVerifyCmd.Flags().StringVar(&oracleEvidence, "evidence", "", "Evidence URI recorded with the outcome")
	oracleCmd.AddCommand(oracleVerifyCmd)
	rootCmd.AddCommand(oracleCmd)
}

var oracleEvidence string

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Settle mission markets",
}

var oracleVerifyCmd = &cobra.Command{
	Use:   "verify TASK_ID",
	Short: "Resolve a task: YES wins iff the optimization score meets the requirement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oracle, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			v, err := d.Core.Oracle.Verify(cmd.Context(), idemKey, oracle, args[0], oracleEvidence)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), v)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Message)
			return nil
		})
	},
}
