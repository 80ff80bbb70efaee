package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/app/governance"
	"github.com/qor-network/qor/internal/daemon"
	"github.com/qor-network/qor/internal/domain"
)

func init() {
	daoProposeCmd.Flags().StringVar(&daoTitle, "title", "", "Proposal title (required)")
	daoProposeCmd.Flags().StringVar(&daoDescription, "description", "", "Proposal description")
	daoProposeCmd.Flags().StringVar(&daoAction, "action", "", "Action applied on execution, e.g. registry.min_stake=2000000")
	daoProposeCmd.MarkFlagRequired("title")

	daoListCmd.Flags().StringVar(&daoStatus, "status", "", "Filter by status (ACTIVE, EXECUTED, WITHDRAWN)")

	daoVoteCmd.Flags().StringVar(&daoSupport, "support", "", "yes or no (required)")
	daoVoteCmd.Flags().Int64Var(&daoWeight, "weight", 1, "Vote weight (ignored under flat weighting)")
	daoVoteCmd.MarkFlagRequired("support")

	daoCmd.AddCommand(daoProposeCmd, daoListCmd, daoShowCmd, daoVoteCmd, daoExecuteCmd, daoWithdrawCmd, daoRmCmd)
	rootCmd.AddCommand(daoCmd)
}

var (
	daoTitle       string
	daoDescription string
	daoAction      string
	daoStatus      string
	daoSupport     string
	daoWeight      int64
)

var daoCmd = &cobra.Command{
	Use:   "dao",
	Short: "Propose and vote on network changes",
}

var daoProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Create a proposal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proposer, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Propose(cmd.Context(), idemKey, governance.NewProposal{
				Title:       daoTitle,
				Description: daoDescription,
				Action:      daoAction,
				Proposer:    proposer,
			})
			if err != nil {
				return err
			}
			return printProposal(cmd, d, p)
		})
	},
}

var daoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List proposals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			ps, err := d.Core.Governance.List(cmd.Context(), domain.ProposalStatus(strings.ToUpper(daoStatus)))
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), ps)
			}
			if len(ps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No proposals.")
				return nil
			}

			w := table(cmd)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tYES\tNO\tPROPOSER")
			for _, p := range ps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", p.ID, p.Title, p.Status, p.YesVotes, p.NoVotes, p.Proposer)
			}
			return w.Flush()
		})
	},
}

var daoShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printProposal(cmd, d, p)
		})
	},
}

var daoVoteCmd = &cobra.Command{
	Use:   "vote ID",
	Short: "Vote on an active proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voter, err := caller()
		if err != nil {
			return err
		}
		var support bool
		switch strings.ToLower(daoSupport) {
		case "yes", "y", "true":
			support = true
		case "no", "n", "false":
		default:
			return domain.Invalid(domain.ErrInvalidInput, "--support %q: want yes or no", daoSupport)
		}
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Vote(cmd.Context(), idemKey, args[0], voter, support, daoWeight)
			if err != nil {
				return err
			}
			return printProposal(cmd, d, p)
		})
	},
}

var daoExecuteCmd = &cobra.Command{
	Use:   "execute ID",
	Short: "Execute a proposal that reached quorum with a yes majority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Execute(cmd.Context(), idemKey, args[0])
			if err != nil {
				return err
			}
			return printProposal(cmd, d, p)
		})
	},
}

var daoWithdrawCmd = &cobra.Command{
	Use:   "withdraw ID",
	Short: "Withdraw your proposal before anyone votes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proposer, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Withdraw(cmd.Context(), idemKey, args[0], proposer)
			if err != nil {
				return err
			}
			return printProposal(cmd, d, p)
		})
	},
}

var daoRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete your proposal before anyone votes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proposer, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			p, err := d.Core.Governance.Delete(cmd.Context(), idemKey, args[0], proposer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted proposal %s\n", p.ID)
			return nil
		})
	},
}

func printProposal(cmd *cobra.Command, d *daemon.Daemon, p *domain.Proposal) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}
	w := table(cmd)
	fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	fmt.Fprintf(w, "Title:\t%s\n", p.Title)
	fmt.Fprintf(w, "Status:\t%s\n", p.Status)
	fmt.Fprintf(w, "Proposer:\t%s\n", p.Proposer)
	if p.Action != "" {
		fmt.Fprintf(w, "Action:\t%s\n", p.Action)
	}
	fmt.Fprintf(w, "Votes:\t%d yes / %d no (quorum %d)\n", p.YesVotes, p.NoVotes, d.Core.Policy.Quorum)
	if p.Status == domain.ProposalExecuted {
		fmt.Fprintf(w, "Executed:\t%s\n", timeOrDash(p.ExecutedAt))
	}
	return w.Flush()
}
