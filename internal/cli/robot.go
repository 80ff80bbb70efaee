package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/daemon"
	"github.com/qor-network/qor/internal/domain"
)

func init() {
	robotRegisterCmd.Flags().StringVar(&robotStake, "stake", "", "Stake to lock, e.g. 0.01 (required)")
	robotRegisterCmd.Flags().StringVar(&robotDescription, "description", "", "Robot description")
	robotRegisterCmd.Flags().StringSliceVar(&robotCapabilities, "capability", nil, "Capability (repeatable)")
	robotRegisterCmd.MarkFlagRequired("stake")

	robotUpdateCmd.Flags().StringVar(&robotDescription, "description", "", "New description")
	robotUpdateCmd.Flags().StringSliceVar(&robotCapabilities, "capability", nil, "Replace capabilities (repeatable)")
	robotUpdateCmd.Flags().StringVar(&robotAddStake, "add-stake", "", "Additional stake to lock, e.g. 0.5")

	robotCmd.AddCommand(robotRegisterCmd, robotListCmd, robotShowCmd, robotUpdateCmd, robotRmCmd)
	rootCmd.AddCommand(robotCmd)
}

var (
	robotStake        string
	robotDescription  string
	robotCapabilities []string
	robotAddStake     string
)

var robotCmd = &cobra.Command{
	Use:   "robot",
	Short: "Register and manage robots",
}

var robotRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a robot owned by --as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			stake, err := amount(d, "stake", robotStake)
			if err != nil {
				return err
			}
			r, err := d.Core.Registry.Register(cmd.Context(), idemKey, registry.Registration{
				Name:         args[0],
				Owner:        owner,
				Description:  robotDescription,
				Capabilities: robotCapabilities,
				Stake:        stake,
			})
			if err != nil {
				return err
			}
			return printRobot(cmd, d, r)
		})
	},
}

var robotListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered robots",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			robots, err := d.Core.Registry.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), robots)
			}
			if len(robots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No robots registered. Run 'qor robot register <name> --stake <amount>' to add one.")
				return nil
			}

			w := table(cmd)
			fmt.Fprintln(w, "ID\tNAME\tOWNER\tSTAKE\tREPUTATION\tACTIVE")
			for _, r := range robots {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
					r.ID, r.Name, r.Owner, display(d, r.Stake), r.Reputation, r.Active)
			}
			return w.Flush()
		})
	},
}

var robotShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a robot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			r, err := d.Core.Registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRobot(cmd, d, r)
		})
	},
}

var robotUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a robot's description, capabilities or stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			var upd registry.RobotUpdate
			if cmd.Flags().Changed("description") {
				upd.Description = &robotDescription
			}
			if cmd.Flags().Changed("capability") {
				upd.Capabilities = &robotCapabilities
			}
			if robotAddStake != "" {
				if upd.StakeIncrease, err = amount(d, "add-stake", robotAddStake); err != nil {
					return err
				}
			}
			r, err := d.Core.Registry.Update(cmd.Context(), idemKey, args[0], owner, upd)
			if err != nil {
				return err
			}
			return printRobot(cmd, d, r)
		})
	},
}

var robotRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a robot and release its stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			r, err := d.Core.Registry.Delete(cmd.Context(), idemKey, args[0], owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted robot %s, released %s\n", r.ID, display(d, r.Stake))
			return nil
		})
	},
}

func printRobot(cmd *cobra.Command, d *daemon.Daemon, r *domain.Robot) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), r)
	}
	w := table(cmd)
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Name:\t%s\n", r.Name)
	fmt.Fprintf(w, "Owner:\t%s\n", r.Owner)
	fmt.Fprintf(w, "Stake:\t%s\n", display(d, r.Stake))
	fmt.Fprintf(w, "Reputation:\t%d\n", r.Reputation)
	fmt.Fprintf(w, "Active:\t%t\n", r.Active)
	if r.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", r.Description)
	}
	if len(r.Capabilities) > 0 {
		fmt.Fprintf(w, "Capabilities:\t%s\n", strings.Join(r.Capabilities, ", "))
	}
	fmt.Fprintf(w, "Metadata:\t%s\n", r.MetadataURI)
	fmt.Fprintf(w, "Registered:\t%s\n", timeOrDash(r.RegisteredAt))
	return w.Flush()
}
