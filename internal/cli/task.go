package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/daemon"
	"github.com/qor-network/qor/internal/domain"
)

func init() {
	taskCreateCmd.Flags().StringVar(&taskRobot, "robot", "", "Assigned robot id (required)")
	taskCreateCmd.Flags().StringVar(&taskTitle, "title", "", "Mission title (required)")
	taskCreateCmd.Flags().StringVar(&taskDescription, "description", "", "Mission description")
	taskCreateCmd.Flags().StringArrayVar(&taskWaypoints, "waypoint", nil, "Waypoint as lat,lng[,action] (repeatable, in order)")
	taskCreateCmd.Flags().StringVar(&taskDeadline, "deadline", "24h", "Deadline as a duration from now or an RFC 3339 time")
	taskCreateCmd.Flags().IntVar(&taskRequiredScore, "required-score", 0, "Score in [0,100] the solution must reach")
	taskCreateCmd.MarkFlagRequired("robot")
	taskCreateCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (OPEN or RESOLVED)")
	taskListCmd.Flags().StringVar(&taskRobot, "robot", "", "Filter by robot id")

	taskBuyCmd.Flags().StringVar(&taskSide, "side", "", "YES or NO (required)")
	taskBuyCmd.Flags().StringVar(&taskAmount, "amount", "", "Amount to deposit, e.g. 0.01 (required)")
	taskBuyCmd.MarkFlagRequired("side")
	taskBuyCmd.MarkFlagRequired("amount")

	taskSolutionCmd.Flags().StringVar(&taskSolutionURI, "uri", "", "Solution URI (required)")
	taskSolutionCmd.Flags().IntVar(&taskScore, "score", 0, "Optimization score in [0,100]")
	taskSolutionCmd.MarkFlagRequired("uri")

	taskDeadlineCmd.Flags().StringVar(&taskDeadline, "deadline", "", "New deadline as a duration from now or an RFC 3339 time (required)")
	taskDeadlineCmd.MarkFlagRequired("deadline")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskBuyCmd,
		taskSolutionCmd, taskRedeemCmd, taskDeadlineCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

var (
	taskRobot         string
	taskTitle         string
	taskDescription   string
	taskWaypoints     []string
	taskDeadline      string
	taskRequiredScore int
	taskStatus        string
	taskSide          string
	taskAmount        string
	taskSolutionURI   string
	taskScore         int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and trade mission markets",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a mission market for an active robot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		waypoints := make([]domain.Waypoint, 0, len(taskWaypoints))
		for _, s := range taskWaypoints {
			wp, err := parseWaypoint(s)
			if err != nil {
				return err
			}
			waypoints = append(waypoints, wp)
		}
		deadline, err := parseDeadline(taskDeadline)
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			t, err := d.Core.Market.CreateTask(cmd.Context(), idemKey, market.NewTask{
				RobotID:       taskRobot,
				Title:         taskTitle,
				Description:   taskDescription,
				Waypoints:     waypoints,
				Deadline:      deadline,
				RequiredScore: taskRequiredScore,
			})
			if err != nil {
				return err
			}
			return printTask(cmd, d, t, nil)
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List mission markets",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			tasks, err := d.Core.Market.List(cmd.Context(), domain.TaskFilter{
				Status:  domain.TaskStatus(taskStatus),
				RobotID: taskRobot,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}

			w := table(cmd)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tYES\tNO\tREQUIRED\tDEADLINE")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					t.ID, t.Title, t.Status, display(d, t.YesPool), display(d, t.NoPool),
					t.RequiredScore, timeOrDash(t.Deadline))
			}
			return w.Flush()
		})
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a mission market and its positions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(func(d *daemon.Daemon) error {
			t, err := d.Core.Market.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			positions, err := d.Core.Market.Positions(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			return printTask(cmd, d, t, positions)
		})
	},
}

var taskBuyCmd = &cobra.Command{
	Use:   "buy ID",
	Short: "Deposit on a side; one minor unit buys one share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := caller()
		if err != nil {
			return err
		}
		side, err := domain.ParseSide(taskSide)
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			amt, err := amount(d, "amount", taskAmount)
			if err != nil {
				return err
			}
			trade, err := d.Core.Market.Buy(cmd.Context(), idemKey, args[0], user, side, amt)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), trade)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bought %s %s shares (position %s). Pools: YES %s / NO %s\n",
				display(d, trade.Position.Shares), trade.Position.Side, trade.Position.ID,
				display(d, trade.Task.YesPool), display(d, trade.Task.NoPool))
			return nil
		})
	},
}

var taskSolutionCmd = &cobra.Command{
	Use:   "solution ID",
	Short: "Record the optimizer's solution and score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		optimizer, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			t, err := d.Core.Market.SetSolution(cmd.Context(), idemKey, optimizer, args[0], taskSolutionURI, taskScore)
			if err != nil {
				return err
			}
			return printTask(cmd, d, t, nil)
		})
	},
}

var taskRedeemCmd = &cobra.Command{
	Use:   "redeem ID",
	Short: "Redeem winning positions on a resolved task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			red, err := d.Core.Market.Redeem(cmd.Context(), idemKey, args[0], user)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), red)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Redeemed %d %s position(s): paid %s\n",
				len(red.Positions), red.Side, display(d, red.Payout))
			return nil
		})
	},
}

var taskDeadlineCmd = &cobra.Command{
	Use:   "deadline ID",
	Short: "Move an open task's deadline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		deadline, err := parseDeadline(taskDeadline)
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			t, err := d.Core.Market.UpdateDeadline(cmd.Context(), idemKey, args[0], owner, deadline)
			if err != nil {
				return err
			}
			return printTask(cmd, d, t, nil)
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a task nobody has traded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		return withDaemon(func(d *daemon.Daemon) error {
			t, err := d.Core.Market.Delete(cmd.Context(), idemKey, args[0], owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", t.ID)
			return nil
		})
	},
}

func printTask(cmd *cobra.Command, d *daemon.Daemon, t *domain.Task, positions []domain.Position) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), struct {
			*domain.Task
			Positions []domain.Position `json:"positions,omitempty"`
		}{t, positions})
	}
	w := table(cmd)
	fmt.Fprintf(w, "ID:\t%s\n", t.ID)
	fmt.Fprintf(w, "Title:\t%s\n", t.Title)
	fmt.Fprintf(w, "Robot:\t%s\n", t.RobotID)
	fmt.Fprintf(w, "Status:\t%s\n", t.Status)
	fmt.Fprintf(w, "Deadline:\t%s\n", timeOrDash(t.Deadline))
	fmt.Fprintf(w, "Required score:\t%d\n", t.RequiredScore)
	fmt.Fprintf(w, "Pools:\tYES %s / NO %s\n", display(d, t.YesPool), display(d, t.NoPool))
	fmt.Fprintf(w, "Waypoints:\t%d\n", len(t.Waypoints))
	if t.Optimized() && t.OptimizationScore != nil {
		fmt.Fprintf(w, "Solution:\t%s (score %d)\n", t.SolutionURI, *t.OptimizationScore)
	}
	if t.Status == domain.TaskResolved && t.Success != nil {
		fmt.Fprintf(w, "Outcome:\t%s wins (evidence %s)\n", t.WinningSide(), t.EvidenceURI)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(positions) == 0 {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout())
	w = table(cmd)
	fmt.Fprintln(w, "POSITION\tUSER\tSIDE\tSHARES\tREDEEMED")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.User, p.Side, display(d, p.Shares), p.Redeemed)
	}
	return w.Flush()
}
