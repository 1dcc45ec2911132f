// Package cli contains the ocswarm cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/ocswarm/internal/config"
	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/wire"
)

// RunCmd returns the run command group.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create and drive orchestration runs",
	}
	cmd.AddCommand(runInitCmd())
	cmd.AddCommand(runStartCmd())
	cmd.AddCommand(runShowCmd())
	cmd.AddCommand(runEventsCmd())
	cmd.AddCommand(runCancelCmd())
	return cmd
}

func runInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a skeleton orchestration package",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "package.json"
			if len(args) == 1 {
				path = args[0]
			}
			pack := &models.OrchestrationPackage{
				Objective: models.Objective{Title: "describe the objective"},
			}
			config.ApplyDefaults(pack)
			if err := config.SavePackage(path, pack); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func runStartCmd() *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "start <package.json>",
		Short: "Create a run from a package and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pack, err := config.LoadPackage(args[0])
			if err != nil {
				return err
			}

			svc := wire.RunService()
			run, err := svc.CreateRun(ctx, pack)
			if err != nil {
				return fmt.Errorf("failed to create run: %w", err)
			}
			fmt.Printf("created %s\n", color.New(color.FgCyan).Sprint(run.ID))

			if detach {
				go func() {
					_ = svc.ExecuteRun(context.Background(), run.ID)
				}()
				fmt.Println("executing in background; follow with: ocswarm run events", run.ID, "--follow")
				return nil
			}

			if err := svc.ExecuteRun(ctx, run.ID); err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}
			view, err := svc.GetRun(ctx, run.ID)
			if err != nil {
				return err
			}
			printRunSummary(view.Run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "return immediately, run in background")
	return cmd
}

func runShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its ledger counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := wire.RunService().GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			printRunSummary(view.Run)

			c := view.Counters
			fmt.Printf("  events: %d  results: %d  evidence: %d  artifacts: %d\n",
				c.Events, c.Results, c.Evidence, c.Artifacts)
			for status, n := range c.TasksByStatus {
				fmt.Printf("  tasks %s: %d\n", status, n)
			}
			return nil
		},
	}
}

func runEventsCmd() *cobra.Command {
	var after int64
	var follow bool

	cmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Replay a run's event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runID := args[0]
			svc := wire.RunService()

			cursor := after
			for {
				events, err := svc.ListEvents(ctx, runID, cursor, 0)
				if err != nil {
					return fmt.Errorf("failed to list events: %w", err)
				}
				for _, ev := range events {
					printEvent(ev)
					cursor = ev.EventID
				}

				if !follow {
					return nil
				}
				view, err := svc.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				if view.Run.Status.Terminal() && len(events) == 0 {
					return nil
				}
				time.Sleep(time.Second)
			}
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "replay from this event id (exclusive)")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep polling until the run is terminal")
	return cmd
}

func runCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Request cooperative cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.RunService().CancelRun(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}
			fmt.Println("cancellation requested; the engine honors it at the next policy check")
			return nil
		},
	}
}

func printRunSummary(run *models.RunRecord) {
	fmt.Printf("%s  %s", run.ID, statusColor(run.Status).Sprint(string(run.Status)))
	if run.Reason != "" {
		fmt.Printf(" (%s)", run.Reason)
	}
	fmt.Println()
	fmt.Printf("  objective: %s\n", run.Pack.Objective.Title)
	fmt.Printf("  tokens: %d  cost: %.4f\n", run.TokensUsed, run.CostUsed)
	if run.StartedAt != nil && run.FinishedAt != nil {
		fmt.Printf("  duration: %s\n", run.FinishedAt.Sub(*run.StartedAt).Round(time.Second))
	}
}

func printEvent(ev *models.RunEvent) {
	line := fmt.Sprintf("%6d  %-32s", ev.EventID, ev.Type)
	if len(ev.Data) > 0 {
		var compact json.RawMessage = ev.Data
		line += "  " + string(compact)
	}
	fmt.Println(line)
}

func statusColor(status models.RunStatus) *color.Color {
	switch status {
	case models.RunSucceeded:
		return color.New(color.FgGreen)
	case models.RunFailed:
		return color.New(color.FgRed)
	case models.RunCanceled, models.RunTimedOut:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
