package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crucible/internal/checkpoint"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show checkpointed runs, or per-sample progress for one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				return printRunList(cmd, store)
			}
			return printTaskStatus(cmd, store, cfg.Run.ConvergenceThreshold, cfg.Run.MinAbsoluteChange, args[0])
		},
	}
}

func printRunList(cmd *cobra.Command, store *checkpoint.Store) error {
	runs, err := store.ListRuns(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No checkpointed runs")
		return nil
	}

	fmt.Fprintln(out, renderRunListTable(runs))
	return nil
}

func printTaskStatus(cmd *cobra.Command, store *checkpoint.Store, threshold, minAbsoluteChange float64, taskID string) error {
	state, err := store.LoadState(cmd.Context(), taskID, threshold, minAbsoluteChange)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("task %s has no checkpoint", taskID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %s, last completed round %d of %d\n", taskID, state.Round, state.MaxIterations)
	fmt.Fprintln(out, renderSampleTable(state, shouldColorize(out)))
	return nil
}
