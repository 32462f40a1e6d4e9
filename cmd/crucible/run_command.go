package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a prediction run over a train/test split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.taskID == "" {
				opts.taskID = uuid.NewString()
			}
			return executeRun(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.trainPath, "train", "", "Path to the training CSV (reference samples with measured targets)")
	cmd.Flags().StringVar(&opts.testPath, "test", "", "Path to the test CSV (samples to predict)")
	cmd.Flags().StringArrayVarP(&opts.targets, "target", "t", nil, "Target property column (repeatable)")
	cmd.Flags().StringVar(&opts.taskID, "task-id", "", "Task identifier (defaults to a new UUID)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a checkpointed run from its last completed round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.taskID = args[0]
			opts.resume = true
			return executeRun(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.trainPath, "train", "", "Path to the training CSV used by the original run")
	cmd.Flags().StringVar(&opts.testPath, "test", "", "Path to the test CSV used by the original run")
	cmd.Flags().StringArrayVarP(&opts.targets, "target", "t", nil, "Target property column (repeatable)")
	cmd.Flags().StringVar(&opts.copyFrom, "from", "", "Clone history from this task id before resuming")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
