package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <trace>",
		Short: "Replay a trace and print memory statistics",
		Long: `The stats command replays an allocation trace and prints the VM's memory statistics
as they stand at the end of the trace, including every block still allocated.

Example:
  njmem stats session.trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts, args[0])
		},
	}
}

func runStats(cmd *cobra.Command, opts *rootOptions, path string) error {
	instance, _, err := replayFile(cmd, opts, path)
	if err != nil {
		if instance != nil {
			_ = destroy(instance)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), instance.Memory().BuildStatsString(true))
	return destroy(instance)
}
