package main

import (
	"fmt"
	"io"

	"github.com/byteninja/njvm/trace"
	"github.com/spf13/cobra"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay a trace and report leaks",
		Long: `The replay command makes every call in an allocation trace against a new VM and
lists the calls that failed and the blocks that were still allocated when the trace ended.
It exits with a failing status if any memory was leaked.

Example:
  njmem replay session.trace
  njmem replay session.trace --limit 65536
  njmem replay session.trace --config njvm.toml --json
  njmem replay session.trace --cbor > session.report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.cborOut, "cbor", false, "Write the result as a CBOR report instead of text")
	return cmd
}

func runReplay(cmd *cobra.Command, opts *rootOptions, path string) error {
	instance, result, err := replayFile(cmd, opts, path)
	if err != nil {
		if instance != nil {
			_ = destroy(instance)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if opts.cborOut {
		data, err := trace.MarshalReport(result.Report())
		if err != nil {
			_ = destroy(instance)
			return err
		}
		_, _ = out.Write(data)
	} else if opts.jsonOut {
		fmt.Fprintln(out, result.BuildJSON())
	} else {
		printResult(out, result)
	}

	err = destroy(instance)
	if err != nil {
		return err
	}

	if len(result.Leaks) > 0 {
		return errLeaksFound
	}

	return nil
}

func printResult(out io.Writer, result *trace.Result) {
	fmt.Fprintf(out, "replayed %d calls, peak %d bytes\n", result.Calls, result.Peak)

	for _, failure := range result.Failures {
		fmt.Fprintf(out, "line %d: %s failed: %s\n", failure.Op.Line, failure.Op, failure.Code)
	}

	if len(result.Leaks) == 0 {
		fmt.Fprintln(out, "no leaks")
		return
	}

	fmt.Fprintln(out, "--- Allocation Report ---")
	for _, leak := range result.Leaks {
		fmt.Fprintf(out, "%s: address: %s, size: %d\n", leak.Name, leak.Address, leak.Size)
	}
	fmt.Fprintf(out, "%d blocks leaked, %d bytes\n", len(result.Leaks), result.LeakedBytes())
}
