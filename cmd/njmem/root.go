package main

import (
	"fmt"
	"io"
	"os"

	"github.com/byteninja/njvm/config"
	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/trace"
	"github.com/byteninja/njvm/vm"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

// errLeaksFound is returned by commands that found unreleased memory, so that the process exits
// with a failing status
var errLeaksFound = errors.New("memory was leaked")

type rootOptions struct {
	configPath string
	limit      int
	jsonOut    bool
	cborOut    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "njmem",
		Short: "Replay allocation traces against the njvm memory tracker",
		Long: `njmem replays recorded allocation traces against a VM instance configured the same
way as the interpreter, and reports the calls that failed and the memory that was never released.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "VM configuration file (TOML)")
	rootCmd.PersistentFlags().IntVar(&opts.limit, "limit", 0, "Byte budget, overriding the configuration file (0 for no limit)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every memory call")

	rootCmd.AddCommand(newReplayCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	return rootCmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errLeaksFound) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadOptions builds the VM options from the configuration file and command line flags
func loadOptions(cmd *cobra.Command, opts *rootOptions) (vm.Options, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return vm.Options{}, err
		}
	}

	if cmd.Flags().Changed("limit") {
		cfg.Memory.Limit = opts.limit
	}

	if opts.verbose {
		cfg.Memory.Debug = true
	}

	err := cfg.Validate()
	if err != nil {
		return vm.Options{}, err
	}

	return cfg.Options()
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// replayFile parses the trace at path and replays it against a new VM. The VM is returned so
// that the caller can inspect it before destroying it.
func replayFile(cmd *cobra.Command, opts *rootOptions, path string) (*vm.VM, *trace.Result, error) {
	options, err := loadOptions(cmd, opts)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot open trace %s", path)
	}
	defer file.Close()

	ops, err := trace.Parse(file)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parse error in %s", path)
	}

	instance, err := vm.New(newLogger(cmd.ErrOrStderr(), opts.verbose), options)
	if err != nil {
		return nil, nil, err
	}

	result, err := trace.Replay(instance, ops)
	if err != nil {
		return instance, nil, errors.Wrapf(err, "replay of %s failed", path)
	}

	return instance, result, nil
}

// destroy tears down the VM after a replay. Leaks have already been reported from the replay
// result, so a leak error is not reported again.
func destroy(instance *vm.VM) error {
	err := instance.Destroy()
	if err != nil && !errors.Is(err, memory.ErrLeakDetected) {
		return err
	}

	return nil
}
