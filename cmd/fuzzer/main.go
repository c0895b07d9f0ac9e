/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the argv fuzzer. Runs a target program
repeatedly with random extra arguments and random stdin until it exits with a
code outside the allow-list or is killed by a signal, then records the failing
case so it can be recreated.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/argv-fuzzer/cmd/fuzzer/commands"
	"github.com/kleascm/argv-fuzzer/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree and binds every flag into viper
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argv-fuzzer",
		Short: "Argv fuzzer - random arguments and stdin until a program fails",
		Long: `Argv fuzzer runs a program over and over with random extra command-line
arguments and random stdin. The first run that exits with a code outside the
allow-list, or is killed by a signal, is written to input-<suffix> and
args-<suffix> so it can be replayed with the recreate command.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().String("log-dir", "", "Log output directory (empty logs to stderr only)")
	rootCmd.PersistentFlags().Int("log-max-files", 10, "Maximum number of log files to keep")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))

	// Add fuzz command
	fuzzCmd := &cobra.Command{
		Use:   "fuzz [flags] <program> [args...]",
		Short: "Fuzz a program's arguments and stdin",
		Long: `Run the program up to --n-tries times. Every run gets the fixed arguments
followed by --n-args random arguments, and --n-input-bytes random bytes on stdin.
Flag parsing stops at the program, so its fixed arguments may start with '-'.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindTrialFlags,
		RunE:    commands.RunFuzz,
	}
	fuzzCmd.Flags().SetInterspersed(false)

	addTrialFlags(fuzzCmd.Flags())
	fuzzCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	fuzzCmd.Flags().String("summary-file", "", "Write a YAML session summary to this file after the run")
	fuzzCmd.Flags().Bool("dry-run", false, "Validate configuration and exit without fuzzing")

	// Mark required flags
	fuzzCmd.MarkFlagRequired("n-tries")

	rootCmd.AddCommand(fuzzCmd)

	// Add recreate command
	recreateCmd := &cobra.Command{
		Use:   "recreate [flags] <program> <suffix>",
		Short: "Replay a recorded failing case",
		Long: `Load input-<suffix> and args-<suffix> and run the program once with the
recorded arguments and stdin, reporting how it terminated.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunRecreate,
	}
	recreateCmd.Flags().String("dir", ".", "Directory holding the recorded files")
	recreateCmd.Flags().IntSlice("ignore", []int{}, "Non-zero exit code to treat as a pass (repeatable)")
	viper.BindPFlag("recreate_dir", recreateCmd.Flags().Lookup("dir"))
	viper.BindPFlag("recreate_ignore", recreateCmd.Flags().Lookup("ignore"))

	rootCmd.AddCommand(recreateCmd)

	// Add check command for built-in self-checks
	checkCmd := &cobra.Command{
		Use:   "check [flags] <program> [args...]",
		Short: "Perform built-in self-checks before fuzzing",
		Long: `Check that the program resolves, the output and log directories are
writable and the trial configuration is valid. Uses the same configuration
keys as the fuzz command, so a config file or ARGFUZZ_* environment can be
validated in CI.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: bindTrialFlags,
		RunE:    commands.PerformSelfCheck,
	}
	checkCmd.Flags().SetInterspersed(false)
	addTrialFlags(checkCmd.Flags())
	rootCmd.AddCommand(checkCmd)

	return rootCmd
}

// trialFlags maps viper keys to the flags shared by fuzz and check
var trialFlags = map[string]string{
	"n_tries":             "n-tries",
	"n_args":              "n-args",
	"max_arg_len":         "max-arg-len",
	"n_input_bytes":       "n-input-bytes",
	"ignore":              "ignore",
	"seed":                "seed",
	"output_dir":          "output-dir",
	"ignore_stdin_errors": "ignore-stdin-errors",
	"metrics_file":        "metrics-file",
	"summary_file":        "summary-file",
	"dry_run":             "dry-run",
}

// addTrialFlags registers the trial configuration flags
func addTrialFlags(flags *pflag.FlagSet) {
	flags.Int("n-tries", 0, "Number of trials to run")
	flags.String("n-args", "0", "Extra arguments per trial (N or A..=B)")
	flags.Int("max-arg-len", core.DefaultMaxArgLen, "Maximum length of a generated argument, in code points")
	flags.String("n-input-bytes", "0", "Stdin bytes per trial (N or A..=B)")
	flags.IntSlice("ignore", []int{}, "Non-zero exit code to treat as a pass (repeatable)")
	flags.Uint64("seed", 0, "Seed for the random stream (0 = random, logged)")
	flags.String("output-dir", ".", "Directory for input-<suffix> and args-<suffix>")
	flags.Bool("ignore-stdin-errors", false, "Classify the run even if stdin could not be fully written")
}

// bindTrialFlags binds the running command's trial flags into viper. fuzz and
// check share keys, and viper holds one binding per key.
func bindTrialFlags(cmd *cobra.Command, args []string) error {
	for key, name := range trialFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}
