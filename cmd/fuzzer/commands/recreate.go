/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recreate.go
Description: Recreate command implementation for the argv fuzzer. Loads a recorded
failing case (input-<suffix> and args-<suffix>) and re-invokes the program with the
decoded arguments and stdin, reporting how it terminated.
*/

package commands

import (
	"fmt"

	"github.com/kleascm/argv-fuzzer/pkg/artifact"
	"github.com/kleascm/argv-fuzzer/pkg/core"
	"github.com/kleascm/argv-fuzzer/pkg/execution"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunRecreate replays a recorded failing case against program
func RunRecreate(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	program, suffix := args[0], args[1]
	dir := viper.GetString("recreate_dir")
	if dir == "" {
		dir = "."
	}

	rec, err := artifact.Load(dir, suffix)
	if err != nil {
		return fmt.Errorf("failed to load case %s: %w", suffix, err)
	}
	ignored, err := exitCodes("recreate_ignore")
	if err != nil {
		return fmt.Errorf("invalid --ignore: %w", err)
	}
	allow, err := core.NewAllowList(ignored...)
	if err != nil {
		return fmt.Errorf("invalid --ignore: %w", err)
	}

	logger.Info("Replaying recorded case", logrus.Fields{
		"program":     program,
		"suffix":      suffix,
		"args":        len(rec.Args),
		"stdin_bytes": len(rec.Stdin),
	})

	// The args file already holds the fixed arguments, so nothing is prepended
	command := execution.NewCommand(program, rec.StringArgs()...)
	executor := execution.NewProcessExecutor(execution.IgnoreStdinError, logger.GetLogger())
	term, err := executor.Execute(command.Build(), rec.Stdin)
	if err != nil {
		return fmt.Errorf("failed to replay case %s: %w", suffix, err)
	}

	out := cmd.OutOrStdout()
	outcome := core.Classify(term, allow)
	if outcome.Failed() {
		fmt.Fprintln(out, outcome.Message())
		return nil
	}
	fmt.Fprintf(out, "Program exited with allowed %s, the case did not reproduce\n", term)
	return nil
}
