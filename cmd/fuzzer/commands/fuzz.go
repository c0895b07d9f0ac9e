/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzz.go
Description: Fuzz command implementation for the argv fuzzer. Builds the trial
configuration from flags, config file and environment, wires the executor,
recorder and reporters into the engine, runs the trial loop and writes the
optional metrics and summary files.
*/

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/kleascm/argv-fuzzer/pkg/bounds"
	"github.com/kleascm/argv-fuzzer/pkg/core"
	"github.com/kleascm/argv-fuzzer/pkg/execution"
	"github.com/kleascm/argv-fuzzer/pkg/logging"
	"github.com/kleascm/argv-fuzzer/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunFuzz executes the fuzzing session
func RunFuzz(cmd *cobra.Command, args []string) error {
	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	config, err := createTrialConfig(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if viper.GetBool("dry_run") {
		return performDryRun(out, config)
	}

	engine := core.NewEngine()
	engine.SetExecutor(execution.NewProcessExecutor(config.StdinPolicy, logger.GetLogger()))
	engine.AddReporter(core.NewLoggerReporter(logger))

	var metrics *core.PrometheusReporter
	if viper.GetString("metrics_file") != "" {
		metrics = core.NewPrometheusReporter()
		engine.AddReporter(metrics)
	}

	if err := engine.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	logger.Info("Session started", logrus.Fields{
		"session_id": engine.SessionID(),
		"seed":       engine.Seed(),
		"program":    config.Program,
		"n_tries":    config.Tries,
		"n_args":     config.ArgCount.String(),
		"stdin":      config.InputBytes.String(),
	})

	report, runErr := engine.Run()

	if err := writeSessionOutputs(logger, config, report, runErr, metrics); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	printResult(out, report)
	return nil
}

// createTrialConfig builds a validated trial configuration. args holds the
// program followed by its fixed arguments.
func createTrialConfig(args []string) (*core.TrialConfig, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: target program is required", core.ErrInvalidConfig)
	}

	argCount, err := bounds.Parse[int](viper.GetString("n_args"))
	if err != nil {
		return nil, fmt.Errorf("invalid --n-args: %w", err)
	}
	inputBytes, err := bounds.Parse[int](viper.GetString("n_input_bytes"))
	if err != nil {
		return nil, fmt.Errorf("invalid --n-input-bytes: %w", err)
	}
	ignored, err := exitCodes("ignore")
	if err != nil {
		return nil, fmt.Errorf("invalid --ignore: %w", err)
	}
	allow, err := core.NewAllowList(ignored...)
	if err != nil {
		return nil, fmt.Errorf("invalid --ignore: %w", err)
	}

	policy := execution.AbortOnStdinError
	if viper.GetBool("ignore_stdin_errors") {
		policy = execution.IgnoreStdinError
	}

	config := &core.TrialConfig{
		Program:     args[0],
		Args:        args[1:],
		Tries:       viper.GetInt("n_tries"),
		ArgCount:    argCount,
		MaxArgLen:   viper.GetInt("max_arg_len"),
		InputBytes:  inputBytes,
		Allow:       allow,
		OutputDir:   outputDir(),
		Seed:        viper.GetUint64("seed"),
		StdinPolicy: policy,
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// writeSessionOutputs writes the metrics textfile and the YAML summary when
// they are configured
func writeSessionOutputs(logger *logging.Logger, config *core.TrialConfig, report *core.RunReport, runErr error, metrics *core.PrometheusReporter) error {
	if metrics != nil {
		path := viper.GetString("metrics_file")
		if err := metrics.WriteTextfile(path); err != nil {
			return err
		}
		logger.Debug("Metrics written", logrus.Fields{"path": path})
	}

	if path := viper.GetString("summary_file"); path != "" && report != nil {
		if err := utils.WriteSessionSummary(path, utils.NewSessionSummary(config, report, runErr)); err != nil {
			return err
		}
		logger.Debug("Summary written", logrus.Fields{"path": path})
	}
	return nil
}

// printResult prints the outcome of the session to stdout
func printResult(out io.Writer, report *core.RunReport) {
	switch report.State {
	case core.StateFoundFailure:
		fmt.Fprintln(out, report.Outcome.Message())
		fmt.Fprintf(out, "Trials: %d\n", report.Trials)
		fmt.Fprintf(out, "Stdin written to %s\n", report.Record.InputPath)
		fmt.Fprintf(out, "Arguments written to %s\n", report.Record.ArgsPath)
		fmt.Fprintf(out, "Seed: %d\n", report.Seed)
	default:
		fmt.Fprintln(out, "Could not produce a failing state")
		fmt.Fprintf(out, "Trials: %d in %v\n", report.Trials, report.Duration.Round(time.Millisecond))
	}
}

// performDryRun validates the configuration and the environment without
// running any trial
func performDryRun(out io.Writer, config *core.TrialConfig) error {
	fmt.Fprintln(out, "🔍 Performing dry run validation...")
	fmt.Fprintln(out)

	program, err := resolveProgram(config.Program)
	if err != nil {
		return fmt.Errorf("target program validation failed: %w", err)
	}
	fmt.Fprintf(out, "✅ Target program: %s\n", program)

	if err := checkWritableDir(config.OutputDir); err != nil {
		return fmt.Errorf("output directory validation failed: %w", err)
	}
	fmt.Fprintf(out, "✅ Output directory: %s\n", config.OutputDir)

	fmt.Fprintf(out, "✅ Trials: %d\n", config.Tries)
	fmt.Fprintf(out, "✅ Extra arguments per trial: %s (max %d code points each)\n", config.ArgCount, config.MaxArgLen)
	fmt.Fprintf(out, "✅ Stdin bytes per trial: %s\n", config.InputBytes)
	fmt.Fprintf(out, "✅ Allowed exit codes: %v\n", config.Allow.Codes())
	fmt.Fprintf(out, "✅ Stdin errors: %s\n", config.StdinPolicy)

	fmt.Fprintln(out, "\n✨ Dry run validation completed successfully!")
	return nil
}
