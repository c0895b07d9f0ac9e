/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: summary_writer.go
Description: Utility for writing a session summary after a fuzzing run.
Captures the run configuration, the final state and the recorded failing case
as YAML so a run can be inspected or replayed with the same seed later.
*/

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kleascm/argv-fuzzer/pkg/core"
	"gopkg.in/yaml.v3"
)

// SessionSummary is the YAML document written after a run
type SessionSummary struct {
	SessionID   string          `yaml:"session_id"`
	Seed        uint64          `yaml:"seed"`
	StartedAt   time.Time       `yaml:"started_at"`
	Duration    string          `yaml:"duration"`
	State       string          `yaml:"state"`
	Trials      int             `yaml:"trials"`
	Config      SummaryConfig   `yaml:"config"`
	Failure     *SummaryFailure `yaml:"failure,omitempty"`
	Error       string          `yaml:"error,omitempty"`
	GeneratedAt time.Time       `yaml:"generated_at"`
}

// SummaryConfig mirrors the trial configuration of the run
type SummaryConfig struct {
	Program      string   `yaml:"program"`
	Args         []string `yaml:"args,flow"`
	Tries        int      `yaml:"n_tries"`
	ArgCount     string   `yaml:"n_args"`
	MaxArgLen    int      `yaml:"max_arg_len"`
	InputBytes   string   `yaml:"n_input_bytes"`
	AllowedCodes []int    `yaml:"allowed_codes,flow"`
	OutputDir    string   `yaml:"output_dir"`
	StdinPolicy  string   `yaml:"stdin_errors"`
}

// SummaryFailure describes the failing case, if one was found
type SummaryFailure struct {
	Kind      string `yaml:"kind"`
	Message   string `yaml:"message"`
	ExitCode  *int   `yaml:"exit_code,omitempty"`
	Signal    string `yaml:"signal,omitempty"`
	Suffix    string `yaml:"suffix,omitempty"`
	InputFile string `yaml:"input_file,omitempty"`
	ArgsFile  string `yaml:"args_file,omitempty"`
}

// NewSessionSummary builds a summary from a finished run. runErr is the fatal
// error returned by the engine, if any.
func NewSessionSummary(config *core.TrialConfig, report *core.RunReport, runErr error) *SessionSummary {
	summary := &SessionSummary{
		SessionID: report.SessionID,
		Seed:      report.Seed,
		StartedAt: report.StartTime,
		Duration:  report.Duration.Round(time.Millisecond).String(),
		State:     report.State.String(),
		Trials:    report.Trials,
		Config: SummaryConfig{
			Program:      config.Program,
			Args:         config.Args,
			Tries:        config.Tries,
			ArgCount:     config.ArgCount.String(),
			MaxArgLen:    config.MaxArgLen,
			InputBytes:   config.InputBytes.String(),
			AllowedCodes: config.Allow.Codes(),
			OutputDir:    config.OutputDir,
			StdinPolicy:  config.StdinPolicy.String(),
		},
		GeneratedAt: time.Now(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	if report.Outcome != nil {
		failure := &SummaryFailure{
			Kind:    report.Outcome.Kind.String(),
			Message: report.Outcome.Message(),
			Signal:  report.Outcome.Signal,
		}
		if report.Outcome.Kind == core.OutcomeFailedWithCode {
			code := report.Outcome.Code
			failure.ExitCode = &code
		}
		if report.Record != nil {
			failure.Suffix = report.Record.Suffix
			failure.InputFile = report.Record.InputPath
			failure.ArgsFile = report.Record.ArgsPath
		}
		summary.Failure = failure
	}
	return summary
}

// WriteSessionSummary writes the summary to path, creating parent directories
func WriteSessionSummary(path string, summary *SessionSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(summary); err != nil {
		file.Close()
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush summary: %w", err)
	}
	return file.Close()
}

// ReadSessionSummary loads a summary written by WriteSessionSummary
func ReadSessionSummary(path string) (*SessionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary file: %w", err)
	}
	var summary SessionSummary
	if err := yaml.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary file: %w", err)
	}
	return &summary, nil
}
