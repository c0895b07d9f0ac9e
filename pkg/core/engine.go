/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Trial loop for the argv fuzzer. Runs up to n trials one after
another: generate stdin and extra arguments, execute the target, classify its
termination against the allow-list, and on the first failure persist the case and
stop. Single goroutine, one randomness stream, no retries.
*/

package core

import (
	"fmt"
	"math/rand/v2"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/argv-fuzzer/pkg/artifact"
	"github.com/kleascm/argv-fuzzer/pkg/execution"
	"github.com/kleascm/argv-fuzzer/pkg/generate"
)

// Executor runs one built command with the given stdin payload.
type Executor interface {
	Execute(cmd *exec.Cmd, input []byte) (execution.Termination, error)
}

// Engine drives the trial loop
type Engine struct {
	config    *TrialConfig
	executor  Executor
	recorder  *artifact.Recorder
	reporters []Reporter

	sessionID string
	seed      uint64
	rng       *rand.Rand
	base      execution.Command
}

// NewEngine creates a new engine. Call SetExecutor and Initialize before Run.
func NewEngine() *Engine {
	return &Engine{sessionID: uuid.New().String()}
}

// SetExecutor sets the process executor
func (e *Engine) SetExecutor(executor Executor) {
	e.executor = executor
}

// SetRecorder overrides the recorder built from the config's output directory
func (e *Engine) SetRecorder(recorder *artifact.Recorder) {
	e.recorder = recorder
}

// AddReporter registers a reporter for trial and run events
func (e *Engine) AddReporter(r Reporter) {
	e.reporters = append(e.reporters, r)
}

// SessionID identifies this fuzzing session in logs and summaries
func (e *Engine) SessionID() string { return e.sessionID }

// Seed returns the seed of the randomness stream, valid after Initialize
func (e *Engine) Seed() uint64 { return e.seed }

// Initialize validates the configuration and seeds the randomness stream
func (e *Engine) Initialize(config *TrialConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if e.executor == nil {
		return fmt.Errorf("executor not set - use SetExecutor() before Initialize()")
	}

	e.config = config
	e.seed = config.Seed
	for e.seed == 0 {
		e.seed = rand.Uint64()
	}
	e.rng = generate.NewSource(e.seed)
	e.base = execution.NewCommand(config.Program, config.Args...)
	if e.recorder == nil {
		e.recorder = artifact.NewRecorder(config.OutputDir)
	}
	return nil
}

// Run executes trials until one fails or the budget is spent. A failure found
// is a successful run; the returned error is only set for fatal problems. The
// report is returned in both cases.
func (e *Engine) Run() (*RunReport, error) {
	if e.rng == nil {
		return nil, fmt.Errorf("engine not initialized - call Initialize() before Run()")
	}

	report := &RunReport{
		SessionID: e.sessionID,
		Seed:      e.seed,
		State:     StateRunning,
		StartTime: time.Now(),
	}
	defer func() {
		report.Duration = time.Since(report.StartTime)
		for _, r := range e.reporters {
			r.OnRunFinished(report)
		}
	}()

	for report.State == StateRunning {
		input, err := e.generateInput()
		if err != nil {
			return report, fmt.Errorf("failed to generate trial input: %w", err)
		}

		command := e.base.WithArgs(input.Args...)
		started := time.Now()
		term, err := e.executor.Execute(command.Build(), input.Stdin)
		if err != nil {
			return report, fmt.Errorf("trial %d: %w", report.Trials+1, err)
		}

		outcome := Classify(term, e.config.Allow)
		report.Trials++
		for _, r := range e.reporters {
			r.OnTrialExecuted(report.Trials, input, outcome, time.Since(started))
		}

		switch {
		case outcome.Failed():
			report.State = StateFoundFailure
			report.Outcome = &outcome
			// The recorder continues the same stream, so the suffix is reproducible too.
			rec, err := e.recorder.Record(e.rng, input.Stdin, command.Args)
			if err != nil {
				return report, fmt.Errorf("failed to record failing case: %w", err)
			}
			report.Record = rec
			for _, r := range e.reporters {
				r.OnFailureRecorded(rec)
			}
		case report.Trials == e.config.Tries:
			report.State = StateSucceeded
		}
	}

	return report, nil
}

// generateInput draws the stdin payload first, then the extra arguments
func (e *Engine) generateInput() (*GeneratedInput, error) {
	stdin, err := generate.Stdin(e.rng, e.config.InputBytes)
	if err != nil {
		return nil, err
	}
	args, err := generate.ExtraArgs(e.rng, e.config.ArgCount, e.config.MaxArgLen)
	if err != nil {
		return nil, err
	}
	return &GeneratedInput{Stdin: stdin, Args: args.Collect()}, nil
}
