/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core types for the argv fuzzer. Defines the per-run trial
configuration, the exit-code allow-list, the per-trial generated input, trial
outcomes and the final run report.
*/

package core

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kleascm/argv-fuzzer/pkg/artifact"
	"github.com/kleascm/argv-fuzzer/pkg/bounds"
	"github.com/kleascm/argv-fuzzer/pkg/execution"
)

var (
	// ErrInvalidConfig wraps every TrialConfig validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidIgnoreCode is returned for ignore codes outside 1..=255.
	ErrInvalidIgnoreCode = errors.New("ignored exit codes must be in 1..=255")
)

// MaxExitCode is the largest exit status a process can report.
const MaxExitCode = 255

// AllowList is the set of exit codes that count as a pass. It always holds 0.
type AllowList map[int]struct{}

// NewAllowList builds an allow-list of 0 plus the ignored codes.
func NewAllowList(ignored ...int) (AllowList, error) {
	allow := AllowList{0: {}}
	for _, code := range ignored {
		if code <= 0 || code > MaxExitCode {
			return nil, fmt.Errorf("%w: %d", ErrInvalidIgnoreCode, code)
		}
		allow[code] = struct{}{}
	}
	return allow, nil
}

// Contains reports whether code is allow-listed.
func (a AllowList) Contains(code int) bool {
	_, ok := a[code]
	return ok
}

// Codes returns the allow-listed codes in ascending order.
func (a AllowList) Codes() []int {
	codes := make([]int, 0, len(a))
	for code := range a {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// TrialConfig is built once per run and read-only afterwards.
type TrialConfig struct {
	Program     string                     `yaml:"program"`
	Args        []string                   `yaml:"args"`          // Fixed leading arguments
	Tries       int                        `yaml:"n_tries"`       // Trial budget
	ArgCount    bounds.Range[int]          `yaml:"n_args"`        // Generated arguments per trial
	MaxArgLen   int                        `yaml:"max_arg_len"`   // In Unicode code points
	InputBytes  bounds.Range[int]          `yaml:"n_input_bytes"` // Stdin payload size per trial
	Allow       AllowList                  `yaml:"-"`
	OutputDir   string                     `yaml:"output_dir"` // Where artifacts are written
	Seed        uint64                     `yaml:"seed"`       // 0 picks a random seed
	StdinPolicy execution.StdinErrorPolicy `yaml:"-"`
}

const (
	// DefaultMaxArgLen is the default upper bound for a generated argument.
	DefaultMaxArgLen = 256
	// MaxArgLenLimit is the largest accepted max-arg-len.
	MaxArgLenLimit = 1 << 20
)

// Validate checks the configuration, filling in the allow-list when missing.
func (c *TrialConfig) Validate() error {
	if c.Program == "" {
		return fmt.Errorf("%w: target program is required", ErrInvalidConfig)
	}
	if c.Tries <= 0 {
		return fmt.Errorf("%w: n-tries must be positive, got %d", ErrInvalidConfig, c.Tries)
	}
	if c.MaxArgLen <= 0 || c.MaxArgLen > MaxArgLenLimit {
		return fmt.Errorf("%w: max-arg-len must be in 1..=%d, got %d", ErrInvalidConfig, MaxArgLenLimit, c.MaxArgLen)
	}
	if c.ArgCount.Start() < 0 {
		return fmt.Errorf("%w: n-args must not be negative, got %v", ErrInvalidConfig, c.ArgCount)
	}
	if c.InputBytes.Start() < 0 {
		return fmt.Errorf("%w: n-input-bytes must not be negative, got %v", ErrInvalidConfig, c.InputBytes)
	}
	if c.Allow == nil {
		c.Allow = AllowList{0: {}}
	}
	if !c.Allow.Contains(0) {
		return fmt.Errorf("%w: allow-list must contain exit code 0", ErrInvalidConfig)
	}
	return nil
}

// GeneratedInput is the fresh, per-trial input handed to the target.
type GeneratedInput struct {
	Stdin []byte
	Args  []string // Generated suffix only
}

// OutcomeKind tags a trial outcome
type OutcomeKind int

const (
	OutcomePassed OutcomeKind = iota
	OutcomeFailedWithCode
	OutcomeFailedBySignal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePassed:
		return "passed"
	case OutcomeFailedWithCode:
		return "exit_code"
	case OutcomeFailedBySignal:
		return "signal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of one trial.
type Outcome struct {
	Kind   OutcomeKind
	Code   int    // Set for OutcomeFailedWithCode and for passing exits
	Signal string // Set for OutcomeFailedBySignal when the platform names it
}

// Failed reports whether the outcome ends the run with an artifact.
func (o Outcome) Failed() bool { return o.Kind != OutcomePassed }

// Message is the user-facing description of a failing outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeFailedWithCode:
		return fmt.Sprintf("Program terminated with exit code %d", o.Code)
	case OutcomeFailedBySignal:
		if o.Signal != "" {
			return fmt.Sprintf("Program terminated via signal (%s)", o.Signal)
		}
		return "Program terminated via signal"
	default:
		return fmt.Sprintf("Program exited with allowed code %d", o.Code)
	}
}

// Classify maps a termination onto an outcome using the allow-list.
func Classify(term execution.Termination, allow AllowList) Outcome {
	code, exited := term.ExitCode()
	switch {
	case !exited:
		return Outcome{Kind: OutcomeFailedBySignal, Signal: term.Signal()}
	case allow.Contains(code):
		return Outcome{Kind: OutcomePassed, Code: code}
	default:
		return Outcome{Kind: OutcomeFailedWithCode, Code: code}
	}
}

// RunState is the state of the trial loop.
type RunState int

const (
	StateRunning RunState = iota
	StateSucceeded
	StateFoundFailure
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFoundFailure:
		return "found_failure"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// RunReport summarizes a finished (or aborted) run.
type RunReport struct {
	SessionID string
	Seed      uint64
	Trials    int // Trials whose outcome was classified
	State     RunState
	Outcome   *Outcome         // The failing outcome, if any
	Record    *artifact.Record // The persisted case, if any
	StartTime time.Time
	Duration  time.Duration
}
