/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types_test.go
Description: Tests for the allow-list, config validation, outcome classification
and the logger reporter.
*/

package core

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kleascm/argv-fuzzer/pkg/artifact"
	"github.com/kleascm/argv-fuzzer/pkg/bounds"
	"github.com/kleascm/argv-fuzzer/pkg/execution"
	"github.com/kleascm/argv-fuzzer/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowList(t *testing.T) {
	allow, err := NewAllowList(2, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, allow.Codes())
	assert.True(t, allow.Contains(0))
	assert.True(t, allow.Contains(5))
	assert.False(t, allow.Contains(1))

	empty, err := NewAllowList()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, empty.Codes())

	top, err := NewAllowList(MaxExitCode)
	require.NoError(t, err)
	assert.True(t, top.Contains(255))

	for _, code := range []int{0, -1, 256, 100000} {
		_, err := NewAllowList(code)
		assert.True(t, errors.Is(err, ErrInvalidIgnoreCode), "code %d", code)
	}
}

func TestClassify(t *testing.T) {
	allow, err := NewAllowList(2, 5)
	require.NoError(t, err)

	tests := []struct {
		name string
		term execution.Termination
		want Outcome
	}{
		{"zero passes", execution.Exited(0), Outcome{Kind: OutcomePassed, Code: 0}},
		{"ignored passes", execution.Exited(5), Outcome{Kind: OutcomePassed, Code: 5}},
		{"other code fails", execution.Exited(3), Outcome{Kind: OutcomeFailedWithCode, Code: 3}},
		{"signal fails", execution.Terminated("killed"), Outcome{Kind: OutcomeFailedBySignal, Signal: "killed"}},
		{"unnamed signal fails", execution.Terminated(""), Outcome{Kind: OutcomeFailedBySignal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.term, allow)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind != OutcomePassed, got.Failed())
		})
	}
}

func TestOutcomeMessage(t *testing.T) {
	assert.Equal(t, "Program terminated with exit code 1",
		Outcome{Kind: OutcomeFailedWithCode, Code: 1}.Message())
	assert.Equal(t, "Program terminated via signal",
		Outcome{Kind: OutcomeFailedBySignal}.Message())
	assert.Equal(t, "Program terminated via signal (segmentation fault)",
		Outcome{Kind: OutcomeFailedBySignal, Signal: "segmentation fault"}.Message())
}

func TestTrialConfigValidate(t *testing.T) {
	valid := func() *TrialConfig {
		return &TrialConfig{
			Program:   "/bin/true",
			Tries:     1,
			MaxArgLen: DefaultMaxArgLen,
		}
	}

	config := valid()
	require.NoError(t, config.Validate())

	widest := valid()
	widest.MaxArgLen = MaxArgLenLimit
	require.NoError(t, widest.Validate())
	assert.Equal(t, []int{0}, config.Allow.Codes(), "missing allow-list defaults to {0}")

	broken := map[string]func(*TrialConfig){
		"no program":         func(c *TrialConfig) { c.Program = "" },
		"zero tries":         func(c *TrialConfig) { c.Tries = 0 },
		"zero arg len":       func(c *TrialConfig) { c.MaxArgLen = 0 },
		"huge arg len":       func(c *TrialConfig) { c.MaxArgLen = math.MaxInt },
		"arg len over limit": func(c *TrialConfig) { c.MaxArgLen = MaxArgLenLimit + 1 },
		"negative args":      func(c *TrialConfig) { c.ArgCount = bounds.MustParse[int]("-1..=2") },
		"negative input":     func(c *TrialConfig) { c.InputBytes = bounds.Single(-4) },
		"allow without 0": func(c *TrialConfig) {
			c.Allow = AllowList{3: {}}
		},
	}
	for name, mutate := range broken {
		t.Run(name, func(t *testing.T) {
			config := valid()
			mutate(config)
			assert.True(t, errors.Is(config.Validate(), ErrInvalidConfig))
		})
	}
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "found_failure", StateFoundFailure.String())
	assert.Equal(t, "RunState(9)", RunState(9).String())
}

func TestLoggerReporter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Level:   logging.LogLevelDebug,
		Format:  logging.LogFormatText,
		Console: &buf,
	})
	require.NoError(t, err)
	defer logger.Close()

	reporter := NewLoggerReporter(logger)
	input := &GeneratedInput{Stdin: []byte("abc"), Args: []string{"x"}}
	reporter.OnTrialExecuted(1, input, Outcome{Kind: OutcomePassed}, time.Millisecond)
	reporter.OnTrialExecuted(2, input, Outcome{Kind: OutcomeFailedWithCode, Code: 7}, time.Millisecond)
	reporter.OnFailureRecorded(&artifact.Record{Suffix: "abcdef012345", InputPath: "input-abcdef012345", ArgsPath: "args-abcdef012345"})
	reporter.OnRunFinished(&RunReport{SessionID: "s", Seed: 9, Trials: 2, State: StateFoundFailure})
	reporter.OnRunFinished(&RunReport{SessionID: "s", Seed: 9, Trials: 10, State: StateSucceeded})

	out := buf.String()
	assert.Contains(t, out, "Trial executed")
	assert.Contains(t, out, "Program terminated with exit code 7")
	assert.Contains(t, out, "exit_code=7")
	assert.Contains(t, out, "abcdef012345")
	assert.Contains(t, out, "Session found a failing case")
	assert.Contains(t, out, "Could not produce a failing state")
}
