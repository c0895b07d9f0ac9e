/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor_test.go
Description: Tests for command building and process execution. The test binary
re-executes itself as the target so exit codes, signals and stdin handling can be
exercised without external programs.
*/

package execution

import (
	"bytes"
	"errors"
	"io"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "ARGFUZZ_EXECUTION_HELPER"

// TestHelperProcess is the target program. It is inert unless launched by
// helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	mode, rest := args[1], args[2:]

	switch mode {
	case "exit":
		code, _ := strconv.Atoi(rest[0])
		_, _ = io.Copy(io.Discard, os.Stdin)
		os.Exit(code)
	case "echo-stdin":
		data, _ := io.ReadAll(os.Stdin)
		if bytes.Equal(data, []byte(rest[0])) {
			os.Exit(0)
		}
		os.Exit(1)
	case "count-args":
		_, _ = io.Copy(io.Discard, os.Stdin)
		os.Exit(len(rest))
	case "noisy":
		_, _ = os.Stdout.WriteString("this should go nowhere\n")
		_, _ = os.Stderr.WriteString("neither should this\n")
		os.Exit(0)
	case "close-stdin":
		os.Stdin.Close()
		os.Exit(0)
	case "kill-self":
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Kill()
		time.Sleep(time.Minute)
	}
	os.Exit(2)
}

func helperCommand(t *testing.T, mode string, args ...string) Command {
	t.Helper()
	t.Setenv(helperEnv, "1")
	fixed := append([]string{"-test.run=^TestHelperProcess$", "--", mode}, args...)
	return NewCommand(os.Args[0], fixed...)
}

func TestCommandWithArgsDoesNotAlias(t *testing.T) {
	base := NewCommand("prog", "a")
	first := base.WithArgs("x")
	second := base.WithArgs("y", "z")

	assert.Equal(t, []string{"a"}, base.Args)
	assert.Equal(t, []string{"a", "x"}, first.Args)
	assert.Equal(t, []string{"a", "y", "z"}, second.Args)
}

func TestCommandBuild(t *testing.T) {
	cmd := NewCommand("/bin/true", "-v").WithArgs("extra").Build()
	assert.Equal(t, []string{"/bin/true", "-v", "extra"}, cmd.Args)
	assert.Nil(t, cmd.Stdout)
	assert.Nil(t, cmd.Stderr)
	assert.Nil(t, cmd.Stdin)
}

func TestExecuteExitCodes(t *testing.T) {
	executor := NewProcessExecutor(AbortOnStdinError, nil)

	for _, code := range []int{0, 1, 7} {
		cmd := helperCommand(t, "exit", strconv.Itoa(code)).Build()
		term, err := executor.Execute(cmd, []byte("payload"))
		require.NoError(t, err)

		got, exited := term.ExitCode()
		assert.True(t, exited)
		assert.Equal(t, code, got)
	}
}

func TestExecuteDeliversStdin(t *testing.T) {
	executor := NewProcessExecutor(AbortOnStdinError, nil)
	payload := "hello fuzzer"

	term, err := executor.Execute(helperCommand(t, "echo-stdin", payload).Build(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, Exited(0), term)

	term, err = executor.Execute(helperCommand(t, "echo-stdin", payload).Build(), []byte("something else"))
	require.NoError(t, err)
	assert.Equal(t, Exited(1), term)
}

func TestExecutePassesGeneratedArgs(t *testing.T) {
	executor := NewProcessExecutor(AbortOnStdinError, nil)
	cmd := helperCommand(t, "count-args").WithArgs("", "ü", "-x", "a b").Build()

	term, err := executor.Execute(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, Exited(4), term)
}

func TestExecuteDiscardsOutput(t *testing.T) {
	executor := NewProcessExecutor(AbortOnStdinError, nil)
	term, err := executor.Execute(helperCommand(t, "noisy").Build(), nil)
	require.NoError(t, err)
	assert.Equal(t, Exited(0), term)
}

func TestExecuteSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("processes are not terminated by signals on windows")
	}
	executor := NewProcessExecutor(AbortOnStdinError, nil)

	term, err := executor.Execute(helperCommand(t, "kill-self").Build(), nil)
	require.NoError(t, err)

	_, exited := term.ExitCode()
	assert.False(t, exited)
	assert.Equal(t, "killed", term.Signal())
	assert.Equal(t, "signal killed", term.String())
}

func TestExecuteSpawnError(t *testing.T) {
	executor := NewProcessExecutor(AbortOnStdinError, nil)
	cmd := NewCommand("/definitely/not/a/real/program").Build()

	_, err := executor.Execute(cmd, nil)
	require.Error(t, err)
	var spawnErr *SpawnError
	assert.True(t, errors.As(err, &spawnErr))
}

func TestExecuteStdinErrorPolicy(t *testing.T) {
	// Large enough to overflow any pipe buffer once the child has gone.
	payload := bytes.Repeat([]byte{0xAB}, 8<<20)

	t.Run("abort", func(t *testing.T) {
		executor := NewProcessExecutor(AbortOnStdinError, nil)
		_, err := executor.Execute(helperCommand(t, "close-stdin").Build(), payload)
		require.Error(t, err)
		var stdinErr *StdinError
		require.True(t, errors.As(err, &stdinErr))
		assert.Equal(t, len(payload), stdinErr.Total)
		assert.Less(t, stdinErr.Written, stdinErr.Total)
	})

	t.Run("ignore", func(t *testing.T) {
		executor := NewProcessExecutor(IgnoreStdinError, nil)
		term, err := executor.Execute(helperCommand(t, "close-stdin").Build(), payload)
		require.NoError(t, err)
		assert.Equal(t, Exited(0), term)
	})
}

func TestTerminationString(t *testing.T) {
	assert.Equal(t, "exit code 3", Exited(3).String())
	assert.Equal(t, "signal segmentation fault", Terminated("segmentation fault").String())
	assert.Equal(t, "signal", Terminated("").String())
	assert.Equal(t, "abort", AbortOnStdinError.String())
	assert.Equal(t, "ignore", IgnoreStdinError.String())
}
