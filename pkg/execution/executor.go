/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor.go
Description: Process executor for the argv fuzzer. Builds one invocation of
the target with a fixed argument prefix and a generated suffix, feeds the generated
payload through stdin, discards the target's own output and reports how the
process terminated.
*/

package execution

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Command describes a target invocation. It is a plain value so the fixed
// prefix can be reused across trials while each trial appends its own suffix.
type Command struct {
	Program string
	Args    []string
}

// NewCommand creates a command for program with the given leading arguments.
func NewCommand(program string, args ...string) Command {
	return Command{Program: program, Args: slices.Clone(args)}
}

// WithArgs returns a copy of c with args appended. c itself is left untouched.
func (c Command) WithArgs(args ...string) Command {
	out := Command{Program: c.Program, Args: make([]string, 0, len(c.Args)+len(args))}
	out.Args = append(out.Args, c.Args...)
	out.Args = append(out.Args, args...)
	return out
}

// Build turns the command into an *exec.Cmd. Stdout and stderr are left nil,
// which connects them to the null device. Stdin is wired up by Execute.
func (c Command) Build() *exec.Cmd {
	return exec.Command(c.Program, c.Args...)
}

// StdinErrorPolicy decides what happens when the payload cannot be fully
// written to the target's stdin, typically because it exited early.
type StdinErrorPolicy int

const (
	// AbortOnStdinError kills the target and returns the write error.
	AbortOnStdinError StdinErrorPolicy = iota
	// IgnoreStdinError logs the error and still classifies the termination.
	IgnoreStdinError
)

func (p StdinErrorPolicy) String() string {
	switch p {
	case AbortOnStdinError:
		return "abort"
	case IgnoreStdinError:
		return "ignore"
	default:
		return fmt.Sprintf("StdinErrorPolicy(%d)", int(p))
	}
}

// Termination is how a target process ended: either a normal exit carrying a
// code, or an abnormal end (signal) with no code at all.
type Termination struct {
	exited bool
	code   int
	signal string
}

// Exited builds a normal-exit termination.
func Exited(code int) Termination { return Termination{exited: true, code: code} }

// Terminated builds an abnormal termination. signal may be empty when the
// platform does not name it.
func Terminated(signal string) Termination { return Termination{signal: signal} }

// ExitCode returns the exit code and whether the process exited normally.
func (t Termination) ExitCode() (int, bool) { return t.code, t.exited }

// Signal returns the signal name for abnormal terminations.
func (t Termination) Signal() string { return t.signal }

func (t Termination) String() string {
	if t.exited {
		return fmt.Sprintf("exit code %d", t.code)
	}
	if t.signal != "" {
		return "signal " + t.signal
	}
	return "signal"
}

// SpawnError means the target could not be started at all.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start process %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StdinError means the payload could not be delivered to the target.
type StdinError struct {
	Written int
	Total   int
	Err     error
}

func (e *StdinError) Error() string {
	return fmt.Sprintf("failed to write to stdin (%d of %d bytes): %v", e.Written, e.Total, e.Err)
}

func (e *StdinError) Unwrap() error { return e.Err }

// ProcessExecutor runs built commands to completion. There is no timeout: a
// target that never exits blocks Execute forever.
type ProcessExecutor struct {
	StdinPolicy StdinErrorPolicy
	Logger      logrus.FieldLogger
}

// NewProcessExecutor creates a new process executor instance
func NewProcessExecutor(policy StdinErrorPolicy, logger logrus.FieldLogger) *ProcessExecutor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProcessExecutor{StdinPolicy: policy, Logger: logger}
}

// Execute spawns cmd, writes input to its stdin, closes stdin and waits for
// the process to end.
func (e *ProcessExecutor) Execute(cmd *exec.Cmd, input []byte) (Termination, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Termination{}, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Termination{}, &SpawnError{Program: cmd.Path, Err: err}
	}

	written, errStdin := stdin.Write(input)
	if errClose := stdin.Close(); errStdin == nil && errClose != nil && !errors.Is(errClose, io.ErrClosedPipe) {
		errStdin = errClose
	}
	if errStdin != nil {
		stdinErr := &StdinError{Written: written, Total: len(input), Err: errStdin}
		if e.StdinPolicy == AbortOnStdinError {
			// Reap the child so an aborted run does not leave a zombie behind.
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return Termination{}, stdinErr
		}
		e.Logger.WithFields(logrus.Fields{
			"pid":     cmd.Process.Pid,
			"written": written,
			"total":   len(input),
		}).WithError(errStdin).Warn("Target closed stdin early")
	}

	errWait := cmd.Wait()
	if cmd.ProcessState == nil {
		return Termination{}, fmt.Errorf("failed to wait for process: %w", errWait)
	}
	var exitErr *exec.ExitError
	if errWait != nil && !errors.As(errWait, &exitErr) {
		return Termination{}, fmt.Errorf("process error: %w", errWait)
	}

	return terminationOf(cmd), nil
}

// terminationOf reads the exit status. ExitCode is -1 whenever the process
// did not exit on its own, which covers signals on every platform.
func terminationOf(cmd *exec.Cmd) Termination {
	state := cmd.ProcessState
	if code := state.ExitCode(); code >= 0 {
		return Exited(code)
	}
	if waitStatus, ok := state.Sys().(syscall.WaitStatus); ok && waitStatus.Signaled() {
		return Terminated(waitStatus.Signal().String())
	}
	return Terminated("")
}
