/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: check.go
Description: Self-check command for the argv fuzzer. Verifies that the target
program resolves, the artifact and log directories are writable and the trial
configuration is valid before a long session is started.
*/

package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// selfCheck is a single named check
type selfCheck struct {
	name     string
	function func() error
}

// PerformSelfCheck runs every check for the given target and reports the result
func PerformSelfCheck(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔍 Argv Fuzzer - System Self-Check")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	checks := []selfCheck{
		{"Target Program", func() error {
			_, err := resolveProgram(args[0])
			return err
		}},
		{"Output Directory", func() error {
			return checkWritableDir(outputDir())
		}},
		{"Log Directory", func() error {
			if dir := viper.GetString("log_dir"); dir != "" {
				return os.MkdirAll(dir, 0755)
			}
			return nil
		}},
		{"Configuration Validation", func() error {
			_, err := createTrialConfig(args)
			return err
		}},
	}

	return runChecks(out, checks)
}

// runChecks runs checks in order, printing a line per check
func runChecks(out io.Writer, checks []selfCheck) error {
	passed := 0
	total := len(checks)

	for _, check := range checks {
		fmt.Fprintf(out, "🔍 %s... ", check.name)
		if err := check.function(); err != nil {
			fmt.Fprintf(out, "❌ FAILED: %v\n", err)
		} else {
			fmt.Fprintln(out, "✅ PASSED")
			passed++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "📊 Results: %d/%d checks passed\n", passed, total)

	if passed == total {
		fmt.Fprintln(out, "✨ All checks passed! Ready for fuzzing.")
		return nil
	}
	fmt.Fprintln(out, "⚠️  Some checks failed. Please address the issues before fuzzing.")
	return fmt.Errorf("%d/%d checks failed", total-passed, total)
}

// resolveProgram finds the program the same way the runner will
func resolveProgram(program string) (string, error) {
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", program, err)
	}
	return path, nil
}

// checkWritableDir verifies that files can be created in dir
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.CreateTemp(dir, ".argv-fuzzer-check-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	file.Close()
	return os.Remove(file.Name())
}

func outputDir() string {
	if dir := viper.GetString("output_dir"); dir != "" {
		return dir
	}
	return "."
}
