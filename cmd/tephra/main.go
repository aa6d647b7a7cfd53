package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tephra/internal/version"
)

// exitError carries a non-zero exit code for a command whose output has
// already been printed.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tephra",
		Short:         "Static analyzer for PHP-like stub codebases",
		Long:          `Tephra populates class hierarchies of YAML stub files, infers types through function bodies and reports what does not fit`,
		Version:       version.Plain(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			stopProfiling, err := setupProfiling(cmd)
			if err != nil {
				return err
			}
			cleanup, err := setupTracing(cmd)
			if err != nil {
				stopProfiling()
				return err
			}
			traceMu.Lock()
			traceCleanup = func() {
				cleanup()
				stopProfiling()
			}
			traceMu.Unlock()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			runTraceCleanup()
		},
	}

	// Глобальные флаги
	root.PersistentFlags().String("config", "", "path to tephra.toml (default: nearest one above the working directory)")
	root.PersistentFlags().String("color", "", "colorize output (auto|on|off)")
	root.PersistentFlags().Bool("timings", false, "show timing information")
	root.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics to show (0=all)")
	root.PersistentFlags().String("trace", "", "trace output file ('-' for stderr)")
	root.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	root.PersistentFlags().String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	root.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer size for --trace-mode ring|both")
	root.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	root.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	root.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newCombineCmd())
	root.AddCommand(newContainsCmd())
	root.AddCommand(newHierarchyCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// main runs the root command. Diagnostics with errors exit with status 1,
// failures of the command itself with status 2.
func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	// PersistentPostRun is not called on error
	runTraceCleanup()
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(2)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits int
}
