package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tephra/internal/config"
	"tephra/internal/diag"
	"tephra/internal/diagfmt"
	"tephra/internal/driver"
	"tephra/internal/incremental"
	"tephra/internal/version"
)

type analyzeFlags struct {
	jobs       int
	diff       bool
	noDiff     bool
	cacheDir   string
	format     string
	ui         string
	watch      bool
	interval   time.Duration
	stepBudget int
	withNotes  bool
	fullPath   bool
	allowUndef bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyze stub files and report diagnostics",
		Long: `Analyze scans the stub files under the given paths (directories are walked
for *.yaml and *.yml), populates class hierarchies and checks every function
and method body. Without paths the [stubs].paths of tephra.toml are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, &f)
		},
	}
	cmd.Flags().IntVar(&f.jobs, "jobs", 0, "max parallel workers (0=auto)")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "reuse results of the previous run for unchanged symbols")
	cmd.Flags().BoolVar(&f.noDiff, "no-diff", false, "analyze everything even when [analyzer].diff is set")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "directory of the incremental state")
	cmd.Flags().StringVar(&f.format, "format", "", "output format (pretty|json|sarif|short)")
	cmd.Flags().StringVar(&f.ui, "ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "re-run when stub files change")
	cmd.Flags().DurationVar(&f.interval, "interval", driver.DefaultWatchInterval, "poll interval for --watch")
	cmd.Flags().IntVar(&f.stepBudget, "step-budget", 0, "bound of the invalidation cascade (0=default)")
	cmd.Flags().BoolVar(&f.withNotes, "with-notes", false, "include diagnostic notes in output")
	cmd.Flags().BoolVar(&f.fullPath, "fullpath", false, "emit absolute file paths in output")
	cmd.Flags().BoolVar(&f.allowUndef, "allow-possibly-undefined", false, "do not report possibly undefined variables")
	return cmd
}

// analyzeSettings is the merge of tephra.toml and the flags.
type analyzeSettings struct {
	opts      driver.Options
	format    string
	color     bool
	timings   bool
	withNotes bool
	fullPath  bool
	paths     []string
}

func resolveAnalyze(cmd *cobra.Command, args []string, f *analyzeFlags) (analyzeSettings, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return analyzeSettings{}, err
	}
	s := analyzeSettings{withNotes: f.withNotes, fullPath: f.fullPath}

	s.format = cfg.Output.Format
	if f.format != "" {
		s.format = f.format
	}
	if err := parseFormat(s.format); err != nil {
		return analyzeSettings{}, err
	}
	if s.color, err = useColor(cmd, cfg); err != nil {
		return analyzeSettings{}, err
	}
	if s.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return analyzeSettings{}, fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return analyzeSettings{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if maxDiagnostics == 0 {
		maxDiagnostics = cfg.Analyzer.MaxDiagnostics
	}

	s.opts = driver.Options{
		Jobs:                   pick(cmd, "jobs", f.jobs, cfg.Analyzer.Jobs),
		Diff:                   (cfg.Analyzer.Diff || f.diff) && !f.noDiff,
		StepBudget:             pick(cmd, "step-budget", f.stepBudget, cfg.Analyzer.StepBudget),
		AllowPossiblyUndefined: cfg.Analyzer.AllowPossiblyUndefined || f.allowUndef,
		MaxDiagnostics:         maxDiagnostics,
		TimingDiagnostic:       s.timings && s.format == "json",
	}
	if s.opts.Diff && !f.watch {
		dir, err := cacheDir(f.cacheDir, cfg)
		if err != nil {
			return analyzeSettings{}, fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		s.opts.Store = incremental.NewDiskStore(dir)
	}

	s.paths = args
	if len(s.paths) == 0 {
		s.paths = cfg.Stubs.Paths
	}
	if len(s.paths) == 0 {
		return analyzeSettings{}, fmt.Errorf("no stub paths given and none configured in %s", config.FileName)
	}
	return s, nil
}

// pick prefers an explicitly set flag over the config value.
func pick(cmd *cobra.Command, name string, flag, cfg int) int {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return cfg
}

func runAnalyze(cmd *cobra.Command, args []string, f *analyzeFlags) error {
	s, err := resolveAnalyze(cmd, args, f)
	if err != nil {
		return err
	}
	mode, err := readUIMode(f.ui)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if f.watch {
		return watchAnalyze(ctx, cmd, s, f.interval)
	}

	var res *driver.Result
	if shouldUseTUI(mode, s.format, false) {
		files, err := driver.CollectFiles(ctx, s.paths)
		if err != nil {
			return err
		}
		res, err = runWithUI(ctx, cmd.ErrOrStderr(), "analyzing", files, s.opts)
		if err != nil {
			return err
		}
	} else {
		res, err = driver.NewSession(s.opts).Run(ctx, s.paths)
		if err != nil {
			return err
		}
	}

	if err := printResult(out, res, s); err != nil {
		return err
	}
	if s.timings && s.format != "json" {
		fmt.Fprint(cmd.ErrOrStderr(), res.Timer.Summary())
	}
	if res.HasErrors() {
		return exitError{code: 1}
	}
	return nil
}

func watchAnalyze(ctx context.Context, cmd *cobra.Command, s analyzeSettings, interval time.Duration) error {
	out := cmd.OutOrStdout()
	session := driver.NewSession(s.opts)
	return session.Watch(ctx, s.paths, interval, func(res *driver.Result, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
			return
		}
		if s.format == "pretty" && isTerminal(os.Stdout) {
			// очистка экрана между прогонами
			fmt.Fprint(out, "\x1b[H\x1b[2J")
		}
		if err := printResult(out, res, s); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
		}
		if s.timings && s.format != "json" {
			fmt.Fprint(cmd.ErrOrStderr(), res.Timer.Summary())
		}
	})
}

// printResult writes the diagnostics of res in the requested format. The
// pretty format ends with a one-line summary.
func printResult(w io.Writer, res *driver.Result, s analyzeSettings) error {
	pm := pathMode(s.fullPath)
	switch s.format {
	case "pretty":
		diagfmt.Pretty(w, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     s.color,
			Context:   1,
			PathMode:  pm,
			ShowNotes: s.withNotes,
		})
		if res.Bag.Len() > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, summaryLine(res))
	case "short":
		if out := diag.FormatShort(res.Bag.Items(), res.FileSet); out != "" {
			fmt.Fprintln(w, out)
		}
	case "json":
		if err := diagfmt.JSON(w, res.Bag, res.FileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pm,
			IncludeNotes:     s.withNotes,
		}); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	case "sarif":
		wd, _ := os.Getwd()
		if err := diagfmt.Sarif(w, res.Bag, res.FileSet, diagfmt.SarifRunMeta{
			ToolName:       "tephra",
			ToolVersion:    version.Plain(),
			InvocationArgs: os.Args[1:],
			BaseDir:        wd,
		}); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", s.format)
	}
	return nil
}

func summaryLine(res *driver.Result) string {
	line := fmt.Sprintf("%d files, %d errors, %d warnings", len(res.Files),
		res.Bag.Count(diag.SevError), res.Bag.Count(diag.SevWarning))
	switch {
	case res.CascadeAborted:
		line += fmt.Sprintf("; %d analyzed (cascade over budget, full run)", res.Analyzed)
	case res.Incremental:
		line += fmt.Sprintf("; %d analyzed, %d reused", res.Analyzed, res.Skipped)
	default:
		line += fmt.Sprintf("; %d analyzed", res.Analyzed)
	}
	return line
}
