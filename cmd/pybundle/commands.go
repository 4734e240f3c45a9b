package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pycraftlabs/pybundle/batch"
	"github.com/pycraftlabs/pybundle/build"
	"github.com/pycraftlabs/pybundle/config"
	"github.com/pycraftlabs/pybundle/deps"
	"github.com/pycraftlabs/pybundle/manifest"
	"github.com/pycraftlabs/pybundle/pyscan"
	"github.com/pycraftlabs/pybundle/scaffold"
	"github.com/pycraftlabs/pybundle/validate"
)

// analyzeProject scans the tree and classifies every import. Shared by
// analyze and requirements.
func analyzeProject(ctx context.Context, cli *cliContext, probeEnv bool) (*deps.Set, error) {
	scanner, err := pyscan.NewScanner(pyscan.ScannerConfig{
		Root:      cli.root,
		Exclude:   cli.cfg.Scan.Exclude,
		CacheSize: cli.cfg.Scan.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cli.root, err)
	}
	files, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cli.root, err)
	}

	var probe deps.EnvironmentProbe
	if probeEnv {
		probe = &deps.PipProbe{Python: cli.cfg.Build.Python}
	}
	return deps.NewAnalyzer(cli.root, probe, cli.logger).Analyze(ctx, cli.root, files), nil
}

func analyzeCmd(cli *cliContext) *cobra.Command {
	var (
		asJSON  bool
		noProbe bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Scan sources and classify every import",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := analyzeProject(cmd.Context(), cli, !noProbe)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(set)
			}

			counts := set.Counts()
			fmt.Printf("Scanned %d files under %s\n", set.Files, set.Root)
			fmt.Printf("stdlib: %d  internal: %d  external: %d\n",
				counts[deps.ClassStdlib], counts[deps.ClassInternal], counts[deps.ClassExternal])
			for _, d := range set.External() {
				version := d.Version
				if version == "" {
					version = "unresolved"
				}
				marker := ""
				if d.LowConfidence {
					marker = "  (dynamic, unverified)"
				}
				fmt.Printf("  %-24s %s%s\n", d.Package, version, marker)
			}
			for _, bad := range set.SyntaxErrors {
				fmt.Printf("syntax error: %s\n", bad)
			}
			for _, warning := range deps.CheckAdvisories(set) {
				fmt.Printf("advisory: %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the dependency set as JSON")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip environment version probing")
	return cmd
}

func validateCmd(cli *cliContext) *cobra.Command {
	var (
		fix    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check project structure against the packaging rubric",
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := validate.NewValidator()
			report, err := validator.Validate(cmd.Context(), cli.root)
			if err != nil {
				return err
			}

			if fix {
				applied, err := validate.Fix(cli.root, report)
				if err != nil {
					return fmt.Errorf("apply fixes: %w", err)
				}
				for _, action := range applied {
					fmt.Printf("fixed: %s\n", action)
				}
				// Re-validate so the report reflects the repaired tree.
				report, err = validator.Validate(cmd.Context(), cli.root)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(report)
			}
			fmt.Print(report.Text())
			if !report.Valid {
				return fmt.Errorf("project structure invalid (score %d%%)", report.Score)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Apply automatic remediation before reporting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}

func requirementsCmd(cli *cliContext) *cobra.Command {
	var (
		output  string
		noProbe bool
	)
	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Synthesize requirements.txt from classified imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := analyzeProject(cmd.Context(), cli, !noProbe)
			if err != nil {
				return err
			}
			synth := manifest.NewSynthesizer()

			if output == "-" {
				fmt.Print(synth.Render(set))
			} else {
				path := output
				if !filepath.IsAbs(path) {
					path = filepath.Join(cli.root, path)
				}
				if err := synth.WriteFile(set, path); err != nil {
					return err
				}
				fmt.Printf("wrote %s (%d external packages)\n", path, len(set.External()))
			}

			for _, rec := range synth.Recommend(set) {
				fmt.Printf("consider: %-20s %s\n", rec.Package, rec.Rationale)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "requirements.txt", "Output path, or - for stdout")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip environment version probing")
	return cmd
}

// buildOptions maps config plus flag overrides to orchestrator options.
func buildOptions(cli *cliContext, format string, timeout time.Duration, override, skipValidate bool) (build.Options, error) {
	opts := build.DefaultOptions()
	opts.Compiler = cli.cfg.Build.Compiler
	opts.OutputDir = cli.cfg.Build.OutputDir
	opts.Timeout = cli.cfg.Build.Timeout
	opts.AutoValidate = cli.cfg.Build.AutoValidateEnabled()
	opts.Exclude = cli.cfg.Scan.Exclude

	name := cli.cfg.Build.Format
	if format != "" {
		name = format
	}
	parsed, err := build.ParseFormat(name)
	if err != nil {
		return build.Options{}, err
	}
	opts.OutputFormat = parsed

	if timeout > 0 {
		opts.Timeout = timeout
	}
	if override {
		opts.OverrideGate = true
	}
	if skipValidate {
		opts.AutoValidate = false
	}
	return opts, nil
}

func buildCmd(cli *cliContext) *cobra.Command {
	var (
		entry        string
		format       string
		timeout      time.Duration
		override     bool
		skipValidate bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the project into a native executable",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(cli, format, timeout, override, skipValidate)
			if err != nil {
				return err
			}
			probe := &deps.PipProbe{Python: cli.cfg.Build.Python}
			orch, err := build.New(opts, probe, nil, cli.logger)
			if err != nil {
				return err
			}

			job, err := orch.Start(build.Request{Root: cli.root, Entry: entry})
			if err != nil {
				return err
			}

			// Ctrl-C cancels the build; the compiler is killed and the
			// partial artifact discarded.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-job.Done():
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "cancelling build...")
				orch.Cancel()
				<-job.Done()
			}

			report := build.NewReport(job, opts.Compiler)
			if asJSON {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				fmt.Print(report.Text())
			}
			if job.State() != build.StateSucceeded {
				return fmt.Errorf("build %s", job.State())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&entry, "entry", "e", "", "Entry script (default: src/main.py or main.py)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: exe, app, binary")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Compiler timeout (default from config)")
	cmd.Flags().BoolVar(&override, "force", false, "Build even when structural validation fails")
	cmd.Flags().BoolVar(&skipValidate, "no-validate", false, "Skip structural validation entirely")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the build report as JSON")
	return cmd
}

func batchCmd(cli *cliContext) *cobra.Command {
	var (
		format   string
		timeout  time.Duration
		override bool
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "batch ENTRY...",
		Short: "Compile several entry scripts with a bounded worker pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(cli, format, timeout, override, false)
			if err != nil {
				return err
			}
			if workers == 0 {
				workers = cli.cfg.Batch.Workers
			}
			probe := &deps.PipProbe{Python: cli.cfg.Build.Python}
			runner, err := batch.NewRunner(opts, probe, nil, cli.logger, workers)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := runner.Run(ctx, cli.root, args)
			if err != nil {
				return err
			}
			for _, res := range summary.Results {
				status := string(res.State)
				if res.Err != nil {
					status = fmt.Sprintf("%s (%v)", res.State, res.Err)
				}
				fmt.Printf("%-40s %s\n", res.Entry, status)
			}
			fmt.Printf("%d succeeded, %d failed in %s\n",
				summary.Succeeded, summary.Failed, summary.Elapsed.Round(time.Millisecond))
			if summary.Failed > 0 {
				return fmt.Errorf("%d build(s) failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: exe, app, binary")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-build compiler timeout")
	cmd.Flags().BoolVar(&override, "force", false, "Build even when structural validation fails")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel builds (default from config)")
	return cmd
}

func configCmd(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pybundle configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default user config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(cli.logger).EnsureUserConfig()
		},
	})
	return cmd
}

func scaffoldCmd(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scaffold NAME",
		Short: "Create a new project skeleton with the standard layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := scaffold.CreateProject(cli.root, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created %s\n", path)
			return nil
		},
	}
}

func watchCmd(cli *cliContext) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze imports as source files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			watcher, err := pyscan.NewWatcher(pyscan.WatcherConfig{
				Root:          cli.root,
				DebounceDelay: debounce,
				Logger:        cli.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := watcher.Start(ctx); err != nil {
				return err
			}
			defer watcher.Stop()

			fmt.Printf("watching %s (Ctrl-C to stop)\n", cli.root)
			analyzer := deps.NewAnalyzer(cli.root, nil, cli.logger)
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					if event.Error != nil {
						cli.logger.Warn("watch event", "path", event.Path, "error", event.Error)
						continue
					}
					if event.File == nil {
						fmt.Printf("%s %s\n", event.Operation, event.Path)
						continue
					}
					set := analyzer.Analyze(ctx, cli.root, []*pyscan.SourceFile{event.File})
					counts := set.Counts()
					fmt.Printf("%s %s: %d stdlib, %d internal, %d external\n",
						event.Operation, event.Path,
						counts[deps.ClassStdlib], counts[deps.ClassInternal], counts[deps.ClassExternal])
				}
			}
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Delay before reacting to file changes")
	return cmd
}

func printJSON(v interface{ JSON() ([]byte, error) }) error {
	data, err := v.JSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
