// Package main provides the pybundle binary entry point.
// Pybundle turns a loose Python source tree into a validated,
// dependency-complete package ready for native compilation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pycraftlabs/pybundle/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "pybundle"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliContext carries the resolved configuration and logger into
// subcommand implementations.
type cliContext struct {
	cfg    *config.Config
	logger *slog.Logger
	root   string
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		projectPath string
		logLevel    string
	)

	cli := &cliContext{}

	cmd := &cobra.Command{
		Use:   "pybundle",
		Short: "Validated native packaging for Python projects",
		Long: `Pybundle scans a Python source tree, classifies every import,
synthesizes a dependency manifest, validates the project structure,
and drives a supervised native-packaging build.

It provides:
- Import extraction via real Python AST parsing
- Standard-library / internal / external classification
- Structural validation with auto-remediation
- Gated, cancellable, timeout-bounded compiler supervision`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cli, configPath, projectPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVarP(&projectPath, "project", "p", ".", "Python project root to operate on")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		analyzeCmd(cli),
		validateCmd(cli),
		requirementsCmd(cli),
		buildCmd(cli),
		batchCmd(cli),
		configCmd(cli),
		scaffoldCmd(cli),
		watchCmd(cli),
		versionCmd(),
	)

	return cmd
}

// setup resolves the project path, loads layered configuration, and
// installs the default logger.
func setup(cli *cliContext, configPath, projectPath, logLevel string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat project path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absPath)
	}
	cli.root = absPath

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	} else {
		cfg, err = config.NewLoader(nil).Load(absPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cli.cfg = cfg

	// Flag wins over config file for log level.
	levelName := cfg.Log.Level
	if logLevel != "" {
		levelName = logLevel
	}
	level := slog.LevelInfo
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	cli.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(cli.logger)

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
