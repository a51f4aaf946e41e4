package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scbundle/scb/internal/config"
	"github.com/scbundle/scb/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose     bool
	quiet       bool
	noProgress  bool
	logFile     string
	configFile  string
	projectFile string

	cfg     config.Config
	project config.Project
	theme   ui.Theme
	logger  *slog.Logger

	closers []func() error
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, theme: ui.DefaultTheme()}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "scb",
		Short: "Bundle a source tree into one text file and split it back",
		Long: `scb packs a directory of source files into a single text bundle with
comment-style marker lines, splits a bundle back into a tree, and applies
unified diffs to a tree with per-file results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(a.stdout, "scb %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVar(&a.noProgress, "no-progress", false, "disable the progress bar")
	pf.StringVar(&a.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&a.configFile, "config", "", "read defaults from FILE instead of the user config")
	pf.StringVar(&a.projectFile, "project", "", "read and update project settings in FILE (JSON)")
	root.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	root.AddCommand(
		a.mergeCmd(),
		a.splitCmd(),
		a.patchCmd(),
		a.verifyCmd(),
		docsCmd(),
	)
	return root
}

// setup loads configuration and installs the logger. It runs before every
// subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configFile != "" {
		a.cfg, err = config.LoadFile(a.configFile)
	} else {
		a.cfg, err = config.Load()
	}
	var unknown *config.UnknownKeysError
	if err != nil && !errors.As(err, &unknown) {
		return fmt.Errorf("load config: %w", err)
	}
	a.theme = ui.DefaultTheme().Apply(a.cfg.Theme)

	if a.projectFile != "" {
		a.project, err = config.LoadProject(a.projectFile)
		if err != nil {
			return err
		}
	}

	logLevel := slog.LevelWarn
	if a.verbose {
		logLevel = slog.LevelDebug
	} else if !a.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: logLevel})
	var logHandler slog.Handler = textHandler
	if a.logFile != "" {
		lf, lfErr := os.Create(a.logFile)
		if lfErr != nil {
			return fmt.Errorf("open log file: %w", lfErr)
		}
		a.closers = append(a.closers, lf.Close)
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	a.logger = slog.New(logHandler)
	slog.SetDefault(a.logger)

	if unknown != nil {
		a.logger.Warn("ignoring unknown config keys", "path", unknown.Path, "keys", unknown.Keys)
	}
	slog.Debug("starting", "command", cmd.Name(), "version", version)
	return nil
}

// remember records a successful run's paths in the project file.
func (a *app) remember(pairs ...string) {
	if a.projectFile == "" {
		return
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		a.project.Remember(pairs[i], pairs[i+1])
	}
	if err := config.SaveProject(a.projectFile, a.project); err != nil {
		a.logger.Warn("failed to save project", "path", a.projectFile, "error", err)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c() //nolint:errcheck // best effort on exit
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
