// Package cmd provides the CLI commands for gitparse.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// Logger defines the logging interface used by the commands.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Dependencies holds all injectable dependencies for the commands.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*AppConfig, error)

	// GitRepoFactory creates a LocalGitRepository for the given path.
	GitRepoFactory func(path string, log Logger) (domain.LocalGitRepository, error)

	// HistoryFactory creates the HistoryReader that runs and parses git commands.
	HistoryFactory func(repo domain.LocalGitRepository, cfg *AppConfig, log Logger) domain.HistoryReader

	// OutputWriterFactory creates an OutputWriter rendering format to out.
	OutputWriterFactory func(format string, out io.Writer) (domain.OutputWriter, error)

	// SinkFactory connects the commit export sink; only called for log --export.
	SinkFactory func(ctx context.Context, cfg *AppConfig, log Logger) (domain.CommitSink, error)

	// Stdout is the writer for rendered records.
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// GitBinary is the git executable to run.
	GitBinary string

	// OutputFormat is json, yaml or text; --output overrides it.
	OutputFormat string

	// BlameConcurrency bounds parallel commit-body fetches during blame.
	BlameConcurrency int

	// ExportEnabled reports whether an export target is configured.
	ExportEnabled bool

	// ExportConfig is passed to the SinkFactory.
	ExportConfig any

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	repoPath string
	output   string
	verbose  bool
}

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for gitparse.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gitparse",
		Short: "Parse git history into structured records",
		Long: `gitparse runs git against a local repository and turns its output into
structured records: changed files, commits with the files they touched, and
per-line blame attribution.

Paths are reported as file:// URIs resolved against the repository root.

Examples:
  # Files changed in the working tree
  gitparse changes

  # Staged files as JSON
  gitparse changes --staged -o json

  # Last ten commits touching src/
  gitparse log -n 10 -- src/

  # Blame an unsaved editor buffer
  gitparse blame --contents /tmp/buffer src/main.go

  # Export history to ClickHouse
  CLICKHOUSE_HOSTNAME=ch.internal CLICKHOUSE_USERNAME=ci CLICKHOUSE_PASSWORD=... gitparse log --export`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.repoPath, "repo", "C", ".",
		"Path inside the git repository to inspect")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "",
		"Output format: text, json or yaml (overrides GITPARSE_OUTPUT)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	rootCmd.AddCommand(
		newChangesCmd(deps, opts),
		newLogCmd(deps, opts),
		newBlameCmd(deps, opts),
	)

	return rootCmd
}

// session is the per-invocation state shared by the subcommands.
type session struct {
	ctx     context.Context
	log     Logger
	cfg     *AppConfig
	repo    domain.LocalGitRepository
	history domain.HistoryReader
	writer  domain.OutputWriter
}

// openSession loads configuration, opens the repository and builds the history
// reader and output writer. The returned close function must always be called.
func openSession(cmd *cobra.Command, deps *Dependencies, opts *rootOptions) (*session, func(), error) {
	noop := func() {}
	if deps == nil {
		return nil, noop, errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	// Set log level based on verbose flag (best-effort)
	if opts.verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	log.Info(ctx, "starting gitparse", map[string]interface{}{
		"command": cmd.Name(),
		"path":    opts.repoPath,
		"verbose": opts.verbose,
	})

	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return nil, noop, fmt.Errorf("configuration error: %w", err)
	}

	format := cfg.OutputFormat
	if opts.output != "" {
		format = opts.output
	}
	writer, err := deps.OutputWriterFactory(format, stdout)
	if err != nil {
		log.Error(ctx, "failed to create output writer", err, map[string]interface{}{
			"format": format,
		})
		return nil, noop, fmt.Errorf("output error: %w", err)
	}

	gitRepo, err := deps.GitRepoFactory(opts.repoPath, log)
	if err != nil {
		log.Error(ctx, "failed to open git repository", err, map[string]interface{}{
			"path": opts.repoPath,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return nil, noop, fmt.Errorf("not a git repository: %s", opts.repoPath)
		}
		return nil, noop, err
	}
	closeRepo := func() {
		if closeErr := gitRepo.Close(); closeErr != nil {
			log.Warn(ctx, "failed to close git repository", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}

	return &session{
		ctx:     ctx,
		log:     log,
		cfg:     cfg,
		repo:    gitRepo,
		history: deps.HistoryFactory(gitRepo, cfg, log),
		writer:  writer,
	}, closeRepo, nil
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
