// Package main is the entry point for the gitparse CLI application.
// gitparse runs git against a local repository and renders its history as
// structured records, optionally exporting commits to ClickHouse.
package main

import (
	"context"
	"io"
	"os"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/gitparse/cmd"
	"github.com/MyCarrier-DevOps/gitparse/internal/adapters/git"
	logadapter "github.com/MyCarrier-DevOps/gitparse/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/gitparse/internal/adapters/output"
	"github.com/MyCarrier-DevOps/gitparse/internal/adapters/process"
	"github.com/MyCarrier-DevOps/gitparse/internal/adapters/store"
	"github.com/MyCarrier-DevOps/gitparse/internal/adapters/uri"
	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
	"github.com/MyCarrier-DevOps/gitparse/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/gitparse/internal/usecases"
)

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()
	adapter := logadapter.NewZapAdapter(zapLog)

	cmd.SetDefaultDependencies(newDependencies(adapter, config.Load))
	cmd.Execute()
}

// newDependencies wires the production adapters around a shared logger.
func newDependencies(adapter *logadapter.ZapAdapter, load func() (*config.Config, error)) *cmd.Dependencies {
	return &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			cfg, err := load()
			if err != nil {
				return nil, err
			}
			return toAppConfig(cfg), nil
		},

		GitRepoFactory: func(path string, _ cmd.Logger) (domain.LocalGitRepository, error) {
			repo, err := git.NewGoGitRepository(path, adapter)
			if err != nil {
				return nil, err
			}
			return repo, nil
		},

		HistoryFactory: func(repo domain.LocalGitRepository, cfg *cmd.AppConfig, _ cmd.Logger) domain.HistoryReader {
			log := adapter
			if gitRepo, ok := repo.(*git.GoGitRepository); ok {
				log = adapter.With(map[string]any{"root": gitRepo.Root()})
			}
			return usecases.NewHistoryService(
				process.NewRunner(log),
				repo,
				uri.NewFileResolver(),
				usecases.Options{
					GitBinary:        cfg.GitBinary,
					BlameConcurrency: cfg.BlameConcurrency,
				},
				log,
			)
		},

		OutputWriterFactory: func(format string, out io.Writer) (domain.OutputWriter, error) {
			f, err := output.ParseFormat(format)
			if err != nil {
				return nil, err
			}
			return output.NewWriterWithOutput(out, f), nil
		},

		SinkFactory: func(ctx context.Context, cfg *cmd.AppConfig, _ cmd.Logger) (domain.CommitSink, error) {
			chConfig, ok := cfg.ExportConfig.(*ch.ClickhouseConfig)
			if !ok {
				return nil, newConfigTypeError("*ch.ClickhouseConfig")
			}
			sink, err := store.Open(ctx, chConfig, adapter)
			if err != nil {
				return nil, err
			}
			return sink, nil
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func toAppConfig(cfg *config.Config) *cmd.AppConfig {
	return &cmd.AppConfig{
		GitBinary:        cfg.GitBinary,
		OutputFormat:     cfg.OutputFormat,
		BlameConcurrency: cfg.BlameConcurrency,
		ExportEnabled:    cfg.ExportEnabled(),
		ExportConfig:     cfg.ClickHouse,
		LogLevel:         cfg.LogLevel,
		LogAppName:       cfg.LogAppName,
	}
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
