// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
	"github.com/MyCarrier-DevOps/gitparse/internal/parser"
)

// Logger defines the logging interface required by the history service.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// DefaultGitBinary is used when Options.GitBinary is empty.
const DefaultGitBinary = "git"

// stderr fragments git prints when a path or repository has no history to blame.
var noHistoryMarkers = []string{
	"no such path",
	"does not have any commits yet",
	"bad revision 'HEAD'",
}

// Options tunes how the history service invokes git.
type Options struct {
	GitBinary string

	// BlameConcurrency bounds parallel commit-body fetches; values below 2 fetch sequentially.
	BlameConcurrency int
}

// HistoryService answers history queries by running git and parsing its output.
// It implements domain.HistoryReader.
type HistoryService struct {
	exec     domain.Executor
	repo     domain.LocalGitRepository
	resolver domain.ResourceResolver
	opts     Options
	logger   Logger
}

// NewHistoryService creates a new HistoryService with the given dependencies.
func NewHistoryService(
	exec domain.Executor,
	repo domain.LocalGitRepository,
	resolver domain.ResourceResolver,
	opts Options,
	log Logger,
) *HistoryService {
	if opts.GitBinary == "" {
		opts.GitBinary = DefaultGitBinary
	}
	return &HistoryService{
		exec:     exec,
		repo:     repo,
		resolver: resolver,
		opts:     opts,
		logger:   log,
	}
}

// Changes lists changed files. Without revisions it compares the working tree
// with the index, or the index with HEAD when input.Staged is set.
func (s *HistoryService) Changes(ctx context.Context, input domain.ChangesInput) ([]domain.FileChange, error) {
	info, err := s.repo.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository info: %w", err)
	}

	args := []string{"diff", "--name-status", "-z", "-M"}
	if input.Staged {
		args = append(args, "--cached")
	}
	args = append(args, input.Revisions...)
	args = append(args, "--")
	args = append(args, input.Paths...)

	out, err := s.run(ctx, info.Root, args)
	if err != nil {
		return nil, err
	}

	p := parser.NewNameStatusParser(s.resolver)
	p.Staged = input.Staged
	changes, err := p.ParseText(info.Root, out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse name-status output: %w", err)
	}

	s.logger.Debug(ctx, "parsed file changes", map[string]interface{}{
		"root":    info.Root,
		"staged":  input.Staged,
		"changes": len(changes),
	})
	return changes, nil
}

// Log lists commits reachable from input.Revision (HEAD by default), newest first,
// each with the files it touched. A repository without commits yields an empty list.
func (s *HistoryService) Log(ctx context.Context, input domain.LogInput) ([]domain.Commit, error) {
	info, err := s.repo.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository info: %w", err)
	}
	if input.Revision == "" && info.HeadSHA == "" {
		s.logger.Warn(ctx, "repository has no commits; nothing to log", map[string]interface{}{
			"root": info.Root,
		})
		return []domain.Commit{}, nil
	}

	placeholders := logPlaceholders(input.ShortHash)
	args := []string{
		"log", "--name-status", "-z", "-M", "--date=unix",
		"--format=" + parser.CommitFormat(placeholders...),
	}
	if input.MaxCount > 0 {
		args = append(args, "-n", strconv.Itoa(input.MaxCount))
	}
	if input.Revision != "" {
		args = append(args, input.Revision)
	}
	args = append(args, "--")
	args = append(args, input.Paths...)

	out, err := s.run(ctx, info.Root, args)
	if err != nil {
		return nil, err
	}

	p := parser.NewCommitParser(parser.NewNameStatusParser(s.resolver))
	p.Placeholders = placeholders
	commits, err := p.Parse(info.Root, out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log output: %w", err)
	}

	s.logger.Debug(ctx, "parsed commits", map[string]interface{}{
		"root":     info.Root,
		"revision": input.Revision,
		"commits":  len(commits),
	})
	return commits, nil
}

// Blame attributes every line of input.Path. It returns (nil, nil) when the file
// has no history, such as a path that was never committed.
func (s *HistoryService) Blame(ctx context.Context, input domain.BlameInput) (*domain.FileBlame, error) {
	info, err := s.repo.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository info: %w", err)
	}

	args := []string{"blame", "--root", "--incremental"}
	if input.Contents != "" {
		args = append(args, "--contents", input.Contents)
	}
	args = append(args, "--", input.Path)

	out, err := s.run(ctx, info.Root, args)
	if err != nil {
		if isNoHistory(err) {
			s.logger.Warn(ctx, "no blame available", map[string]interface{}{
				"path": input.Path,
			})
			return nil, nil
		}
		return nil, err
	}

	path := input.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(info.Root, filepath.FromSlash(path))
	}

	p := parser.NewBlameParser(parser.LayoutIncremental)
	p.Concurrency = s.opts.BlameConcurrency
	blame, err := p.Parse(ctx, s.resolver.Resolve(path), out, s.repo.CommitBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build blame for %s: %w", input.Path, err)
	}

	if blame == nil {
		s.logger.Warn(ctx, "no blame available", map[string]interface{}{
			"path": input.Path,
		})
		return nil, nil
	}

	s.logger.Debug(ctx, "built blame", map[string]interface{}{
		"path":    input.Path,
		"commits": len(blame.Commits),
		"lines":   len(blame.Lines),
	})
	return blame, nil
}

// run executes git in dir and returns stdout, turning a non-zero exit into a *domain.CommandError.
func (s *HistoryService) run(ctx context.Context, dir string, args []string) (string, error) {
	res, err := s.exec.Exec(ctx, dir, s.opts.GitBinary, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &domain.CommandError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

func logPlaceholders(short bool) []parser.Placeholder {
	placeholders := make([]parser.Placeholder, len(parser.DefaultPlaceholders))
	copy(placeholders, parser.DefaultPlaceholders)
	if short {
		placeholders[0] = parser.ShortHash
	}
	return placeholders
}

func isNoHistory(err error) bool {
	var cmdErr *domain.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, marker := range noHistoryMarkers {
		if strings.Contains(cmdErr.Stderr, marker) {
			return true
		}
	}
	return false
}
