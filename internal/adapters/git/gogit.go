// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.LocalGitRepository interface using go-git/v5.
package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// Logger defines the logging interface for the git adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// GoGitRepository implements domain.LocalGitRepository using go-git/v5.
// It locates the repository root and reads commit objects for blame bodies.
type GoGitRepository struct {
	repo   *git.Repository
	root   string
	logger Logger
}

// NewGoGitRepository opens the repository containing path, walking up to the
// nearest .git directory. Returns domain.ErrRepositoryNotFound if there is none.
func NewGoGitRepository(path string, log Logger) (*GoGitRepository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, path)
	}

	root, err := worktreeRoot(repo, path)
	if err != nil {
		return nil, err
	}

	return &GoGitRepository{
		repo:   repo,
		root:   root,
		logger: log,
	}, nil
}

// worktreeRoot returns the working tree root, or the absolute path itself for bare repositories.
func worktreeRoot(repo *git.Repository, path string) (string, error) {
	wt, err := repo.Worktree()
	if err == nil {
		return wt.Filesystem.Root(), nil
	}
	if !errors.Is(err, git.ErrIsBareRepository) {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

// Root returns the absolute working tree root.
func (r *GoGitRepository) Root() string {
	return r.root
}

// Info describes the repository. A repository without commits has an empty HeadSHA,
// and one without an origin remote is named after its root directory.
func (r *GoGitRepository) Info(ctx context.Context) (*domain.RepositoryInfo, error) {
	info := &domain.RepositoryInfo{
		Root: r.root,
		Name: filepath.Base(r.root),
	}

	head, err := r.repo.Head()
	switch {
	case err == nil:
		info.HeadSHA = head.Hash().String()
		info.IsDetached = !head.Name().IsBranch()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		r.logger.Warn(ctx, "repository has no commits yet", map[string]interface{}{
			"root": r.root,
		})
	default:
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	if remote, err := r.repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			if name, err := parseRepoFromURL(urls[0]); err == nil {
				info.Name = name
			} else {
				r.logger.Warn(ctx, "could not derive repository name from origin", map[string]interface{}{
					"url": urls[0],
				})
			}
		}
	}

	r.logger.Debug(ctx, "resolved repository info", map[string]interface{}{
		"root":        info.Root,
		"name":        info.Name,
		"head_sha":    info.HeadSHA,
		"branch":      info.Branch,
		"is_detached": info.IsDetached,
	})

	return info, nil
}

// CommitBody returns the commit message without its subject line, trimmed the
// same way the log parser trims %b.
// sha may be abbreviated.
func (r *GoGitRepository) CommitBody(ctx context.Context, sha string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	hash, err := r.resolveHash(sha)
	if err != nil {
		return "", err
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", fmt.Errorf("failed to read commit %s: %w", sha, err)
	}

	_, body, _ := strings.Cut(commit.Message, "\n")
	return strings.TrimSpace(body), nil
}

func (r *GoGitRepository) resolveHash(sha string) (plumbing.Hash, error) {
	if len(sha) == 40 && plumbing.IsHash(sha) {
		return plumbing.NewHash(sha), nil
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(sha))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve commit %s: %w", sha, err)
	}
	return *hash, nil
}

// Close releases any resources held by the repository.
// For go-git, this is a no-op as the repository doesn't hold persistent resources.
func (r *GoGitRepository) Close() error {
	return nil
}

// Regular expressions for parsing Git remote URLs.
var (
	// httpsURLPattern matches https://github.com/owner/repo(.git)
	httpsURLPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?$`)

	// sshURLPattern matches git@github.com:owner/repo(.git)
	sshURLPattern = regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+?)(?:\.git)?$`)
)

// parseRepoFromURL extracts owner/repo from an HTTPS or SSH remote URL.
func parseRepoFromURL(url string) (string, error) {
	url = strings.TrimSpace(url)

	if matches := httpsURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	if matches := sshURLPattern.FindStringSubmatch(url); len(matches) == 3 {
		return matches[1] + "/" + matches[2], nil
	}

	return "", fmt.Errorf("unrecognized URL format: %s", url)
}
