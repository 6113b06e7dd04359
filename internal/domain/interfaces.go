// Package domain defines the core entities and interfaces for gitparse.
// This package contains no external dependencies and represents the innermost layer
// of the application.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain errors for git invocation and output parsing.
var (
	// ErrRepositoryNotFound indicates the specified path is not inside a Git repository.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrUnexpectedStatus indicates a status code outside the known vocabulary.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrMalformedRecord indicates a record is missing a required token.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCommandFailed indicates the git process exited with a non-zero code.
	ErrCommandFailed = errors.New("git command failed")
)

// UnexpectedStatusError carries the raw status value that could not be mapped.
type UnexpectedStatusError struct {
	Value string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnexpectedStatus, e.Value)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// CommandError describes a process that ran but exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s (exit %d): git %s: %s",
		ErrCommandFailed, e.ExitCode, strings.Join(e.Args, " "), strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// ExecResult is the captured outcome of a finished process.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a named executable with arguments in a working directory.
// A non-zero exit code is reported in ExecResult, not as an error; errors are
// reserved for processes that could not be started or were cancelled.
type Executor interface {
	Exec(ctx context.Context, dir, name string, args ...string) (*ExecResult, error)
}

// ResourceResolver maps an absolute on-disk path to a canonical resource identifier.
type ResourceResolver interface {
	Resolve(path string) ResourceID
}

// BodyFetcher returns the message body of the commit identified by sha.
type BodyFetcher func(ctx context.Context, sha string) (string, error)

// LocalGitRepository provides repository metadata and commit objects from a local repository.
type LocalGitRepository interface {
	// Info describes the repository root, HEAD and origin-derived name.
	Info(ctx context.Context) (*RepositoryInfo, error)

	// CommitBody returns the message body (everything after the subject) of a commit.
	CommitBody(ctx context.Context, sha string) (string, error)

	// Close releases any resources held by the repository.
	Close() error
}

// HistoryReader answers the three history queries.
type HistoryReader interface {
	// Changes lists the files changed between revisions, the index or the working tree.
	Changes(ctx context.Context, input ChangesInput) ([]FileChange, error)

	// Log lists commits together with the files each one touched.
	Log(ctx context.Context, input LogInput) ([]Commit, error)

	// Blame attributes each line of a file to a commit.
	// Returns (nil, nil) when the file has no history.
	Blame(ctx context.Context, input BlameInput) (*FileBlame, error)
}

// CommitSink persists parsed commit history.
type CommitSink interface {
	WriteCommits(ctx context.Context, repository string, commits []Commit) error
	Close() error
}

// OutputWriter renders parsed records.
type OutputWriter interface {
	WriteChanges(changes []FileChange) error
	WriteCommits(commits []Commit) error

	// WriteBlame renders a blame result; a nil blame is reported as "no blame available".
	WriteBlame(path string, blame *FileBlame) error
}
