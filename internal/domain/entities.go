// Package domain defines the core entities and interfaces for gitparse.
package domain

import (
	"strings"
)

// Status classifies how a file changed between two versions.
// The zero value is not a valid status.
type Status int

const (
	// StatusConflicted marks an unmerged path.
	StatusConflicted Status = iota + 1
	// StatusCopied marks a path copied from another path (similarity status).
	StatusCopied
	// StatusDeleted marks a removed path.
	StatusDeleted
	// StatusModified marks a path whose content changed.
	StatusModified
	// StatusNew marks a newly added path.
	StatusNew
	// StatusRenamed marks a path moved from another path (similarity status).
	StatusRenamed
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusConflicted:
		return "conflicted"
	case StatusCopied:
		return "copied"
	case StatusDeleted:
		return "deleted"
	case StatusModified:
		return "modified"
	case StatusNew:
		return "new"
	case StatusRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name so JSON and YAML output stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsSimilarity reports whether the status carries both an old and a new path.
func (s Status) IsSimilarity() bool {
	return s == StatusRenamed || s == StatusCopied
}

// ResourceID is a canonical identifier for a file inside a repository,
// typically a file:// URI.
type ResourceID string

// FileChange is one entry of a name-status listing.
// OldURI is set only for similarity statuses (renamed or copied).
type FileChange struct {
	Status Status     `json:"status" yaml:"status"`
	URI    ResourceID `json:"uri" yaml:"uri"`
	OldURI ResourceID `json:"oldUri,omitempty" yaml:"oldUri,omitempty"`
	Staged bool       `json:"staged,omitempty" yaml:"staged,omitempty"`
}

// CommitIdentity identifies the author of a commit.
type CommitIdentity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`

	// Timestamp is the author time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`

	// TimezoneOffset is the author timezone offset in minutes, when known.
	TimezoneOffset *int `json:"tzOffset,omitempty" yaml:"tzOffset,omitempty"`
}

// Commit is a single commit together with the files it touched.
type Commit struct {
	// SHA is the full or abbreviated hex hash, depending on the requested format.
	SHA    string         `json:"sha" yaml:"sha"`
	Author CommitIdentity `json:"author" yaml:"author"`

	Summary string `json:"summary" yaml:"summary"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`

	AuthorDateRelative string `json:"authorDateRelative,omitempty" yaml:"authorDateRelative,omitempty"`

	// FileChanges preserves the order in which git emitted the changes.
	FileChanges []FileChange `json:"fileChanges,omitempty" yaml:"fileChanges,omitempty"`
}

// BlameLine attributes one line of the current file version to a commit.
type BlameLine struct {
	SHA  string `json:"sha" yaml:"sha"`
	Line int    `json:"line" yaml:"line"`
}

// FileBlame is the per-line attribution of a file.
// Lines is dense: Lines[i] describes zero-based line i.
type FileBlame struct {
	URI     ResourceID  `json:"uri" yaml:"uri"`
	Commits []Commit    `json:"commits" yaml:"commits"`
	Lines   []BlameLine `json:"lines" yaml:"lines"`
}

// Commit returns the commit with the given sha, or nil.
func (b *FileBlame) Commit(sha string) *Commit {
	for i := range b.Commits {
		if b.Commits[i].SHA == sha {
			return &b.Commits[i]
		}
	}
	return nil
}

// Working-tree pseudo commit reported by git blame for lines not yet committed.
const (
	UncommittedSHAPrefix = "0000000"
	UncommittedAuthor    = "You"
	UncommittedSummary   = "uncommitted"
)

// IsUncommittedSHA reports whether sha is the working-tree pseudo-sha.
func IsUncommittedSHA(sha string) bool {
	return strings.HasPrefix(sha, UncommittedSHAPrefix)
}

// RepositoryInfo describes the repository a query runs against.
type RepositoryInfo struct {
	// Root is the absolute path of the working tree root.
	Root string

	// Name is owner/repo derived from the origin remote, or the root directory name.
	Name string

	// HeadSHA is empty for a repository without commits.
	HeadSHA string

	// Branch is empty when HEAD is detached.
	Branch string

	IsDetached bool
}

// ChangesInput selects a name-status listing.
type ChangesInput struct {
	// Revisions are passed to git diff verbatim (e.g. "HEAD~3..HEAD").
	Revisions []string

	// Staged compares the index against HEAD instead of the working tree against the index.
	Staged bool

	Paths []string
}

// LogInput selects a commit listing.
type LogInput struct {
	// Revision defaults to HEAD when empty.
	Revision string

	// MaxCount limits the number of commits; zero means unlimited.
	MaxCount int

	// ShortHash requests abbreviated hashes.
	ShortHash bool

	Paths []string
}

// BlameInput selects the file to blame.
type BlameInput struct {
	// Path is relative to the repository root.
	Path string

	// Contents optionally names a file whose contents replace the working tree version,
	// for example an unsaved editor buffer.
	Contents string
}
