package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// BlameLayout selects which header fields carry the start line and the line count.
type BlameLayout int

const (
	// LayoutStartCount reads "<sha> <start-line> <line-count> ...".
	LayoutStartCount BlameLayout = iota

	// LayoutIncremental reads "<sha> <source-line> <result-line> <line-count>",
	// the header emitted by git blame --incremental.
	LayoutIncremental
)

// DefaultMaxBlameLines caps the line table when BlameParser.MaxLines is zero.
const DefaultMaxBlameLines = 1 << 22

var angleAddress = regexp.MustCompile(`<(.*)>`)

// BlameParser reconstructs a FileBlame from incremental blame output.
type BlameParser struct {
	Layout BlameLayout

	// Concurrency bounds parallel body fetches; values below 2 fetch sequentially.
	Concurrency int

	// MaxLines is the largest line table Parse builds; hunks reaching past it are
	// ignored. Zero means DefaultMaxBlameLines.
	MaxLines int
}

// NewBlameParser creates a parser for the given header layout.
func NewBlameParser(layout BlameLayout) *BlameParser {
	return &BlameParser{Layout: layout}
}

// blameEntry accumulates the fields of one blame hunk until its filename line.
type blameEntry struct {
	sha        string
	line       int
	lineCount  int
	author     string
	authorMail string
	authorTime int64
	authorTZ   *int
	summary    string
	previous   string
	fileName   string
}

// Parse builds the blame of uri from output, calling fetch once per distinct
// committed sha to fill in commit bodies. Empty output yields (nil, nil): the
// file has no blame, which is not an error.
func (p *BlameParser) Parse(
	ctx context.Context,
	uri domain.ResourceID,
	output string,
	fetch domain.BodyFetcher,
) (*domain.FileBlame, error) {
	if strings.TrimSpace(output) == "" {
		return nil, nil
	}

	entries, size := p.boundEntries(p.parseEntries(output))

	blame := &domain.FileBlame{URI: uri, Lines: make([]domain.BlameLine, size)}
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.sha] {
			seen[e.sha] = true
			blame.Commits = append(blame.Commits, e.commit())
		}
		for n := e.line; n < e.line+e.lineCount; n++ {
			// Later hunks overwrite earlier ones; well-formed output never overlaps.
			blame.Lines[n] = domain.BlameLine{SHA: e.sha, Line: n}
		}
	}

	if err := p.fetchBodies(ctx, blame.Commits, fetch); err != nil {
		return nil, err
	}
	return blame, nil
}

// parseEntries runs the accumulator over every line. An entry still open when
// the input ends has no filename terminator and is dropped.
func (p *BlameParser) parseEntries(output string) []*blameEntry {
	var entries []*blameEntry
	var current *blameEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSuffix(line, "\r")
		var done bool
		current, done = p.pump(current, line)
		if done {
			entries = append(entries, current)
			current = nil
		}
	}
	return entries
}

// boundEntries drops hunks with a non-positive count or a negative start, and
// hunks ending past the table bound. The bound is the smaller of MaxLines and
// the total line count of all hunks, since well-formed hunks tile the file.
// It returns the kept entries and the resulting table size.
func (p *BlameParser) boundEntries(entries []*blameEntry) ([]*blameEntry, int) {
	limit := p.MaxLines
	if limit <= 0 {
		limit = DefaultMaxBlameLines
	}

	total := 0
	for _, e := range entries {
		if e.lineCount > 0 && e.lineCount <= limit {
			total += e.lineCount
		}
	}
	limit = min(limit, total)

	kept := entries[:0]
	size := 0
	for _, e := range entries {
		if e.lineCount <= 0 || e.line < 0 || e.line > limit-e.lineCount {
			continue
		}
		kept = append(kept, e)
		size = max(size, e.line+e.lineCount)
	}
	return kept, size
}

// pump feeds one line into the entry in progress, starting a new entry when
// current is nil. It reports whether the line terminated the entry.
func (p *BlameParser) pump(current *blameEntry, line string) (*blameEntry, bool) {
	tag, rest, ok := strings.Cut(line, " ")
	if !ok || tag == "" {
		return current, false
	}

	if current == nil {
		return p.header(line), false
	}

	uncommitted := domain.IsUncommittedSHA(current.sha)
	switch tag {
	case "author":
		if uncommitted {
			current.author = domain.UncommittedAuthor
		} else {
			current.author = rest
		}
	case "author-mail":
		if m := angleAddress.FindStringSubmatch(rest); m != nil {
			current.authorMail = m[1]
		} else {
			current.authorMail = rest
		}
	case "author-time":
		current.authorTime = parseUnixMillis(rest)
	case "author-tz":
		if tz, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			current.authorTZ = &tz
		}
	case "summary":
		if uncommitted {
			current.summary = domain.UncommittedSummary
		} else {
			current.summary = unquote(rest)
		}
	case "previous":
		current.previous, _, _ = strings.Cut(rest, " ")
	case "filename":
		current.fileName = rest
		return current, true
	}
	return current, false
}

func (p *BlameParser) header(line string) *blameEntry {
	fields := strings.Fields(line)
	startField, countField := 1, 2
	if p.Layout == LayoutIncremental {
		startField, countField = 2, 3
	}
	return &blameEntry{
		sha:       fields[0],
		line:      atoi(field(fields, startField)) - 1,
		lineCount: atoi(field(fields, countField)),
	}
}

func (p *BlameParser) fetchBodies(ctx context.Context, commits []domain.Commit, fetch domain.BodyFetcher) error {
	if fetch == nil {
		return nil
	}

	workers := p.Concurrency
	if workers < 2 {
		for i := range commits {
			if domain.IsUncommittedSHA(commits[i].SHA) {
				continue
			}
			body, err := fetch(ctx, commits[i].SHA)
			if err != nil {
				return fmt.Errorf("fetch body of %s: %w", commits[i].SHA, err)
			}
			commits[i].Body = body
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		sem      = make(chan struct{}, workers)
	)
	for i := range commits {
		if domain.IsUncommittedSHA(commits[i].SHA) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(c *domain.Commit) {
			defer wg.Done()
			defer func() { <-sem }()
			body, err := fetch(ctx, c.SHA)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("fetch body of %s: %w", c.SHA, err)
				}
				mu.Unlock()
				return
			}
			c.Body = body
		}(&commits[i])
	}
	wg.Wait()
	return firstErr
}

func (e *blameEntry) commit() domain.Commit {
	c := domain.Commit{
		SHA: e.sha,
		Author: domain.CommitIdentity{
			Name:      e.author,
			Email:     e.authorMail,
			Timestamp: e.authorTime,
		},
		Summary: e.summary,
	}
	if e.authorTZ != nil {
		minutes := tzMinutes(*e.authorTZ)
		c.Author.TimezoneOffset = &minutes
	}
	if domain.IsUncommittedSHA(e.sha) {
		c.Author.Name = domain.UncommittedAuthor
		c.Summary = domain.UncommittedSummary
	}
	return c
}

// tzMinutes converts git's signed hhmm offset (+0130 parses as 130) to minutes.
func tzMinutes(hhmm int) int {
	sign := 1
	if hhmm < 0 {
		sign, hhmm = -1, -hhmm
	}
	return sign * (hhmm/100*60 + hhmm%100)
}

// unquote strips one layer of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
