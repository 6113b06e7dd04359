package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// Delimiters of a commit listing produced with CommitFormat. Neither collides
// with the NUL used inside the embedded name-status block.
const (
	RecordDelimiter = "\x02"
	FieldDelimiter  = "\x01"
)

// Placeholder is a git pretty-format field code.
type Placeholder string

// Placeholders understood by git log --format.
const (
	Hash               Placeholder = "%H"
	ShortHash          Placeholder = "%h"
	AuthorEmail        Placeholder = "%aE"
	AuthorName         Placeholder = "%aN"
	AuthorDate         Placeholder = "%ad"
	AuthorRelativeDate Placeholder = "%ar"
	Subject            Placeholder = "%s"
	Body               Placeholder = "%b"
)

// DefaultPlaceholders is the field order CommitParser destructures.
// AuthorDate must be rendered with --date=unix.
var DefaultPlaceholders = []Placeholder{
	Hash, AuthorEmail, AuthorName, AuthorDate, AuthorRelativeDate, Subject, Body,
}

// CommitFormat builds the --format value for the given placeholders: every record
// starts with the record delimiter and every field is followed by the field delimiter,
// so whatever git appends after the format (the name-status block) lands in a final field.
func CommitFormat(placeholders ...Placeholder) string {
	if len(placeholders) == 0 {
		placeholders = DefaultPlaceholders
	}
	var b strings.Builder
	b.WriteString("%x02")
	for _, p := range placeholders {
		b.WriteString(string(p))
		b.WriteString("%x01")
	}
	return b.String()
}

// CommitParser turns commit records into domain commits. Fields are read strictly
// by position: sha, author email, author name, unix author date, relative date,
// summary, body, then the raw name-status block.
type CommitParser struct {
	Changes *NameStatusParser

	// Placeholders is the format the records were produced with; only its length
	// matters. Defaults to DefaultPlaceholders.
	Placeholders []Placeholder
}

// NewCommitParser creates a commit parser delegating file changes to changes.
func NewCommitParser(changes *NameStatusParser) *CommitParser {
	return &CommitParser{Changes: changes}
}

// Parse splits output into records and parses each one.
func (p *CommitParser) Parse(root, output string) ([]domain.Commit, error) {
	return p.ParseRecords(root, Split(output, RecordDelimiter))
}

// ParseRecords parses records already split on RecordDelimiter.
// Records with fewer fields than the format declares are incomplete and skipped,
// which drops a trailing record cut short by a killed process. The last record is
// also dropped when its change block ends mid-record; earlier records fail with
// domain.ErrMalformedRecord.
func (p *CommitParser) ParseRecords(root string, records []string) ([]domain.Commit, error) {
	fieldCount := len(p.Placeholders)
	if fieldCount == 0 {
		fieldCount = len(DefaultPlaceholders)
	}

	records = Tokens(records)
	commits := make([]domain.Commit, 0, len(records))
	for n, record := range records {
		fields := strings.Split(record, FieldDelimiter)
		if len(fields) <= fieldCount {
			continue
		}

		fields, raw := fields[:fieldCount], fields[fieldCount]
		commit := domain.Commit{
			SHA: field(fields, 0),
			Author: domain.CommitIdentity{
				Email:     field(fields, 1),
				Name:      field(fields, 2),
				Timestamp: parseUnixMillis(field(fields, 3)),
			},
			AuthorDateRelative: field(fields, 4),
			Summary:            field(fields, 5),
			Body:               strings.TrimSpace(field(fields, 6)),
		}

		changes, err := p.parseChanges(root, raw)
		if err != nil {
			if n == len(records)-1 && errors.Is(err, domain.ErrMalformedRecord) {
				break
			}
			return nil, err
		}
		commit.FileChanges = changes
		commits = append(commits, commit)
	}
	return commits, nil
}

func (p *CommitParser) parseChanges(root, raw string) ([]domain.FileChange, error) {
	if p.Changes == nil {
		return nil, nil
	}
	parts := strings.Split(raw, NULDelimiter)
	for i := range parts {
		parts[i] = strings.Trim(parts[i], "\r\n")
	}
	tokens := Tokens(parts)
	if len(tokens) == 0 {
		return nil, nil
	}
	return p.Changes.Parse(root, tokens)
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// parseUnixMillis converts unix seconds to milliseconds; unparsable input yields 0.
func parseUnixMillis(s string) int64 {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return secs * 1000
}
