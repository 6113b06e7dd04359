// Package output provides adapters for writing application output.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
	"github.com/MyCarrier-DevOps/gitparse/internal/parser"
)

// Format selects how parsed records are rendered.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat indicates an output format outside the supported set.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name. An empty name selects FormatText.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

var (
	shaColor     = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	statusColors = map[domain.Status]*color.Color{
		domain.StatusNew:        color.New(color.FgGreen),
		domain.StatusDeleted:    color.New(color.FgRed),
		domain.StatusModified:   color.New(color.FgYellow),
		domain.StatusRenamed:    color.New(color.FgCyan),
		domain.StatusCopied:     color.New(color.FgCyan),
		domain.StatusConflicted: color.New(color.FgMagenta, color.Bold),
	}
)

// Writer renders file changes, commits and blame results to the configured destination.
// By default, it writes to stdout.
type Writer struct {
	out    io.Writer
	format Format
}

// NewWriter creates a new Writer that writes to stdout.
func NewWriter(format Format) *Writer {
	return &Writer{out: os.Stdout, format: format}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// WriteChanges renders a name-status listing.
func (w *Writer) WriteChanges(changes []domain.FileChange) error {
	if changes == nil {
		changes = []domain.FileChange{}
	}
	switch w.format {
	case FormatJSON:
		return w.writeJSON(changes)
	case FormatYAML:
		return w.writeYAML(changes)
	}

	for _, c := range changes {
		if err := w.writeChangeLine("", c); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommits renders a commit listing, newest first as git emitted it.
func (w *Writer) WriteCommits(commits []domain.Commit) error {
	if commits == nil {
		commits = []domain.Commit{}
	}
	switch w.format {
	case FormatJSON:
		return w.writeJSON(commits)
	case FormatYAML:
		return w.writeYAML(commits)
	}

	for i, c := range commits {
		if i > 0 {
			if _, err := fmt.Fprintln(w.out); err != nil {
				return err
			}
		}
		if err := w.writeCommitText(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteBlame renders the attribution of path. A nil blame means the file has
// no history and is reported as such rather than as an error.
func (w *Writer) WriteBlame(path string, blame *domain.FileBlame) error {
	switch w.format {
	case FormatJSON:
		return w.writeJSON(blame)
	case FormatYAML:
		return w.writeYAML(blame)
	}

	if blame == nil {
		_, err := fmt.Fprintf(w.out, "no blame available for %s\n", path)
		return err
	}

	width := len(fmt.Sprint(len(blame.Lines)))
	for _, l := range blame.Lines {
		author, summary := "", ""
		if c := blame.Commit(l.SHA); c != nil {
			author, summary = c.Author.Name, c.Summary
		}
		_, err := fmt.Fprintf(w.out, "%*d %s %-16s %s\n",
			width, l.Line+1, shaColor.Sprint(abbrev(l.SHA)), truncate(author, 16), summary)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeCommitText(c domain.Commit) error {
	header := shaColor.Sprint(c.SHA) + " " + c.Summary
	if _, err := fmt.Fprintln(w.out, header); err != nil {
		return err
	}

	date := ""
	if c.AuthorDateRelative != "" {
		date = dimColor.Sprintf(" (%s)", c.AuthorDateRelative)
	}
	if _, err := fmt.Fprintf(w.out, "Author: %s <%s>%s\n", c.Author.Name, c.Author.Email, date); err != nil {
		return err
	}

	if c.Body != "" {
		for _, line := range strings.Split(c.Body, "\n") {
			if _, err := fmt.Fprintln(w.out, "    "+line); err != nil {
				return err
			}
		}
	}

	for _, fc := range c.FileChanges {
		if err := w.writeChangeLine("  ", fc); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeChangeLine(indent string, c domain.FileChange) error {
	code, err := parser.StatusCode(c.Status)
	if err != nil {
		return err
	}
	if col, ok := statusColors[c.Status]; ok {
		code = col.Sprint(code)
	}

	target := string(c.URI)
	if c.OldURI != "" {
		target = string(c.OldURI) + " -> " + target
	}
	if c.Staged {
		target += dimColor.Sprint(" (staged)")
	}

	_, err = fmt.Fprintf(w.out, "%s%s\t%s\n", indent, code, target)
	return err
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (w *Writer) writeYAML(v any) error {
	enc := yaml.NewEncoder(w.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func abbrev(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
