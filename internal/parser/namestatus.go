package parser

import (
	"fmt"
	"path/filepath"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// NULDelimiter separates the tokens of a `--name-status -z` listing.
const NULDelimiter = "\x00"

// NameStatusParser turns name-status tokens into file changes.
// Each record is (status, path) or, for renames and copies, (status, old path, new path).
type NameStatusParser struct {
	Resolver domain.ResourceResolver

	// Staged is copied onto every parsed record.
	Staged bool
}

// NewNameStatusParser creates a parser resolving paths with resolver.
func NewNameStatusParser(resolver domain.ResourceResolver) *NameStatusParser {
	return &NameStatusParser{Resolver: resolver}
}

// ParseText tokenizes NUL-delimited output and parses it.
func (p *NameStatusParser) ParseText(root, output string) ([]domain.FileChange, error) {
	return p.Parse(root, Split(output, NULDelimiter))
}

// Parse walks tokens with an explicit cursor, resolving every path against root.
// A record whose path tokens are missing yields domain.ErrMalformedRecord.
func (p *NameStatusParser) Parse(root string, tokens []string) ([]domain.FileChange, error) {
	changes := make([]domain.FileChange, 0, len(tokens)/2)
	for i := 0; i < len(tokens); {
		raw := tokens[i]
		status, err := MapStatus(raw)
		if err != nil {
			return nil, err
		}

		width := 2
		if status.IsSimilarity() {
			width = 3
		}
		if i+width > len(tokens) {
			return nil, fmt.Errorf("%w: status %q at token %d needs %d path(s), %d token(s) left",
				domain.ErrMalformedRecord, raw, i, width-1, len(tokens)-i-1)
		}

		change := domain.FileChange{Status: status, Staged: p.Staged}
		if width == 3 {
			change.OldURI = p.resolve(root, tokens[i+1])
			change.URI = p.resolve(root, tokens[i+2])
		} else {
			change.URI = p.resolve(root, tokens[i+1])
		}
		changes = append(changes, change)
		i += width
	}
	return changes, nil
}

func (p *NameStatusParser) resolve(root, path string) domain.ResourceID {
	return p.Resolver.Resolve(filepath.Join(root, filepath.FromSlash(path)))
}
