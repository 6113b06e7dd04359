package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// A status letter optionally followed by a similarity or dissimilarity score, e.g. "R100".
var statusLetterPattern = regexp.MustCompile(`^([A-Za-z])[0-9]*$`)

var letterStatuses = map[string]domain.Status{
	"A": domain.StatusNew,
	"C": domain.StatusCopied,
	"D": domain.StatusDeleted,
	"M": domain.StatusModified,
	"R": domain.StatusRenamed,
	"T": domain.StatusModified,
	"U": domain.StatusConflicted,
}

var wordStatuses = map[string]domain.Status{
	"added":      domain.StatusNew,
	"conflicted": domain.StatusConflicted,
	"copied":     domain.StatusCopied,
	"deleted":    domain.StatusDeleted,
	"modified":   domain.StatusModified,
	"new":        domain.StatusNew,
	"renamed":    domain.StatusRenamed,
}

// MapStatus maps a git status letter ("M", "R100") or word ("renamed") to a domain.Status.
// Anything else yields an *domain.UnexpectedStatusError naming the raw value.
func MapStatus(raw string) (domain.Status, error) {
	if m := statusLetterPattern.FindStringSubmatch(raw); m != nil {
		if s, ok := letterStatuses[strings.ToUpper(m[1])]; ok {
			return s, nil
		}
		return 0, &domain.UnexpectedStatusError{Value: raw}
	}
	if s, ok := wordStatuses[strings.ToLower(raw)]; ok {
		return s, nil
	}
	return 0, &domain.UnexpectedStatusError{Value: raw}
}

// StatusCode maps a domain.Status back to its git status letter.
func StatusCode(s domain.Status) (string, error) {
	switch s {
	case domain.StatusConflicted:
		return "U", nil
	case domain.StatusCopied:
		return "C", nil
	case domain.StatusDeleted:
		return "D", nil
	case domain.StatusModified:
		return "M", nil
	case domain.StatusNew:
		return "A", nil
	case domain.StatusRenamed:
		return "R", nil
	default:
		return "", &domain.UnexpectedStatusError{Value: strconv.Itoa(int(s))}
	}
}

// IsSimilarityStatus reports whether a raw name-status token, letter or word,
// denotes a rename or copy.
func IsSimilarityStatus(raw string) bool {
	s, err := MapStatus(raw)
	return err == nil && s.IsSimilarity()
}
