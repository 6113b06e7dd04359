// Package parser turns the text output of git commands into domain records.
//
// Three parsers are provided: NameStatusParser for `--name-status -z` listings,
// CommitParser for `git log` records produced with CommitFormat, and BlameParser
// for `git blame --incremental`. All parsing is synchronous and keeps its state
// local to a single call, so one parser value may be shared across goroutines.
package parser

import "strings"

// Split splits input on delim and returns the non-empty tokens.
func Split(input, delim string) []string {
	if input == "" {
		return nil
	}
	return Tokens(strings.Split(input, delim))
}

// Tokens drops the empty and whitespace-only entries of an already split sequence.
// Whitespace inside a token is preserved.
func Tokens(parts []string) []string {
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		res = append(res, p)
	}
	return res
}
