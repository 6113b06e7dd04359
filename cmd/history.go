package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// ErrExportNotConfigured is returned by log --export without an export target.
var ErrExportNotConfigured = errors.New("export requires CLICKHOUSE_HOSTNAME to be set")

func newChangesCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var staged bool

	cmd := &cobra.Command{
		Use:   "changes [revision...] [-- path...]",
		Short: "List changed files with their status",
		Long: `List changed files with their status.

Without revisions the working tree is compared with the index; --staged
compares the index with HEAD. Revisions and ranges are passed to git diff.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			revisions, paths := splitAtDash(cmd, args)

			s, closeSession, err := openSession(cmd, deps, opts)
			defer closeSession()
			if err != nil {
				return err
			}

			changes, err := s.history.Changes(s.ctx, domain.ChangesInput{
				Revisions: revisions,
				Staged:    staged,
				Paths:     paths,
			})
			if err != nil {
				s.log.Error(s.ctx, "failed to list changes", err, nil)
				return err
			}

			if err := s.writer.WriteChanges(changes); err != nil {
				s.log.Error(s.ctx, "failed to write output", err, nil)
				return fmt.Errorf("output error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "Compare the index with HEAD")

	return cmd
}

func newLogCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var (
		maxCount int
		short    bool
		export   bool
	)

	cmd := &cobra.Command{
		Use:   "log [revision] [-- path...]",
		Short: "List commits with the files each one touched",
		Args: func(cmd *cobra.Command, args []string) error {
			revisions, _ := splitAtDash(cmd, args)
			if len(revisions) > 1 {
				return fmt.Errorf("accepts at most one revision, received %d", len(revisions))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			revisions, paths := splitAtDash(cmd, args)
			input := domain.LogInput{
				MaxCount:  maxCount,
				ShortHash: short,
				Paths:     paths,
			}
			if len(revisions) == 1 {
				input.Revision = revisions[0]
			}

			s, closeSession, err := openSession(cmd, deps, opts)
			defer closeSession()
			if err != nil {
				return err
			}

			if export && !s.cfg.ExportEnabled {
				return ErrExportNotConfigured
			}

			commits, err := s.history.Log(s.ctx, input)
			if err != nil {
				s.log.Error(s.ctx, "failed to list commits", err, nil)
				return err
			}

			if export {
				return exportCommits(s, deps, commits)
			}

			if err := s.writer.WriteCommits(commits); err != nil {
				s.log.Error(s.ctx, "failed to write output", err, nil)
				return fmt.Errorf("output error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxCount, "max-count", "n", 0, "Limit the number of commits (0 means all)")
	cmd.Flags().BoolVar(&short, "short", false, "Report abbreviated commit hashes")
	cmd.Flags().BoolVar(&export, "export", false, "Export the commits to ClickHouse instead of printing them")

	return cmd
}

func exportCommits(s *session, deps *Dependencies, commits []domain.Commit) error {
	info, err := s.repo.Info(s.ctx)
	if err != nil {
		return err
	}

	sink, err := deps.SinkFactory(s.ctx, s.cfg, s.log)
	if err != nil {
		s.log.Error(s.ctx, "failed to connect export sink", err, nil)
		return fmt.Errorf("export error: %w", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			s.log.Warn(s.ctx, "failed to close export sink", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	if err := sink.WriteCommits(s.ctx, info.Name, commits); err != nil {
		s.log.Error(s.ctx, "failed to export commits", err, map[string]interface{}{
			"repository": info.Name,
		})
		return fmt.Errorf("export error: %w", err)
	}

	s.log.Info(s.ctx, "export complete", map[string]interface{}{
		"repository": info.Name,
		"commits":    len(commits),
	})
	return nil
}

func newBlameCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var contents string

	cmd := &cobra.Command{
		Use:   "blame <path>",
		Short: "Attribute each line of a file to the commit that last changed it",
		Long: `Attribute each line of a file to the commit that last changed it.

Lines not yet committed are attributed to the all-zero pseudo commit, reported
with author "You" and summary "uncommitted". A file without history prints
"no blame available" and is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeSession, err := openSession(cmd, deps, opts)
			defer closeSession()
			if err != nil {
				return err
			}

			blame, err := s.history.Blame(s.ctx, domain.BlameInput{
				Path:     args[0],
				Contents: contents,
			})
			if err != nil {
				s.log.Error(s.ctx, "failed to blame file", err, map[string]interface{}{
					"path": args[0],
				})
				return err
			}

			if err := s.writer.WriteBlame(args[0], blame); err != nil {
				s.log.Error(s.ctx, "failed to write output", err, nil)
				return fmt.Errorf("output error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contents, "contents", "",
		"Blame the contents of this file as the working tree version (e.g. an unsaved buffer)")

	return cmd
}

// splitAtDash separates positional arguments before and after "--".
func splitAtDash(cmd *cobra.Command, args []string) (before, after []string) {
	if i := cmd.ArgsLenAtDash(); i >= 0 {
		return args[:i], args[i:]
	}
	return args, nil
}
