// Package process runs external commands and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MyCarrier-DevOps/gitparse/internal/domain"
)

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// execCommand allows substituting exec.CommandContext in tests.
var execCommand = exec.CommandContext

// Runner implements domain.Executor on top of os/exec.
type Runner struct {
	logger Logger
}

// NewRunner creates a Runner that logs every invocation at debug level.
func NewRunner(log Logger) *Runner {
	return &Runner{logger: log}
}

// Exec runs name with args in dir and waits for it to finish.
// A non-zero exit status is returned in the result; an error means the process
// could not be started or the context ended first.
func (r *Runner) Exec(ctx context.Context, dir, name string, args ...string) (*domain.ExecResult, error) {
	cmd := execCommand(ctx, name, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &domain.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("run %s %s: %w", name, firstArg(args), err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if r.logger != nil {
		r.logger.Debug(ctx, "process finished", map[string]interface{}{
			"command":      name,
			"args":         args,
			"dir":          dir,
			"exit_code":    result.ExitCode,
			"stdout_bytes": stdout.Len(),
			"stderr_bytes": stderr.Len(),
		})
	}

	return result, nil
}

// firstArg names the subcommand without leaking paths into error messages.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
