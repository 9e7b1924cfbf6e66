package workflow

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// CommandTask returns a TaskFunc that runs an external command and yields its
// trimmed standard output.
func CommandTask(name string, args ...string) TaskFunc {
	return func(ctx context.Context, tc *TaskContext) (any, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, errors.Wrapf(err, "command %s failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		out := strings.TrimSpace(stdout.String())
		if tc != nil && tc.Logger != nil {
			tc.Logger.Info("Command finished", "command", name, "output", out)
		}
		return out, nil
	}
}
