/**
 * External command execution
 *
 * The rasterizer shells out to poppler tools. Runner is the seam that lets
 * tests replace the binary with a fake that writes page files directly.
 */

package raster

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

// maxLoggedStderr caps how much tool output lands in a single log line
const maxLoggedStderr = 4 << 10

// Runner executes an external tool and returns what it wrote
type Runner interface {
	Run(ctx context.Context, name string, logger *logging.Logger, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools as child processes, killed when ctx ends
type ExecRunner struct{}

// Run executes name with args and waits for it to exit
func (ExecRunner) Run(ctx context.Context, name string, logger *logging.Logger, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started).Milliseconds()

	if err == nil {
		logger.Debug("Tool finished", "tool", name, "args", len(args), "elapsedMs", elapsed)
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	logger.Error("Tool failed",
		"tool", name,
		"exitCode", exitCode,
		"elapsedMs", elapsed,
		"error", err,
		"stderr", stderrTail(stderr.Bytes(), maxLoggedStderr))

	return stdout.Bytes(), stderr.Bytes(), err
}

// stderrTail keeps the end of the output, where poppler prints the actual error
func stderrTail(b []byte, limit int) string {
	b = bytes.TrimSpace(b)
	if len(b) <= limit {
		return string(b)
	}
	return "..." + string(b[len(b)-limit:])
}
