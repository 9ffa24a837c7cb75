// Package decimate runs the external mesh simplification tool that produces
// the reduced meshes for LOD 1 and up.
package decimate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAttributes are the mesh attributes the tool is asked to write.
var DefaultAttributes = []string{"vc", "vn", "fc", "fn", "wt"}

// ToolError reports a decimation run that did not exit cleanly.
type ToolError struct {
	Lod      int
	ExitCode int // -1 when the tool could not be started or was killed
	Stderr   string
	Stdout   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("decimation for LOD %d failed", e.Lod)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Runner invokes the tool as
//
//	<Tool> -i <input> -o <output> -m <Attributes...> -s <ScriptDir>/<ScriptPattern % lod>
type Runner struct {
	Tool          string
	ScriptDir     string
	ScriptPattern string // e.g. "testscript-%d.mlx"
	Attributes    []string
	TempDir       string
	Timeout       time.Duration // per run, 0 means none

	Log *zap.Logger
}

// Script returns the filter script used for lod.
func (r *Runner) Script(lod int) string {
	return filepath.Join(r.ScriptDir, fmt.Sprintf(r.ScriptPattern, lod))
}

// OutputPath returns where the mesh for lod is written.
func (r *Runner) OutputPath(input string, lod int) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.LastIndex(base, "LOD"); i > 0 {
		base = base[:i]
	}
	return filepath.Join(r.TempDir, fmt.Sprintf("%sLOD%d.obj", base, lod))
}

// Args returns the tool arguments for one run.
func (r *Runner) Args(lod int, input, output string) []string {
	attrs := r.Attributes
	if len(attrs) == 0 {
		attrs = DefaultAttributes
	}
	args := []string{"-i", input, "-o", output, "-m"}
	args = append(args, attrs...)
	return append(args, "-s", r.Script(lod))
}

// Decimate simplifies input into the mesh for lod and returns its path.
func (r *Runner) Decimate(ctx context.Context, lod int, input string) (string, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(r.TempDir, 0755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	output := r.OutputPath(input, lod)
	args := r.Args(lod, input, output)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Tool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("running decimation",
		zap.Int("lod", lod),
		zap.String("tool", r.Tool),
		zap.Strings("args", args))

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		te := &ToolError{Lod: lod, ExitCode: -1, Stderr: stderr.String(), Stdout: stdout.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			te.ExitCode = exitErr.ExitCode()
		}
		return "", te
	}

	if _, err := os.Stat(output); err != nil {
		return "", &ToolError{Lod: lod, ExitCode: 0, Stderr: stderr.String(), Stdout: stdout.String(),
			Err: fmt.Errorf("output mesh missing: %w", err)}
	}

	log.Info("decimation done",
		zap.Int("lod", lod),
		zap.String("output", output),
		zap.Duration("elapsed", time.Since(start)))

	return output, nil
}
