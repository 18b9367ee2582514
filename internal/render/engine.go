package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Job is one engine invocation.
type Job struct {
	SourcePath string
	Scene      string
	Format     string
	// Quality is the engine's quality flag letter: l, m, h or k.
	Quality  string
	MediaDir string
	Timeout  time.Duration
}

// Result is what a finished engine process reported.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Engine is the external rendering engine.
type Engine interface {
	Render(ctx context.Context, job Job) (Result, error)
}

// ExecError describes a failed engine process.
type ExecError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ExecError) Error() string {
	if e.TimedOut {
		return "render: engine timed out"
	}
	return fmt.Sprintf("render: engine exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

var qualityDirs = map[string]string{
	"l": "480p15",
	"m": "720p30",
	"h": "1080p60",
	"k": "2160p60",
}

// ArtifactPath is where the engine writes the video for job:
// <media>/videos/<source stem>/<quality dir>/<scene>.<format>.
func ArtifactPath(job Job) string {
	stem := strings.TrimSuffix(filepath.Base(job.SourcePath), filepath.Ext(job.SourcePath))
	qdir, ok := qualityDirs[job.Quality]
	if !ok {
		qdir = qualityDirs["l"]
	}
	media := job.MediaDir
	if media == "" {
		media = "media"
	}
	return filepath.Join(media, "videos", stem, qdir, job.Scene+"."+job.Format)
}

// ManimEngine runs the manim command line.
type ManimEngine struct {
	Bin    string
	logger *zap.Logger
}

// NewManimEngine creates an engine for the given binary ("manim" if empty).
func NewManimEngine(bin string, logger *zap.Logger) *ManimEngine {
	if bin == "" {
		bin = "manim"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManimEngine{Bin: bin, logger: logger.Named("manim")}
}

// Args returns the command line for job, without the binary.
func (e *ManimEngine) Args(job Job) []string {
	args := []string{"-q" + job.Quality, job.SourcePath, job.Scene, "--format", job.Format}
	if job.MediaDir != "" {
		args = append(args, "--media_dir", job.MediaDir)
	}
	return args
}

// Render runs the engine. The process is killed when the timeout expires.
func (e *ManimEngine) Render(ctx context.Context, job Job) (Result, error) {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Bin, e.Args(job)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	e.logger.Debug("engine finished",
		zap.String("source", job.SourcePath),
		zap.Duration("duration", res.Duration),
		zap.Error(err))

	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, &ExecError{ExitCode: -1, Stderr: res.Stderr, TimedOut: true, Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ExecError{ExitCode: exitErr.ExitCode(), Stderr: res.Stderr, Err: err}
	}
	return res, &ExecError{ExitCode: -1, Stderr: res.Stderr, Err: err}
}
