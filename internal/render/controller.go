package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FallbackSource is the terminal substitute scene. It uses only core
// constructs and is rendered at most once per request.
const FallbackSource = `from manim import *

class AlgorithmScene(Scene):
    def construct(self):
        txt = Text('Fallback', font_size=48, color=WHITE)
        self.play(FadeIn(txt))
        self.wait(1)
        self.play(FadeOut(txt))
        self.wait(1)
`

// State is a render attempt's position in the controller's state machine.
type State string

const (
	StatePending          State = "pending"
	StateRendering        State = "rendering"
	StateSucceeded        State = "succeeded"
	StateRetryableFailure State = "retryable_failure"
	StateFatalFallback    State = "fatal_fallback"
	// StateFailed ends a single-shot render, which has no fallback.
	StateFailed State = "failed"
)

// Attempt records one engine invocation.
type Attempt struct {
	Index      int           `json:"index"`
	State      State         `json:"state"`
	Fallback   bool          `json:"fallback"`
	SourcePath string        `json:"source_path"`
	Failure    *Failure      `json:"failure,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Outcome is the final result of a Controller run.
type Outcome struct {
	// VideoPath is empty only when even the fallback failed.
	VideoPath string    `json:"video_path,omitempty"`
	Fallback  bool      `json:"fallback"`
	Attempts  []Attempt `json:"attempts"`
	// Source is the last non-fallback source attempted.
	Source string `json:"-"`
}

// Succeeded reports whether some artifact was produced.
func (o Outcome) Succeeded() bool { return o.VideoPath != "" }

// LastFailure returns the most recent failure, if any.
func (o Outcome) LastFailure() *Failure {
	for i := len(o.Attempts) - 1; i >= 0; i-- {
		if o.Attempts[i].Failure != nil {
			return o.Attempts[i].Failure
		}
	}
	return nil
}

// SourceFunc supplies source for attempt n (1-based). Attempt 1 is the
// initial source; later calls regenerate it. failure is the previous
// attempt's classified failure, nil on attempt 1.
type SourceFunc func(ctx context.Context, n int, failure *Failure) (string, error)

// Config bounds a Controller.
type Config struct {
	Attempts        int
	Timeout         time.Duration
	FallbackTimeout time.Duration
	ScratchDir      string
	MediaDir        string
	Scene           string
	Format          string
	Quality         string
}

// Observer receives every finished attempt. It may be nil.
type Observer func(Attempt)

// Controller drives render attempts for one request at a time. It holds no
// per-request state, so one Controller may serve concurrent requests.
type Controller struct {
	engine Engine
	cfg    Config
	logger *zap.Logger
}

// NewController creates a Controller. Zero Config fields get defaults.
func NewController(engine Engine, cfg Config, logger *zap.Logger) *Controller {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 60 * time.Second
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.Scene == "" {
		cfg.Scene = "AlgorithmScene"
	}
	if cfg.Format == "" {
		cfg.Format = "mp4"
	}
	if cfg.Quality == "" {
		cfg.Quality = "l"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, cfg: cfg, logger: logger.Named("render")}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// Run renders with retries and a final fallback. The returned error is
// non-nil only when ctx ends; every other failure is described by Outcome.
func (c *Controller) Run(ctx context.Context, source SourceFunc, observe Observer) (Outcome, error) {
	var (
		out     Outcome
		current string
		last    *Failure
	)
	for n := 1; n <= c.cfg.Attempts; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		src, err := source(ctx, n, last)
		switch {
		case err != nil && ctx.Err() != nil:
			return out, ctx.Err()
		case err != nil && current == "":
			last = &Failure{Tag: TagRuntime, Message: "source unavailable: " + err.Error()}
			a := Attempt{Index: n, State: StateRetryableFailure, Failure: last}
			if n == c.cfg.Attempts {
				a.State = StateFatalFallback
			}
			c.finish(&out, a, observe)
			continue
		case err != nil:
			c.logger.Warn("regeneration failed, reusing previous source", zap.Int("attempt", n), zap.Error(err))
		default:
			current = src
		}
		out.Source = current

		a, video := c.attempt(ctx, n, current, c.cfg.Timeout, false)
		if a.State != StateSucceeded && n < c.cfg.Attempts {
			a.State = StateRetryableFailure
		}
		c.finish(&out, a, observe)
		if video != "" {
			out.VideoPath = video
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		last = a.Failure
	}

	a, video := c.attempt(ctx, c.cfg.Attempts+1, FallbackSource, c.cfg.FallbackTimeout, true)
	c.finish(&out, a, observe)
	out.Fallback = true
	out.VideoPath = video
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Once renders source a single time with no retry and no fallback.
func (c *Controller) Once(ctx context.Context, source string, observe Observer) (Outcome, error) {
	a, video := c.attempt(ctx, 1, source, c.cfg.Timeout, false)
	if a.State != StateSucceeded {
		a.State = StateFailed
	}
	out := Outcome{Source: source}
	c.finish(&out, a, observe)
	out.VideoPath = video
	return out, ctx.Err()
}

func (c *Controller) finish(out *Outcome, a Attempt, observe Observer) {
	out.Attempts = append(out.Attempts, a)
	fields := []zap.Field{
		zap.Int("attempt", a.Index),
		zap.String("state", string(a.State)),
		zap.Bool("fallback", a.Fallback),
		zap.Duration("duration", a.Duration),
	}
	if a.Failure != nil {
		fields = append(fields, zap.String("tag", a.Failure.Tag), zap.String("message", a.Failure.Message))
		c.logger.Warn("render attempt failed", fields...)
	} else {
		c.logger.Info("render attempt", fields...)
	}
	if observe != nil {
		observe(a)
	}
}

// attempt runs one engine invocation and returns the absolute artifact path
// on success. Failures are reported as StateFatalFallback; Run downgrades
// them to StateRetryableFailure while budget remains.
func (c *Controller) attempt(ctx context.Context, n int, source string, timeout time.Duration, fallback bool) (Attempt, string) {
	a := Attempt{Index: n, State: StatePending, Fallback: fallback}
	start := time.Now()

	path, err := c.writeScratch(source)
	if err != nil {
		a.State = StateFatalFallback
		a.Failure = &Failure{Tag: TagResource, Message: err.Error()}
		a.Duration = time.Since(start)
		return a, ""
	}
	a.SourcePath = path
	a.State = StateRendering

	job := Job{
		SourcePath: path,
		Scene:      c.cfg.Scene,
		Format:     c.cfg.Format,
		Quality:    c.cfg.Quality,
		MediaDir:   c.cfg.MediaDir,
		Timeout:    timeout,
	}
	_, err = c.engine.Render(ctx, job)
	a.Duration = time.Since(start)
	if err != nil {
		f := ClassifyError(err)
		a.State = StateFatalFallback
		a.Failure = &f
		return a, ""
	}

	artifact := ArtifactPath(job)
	if _, err := os.Stat(artifact); err != nil {
		a.State = StateFatalFallback
		a.Failure = &Failure{Tag: TagMissingArtifact, Message: "engine exited cleanly but no artifact at " + artifact, Detail: artifact}
		return a, ""
	}
	if abs, err := filepath.Abs(artifact); err == nil {
		artifact = abs
	}
	a.State = StateSucceeded
	return a, artifact
}

// writeScratch writes source to a uniquely named file. Names are valid
// Python module identifiers because the engine imports the file.
func (c *Controller) writeScratch(source string) (string, error) {
	if err := os.MkdirAll(c.cfg.ScratchDir, 0o755); err != nil {
		return "", fmt.Errorf("render: scratch dir: %w", err)
	}
	name := "vizgen_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".py"
	path := filepath.Join(c.cfg.ScratchDir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("render: write scratch: %w", err)
	}
	return path, nil
}
