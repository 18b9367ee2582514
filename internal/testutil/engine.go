package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/vizgen/internal/render"
)

// Outcome scripts one FakeEngine render.
type Outcome struct {
	// Stderr is reported on failure and fed to the failure taxonomy.
	Stderr   string
	ExitCode int
	TimedOut bool
	// NoArtifact simulates a clean exit that produced no file.
	NoArtifact bool
}

// OK is a successful Outcome.
var OK = Outcome{}

// Failed reports whether the outcome is an engine failure.
func (o Outcome) Failed() bool { return o.ExitCode != 0 || o.TimedOut }

// FakeEngine is a render.Engine that follows a script instead of running a
// process. Successful renders create an empty artifact at the path the
// controller expects.
//
// Primary sources consume Outcomes in order, then Default. The fallback
// source always gets Fallback.
//
// Thread-safety: safe for concurrent use.
type FakeEngine struct {
	mu       sync.Mutex
	outcomes []Outcome
	Default  Outcome
	Fallback Outcome
	jobs     []render.Job
	sources  []string
}

// NewFakeEngine creates an engine that plays outcomes, then succeeds.
func NewFakeEngine(outcomes ...Outcome) *FakeEngine {
	return &FakeEngine{outcomes: outcomes}
}

// FailingEngine fails every primary source with stderr and renders the
// fallback successfully.
func FailingEngine(stderr string) *FakeEngine {
	return &FakeEngine{Default: Outcome{Stderr: stderr, ExitCode: 1}}
}

// Render implements render.Engine.
func (e *FakeEngine) Render(ctx context.Context, job render.Job) (render.Result, error) {
	if err := ctx.Err(); err != nil {
		return render.Result{}, err
	}
	src, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return render.Result{}, fmt.Errorf("testutil: read source: %w", err)
	}

	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.sources = append(e.sources, string(src))
	var o Outcome
	switch {
	case string(src) == render.FallbackSource:
		o = e.Fallback
	case len(e.outcomes) > 0:
		o, e.outcomes = e.outcomes[0], e.outcomes[1:]
	default:
		o = e.Default
	}
	e.mu.Unlock()

	res := render.Result{Stderr: o.Stderr, Duration: time.Millisecond}
	if o.Failed() {
		return res, &render.ExecError{ExitCode: o.ExitCode, Stderr: o.Stderr, TimedOut: o.TimedOut, Err: fmt.Errorf("exit status %d", o.ExitCode)}
	}
	if o.NoArtifact {
		return res, nil
	}
	artifact := render.ArtifactPath(job)
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return res, err
	}
	return res, os.WriteFile(artifact, nil, 0o644)
}

// Jobs returns every job rendered so far.
func (e *FakeEngine) Jobs() []render.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]render.Job(nil), e.jobs...)
}

// Sources returns the source text of every job, in order.
func (e *FakeEngine) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}
