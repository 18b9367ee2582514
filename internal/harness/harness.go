package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/render"
	"github.com/roach88/vizgen/internal/testutil"
)

// RequestID is the fixed request ID every scenario run uses.
const RequestID = "scenario-request"

// Harness is one scenario execution: a scripted generator and engine wired
// to a real coordinator and render controller.
type Harness struct {
	gen      *testutil.ScriptedGenerator
	engine   *testutil.FakeEngine
	coord    *pipeline.Coordinator
	recorder *captureRecorder
}

// captureRecorder keeps the run record instead of persisting it.
type captureRecorder struct {
	mu  sync.Mutex
	run pipeline.RunRecord
}

func (r *captureRecorder) Record(_ context.Context, run pipeline.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = run
	return nil
}

// Run executes a scenario with a discarded logger.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(context.Background(), scenario, nil)
}

// RunWithLogger executes a scenario and returns the result. A scenario whose
// request ends in validation_failed still returns a Result; only broken
// scripts and setup failures return an error.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir, err := os.MkdirTemp("", "vizgen-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(scenario, dir, logger)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	switch scenario.Mode {
	case ModeBaseline:
		result.Baseline, result.Err = h.coord.Baseline(ctx, scenario.Input)
	default:
		result.Response, result.Err = h.coord.Run(ctx, scenario.Input)
	}
	if result.Err != nil && !pipeline.IsStageError(result.Err) {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, result.Err)
	}

	h.recorder.mu.Lock()
	result.Run = h.recorder.run
	h.recorder.mu.Unlock()
	result.Sources = h.engine.Sources()
	result.Calls = h.gen.Calls("")

	for _, a := range result.Run.Attempts {
		result.AddGenerateTrace(a)
	}
	for _, a := range result.Run.Renders {
		tag := ""
		if a.Failure != nil {
			tag = a.Failure.Tag
		}
		result.AddRenderTrace(a.Index, string(a.State), a.Fallback, tag)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario, dir string, logger *zap.Logger) (*Harness, error) {
	gen := testutil.NewScriptedGenerator()
	for stage, replies := range s.Replies {
		for i, r := range replies {
			reply, err := scriptedReply(r)
			if err != nil {
				return nil, fmt.Errorf("replies.%s[%d]: %w", stage, i, err)
			}
			if i == len(replies)-1 {
				gen.Always(stage, reply)
			} else {
				gen.On(stage, reply)
			}
		}
	}

	outcomes := make([]testutil.Outcome, len(s.Renders))
	for i, step := range s.Renders {
		outcomes[i] = step.outcome()
	}
	engine := testutil.NewFakeEngine(outcomes...)
	if s.Fallback != nil {
		engine.Fallback = s.Fallback.outcome()
	}

	ctrl := render.NewController(engine, render.Config{
		ScratchDir: filepath.Join(dir, "scratch"),
		MediaDir:   filepath.Join(dir, "media"),
	}, logger)

	cfg := pipeline.DefaultConfig()
	if p := s.Pipeline; p != nil {
		if p.FeedbackRetries != nil {
			cfg.FeedbackRetries = *p.FeedbackRetries
		}
		if p.CodegenAttempts != nil {
			cfg.CodegenAttempts = *p.CodegenAttempts
		}
	}

	rec := &captureRecorder{}
	coord, err := pipeline.New(cfg, pipeline.Deps{
		Generator: gen,
		Renderer:  ctrl,
		Recorder:  rec,
		IDs:       testutil.NewFixedIDGenerator(RequestID),
		Clock:     testutil.NewStepClock(10 * time.Millisecond),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator: %w", err)
	}

	return &Harness{gen: gen, engine: engine, coord: coord, recorder: rec}, nil
}

func scriptedReply(r Reply) (testutil.Reply, error) {
	if r.Error != "" {
		return testutil.Fail(errors.New(r.Error)), nil
	}
	text, err := r.text()
	if err != nil {
		return testutil.Reply{}, err
	}
	return testutil.Text(text), nil
}

func (s RenderStep) outcome() testutil.Outcome {
	return testutil.Outcome{
		Stderr:     s.Stderr,
		ExitCode:   s.ExitCode,
		TimedOut:   s.TimedOut,
		NoArtifact: s.NoArtifact,
	}
}
