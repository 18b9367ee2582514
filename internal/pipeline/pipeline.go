package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/vizgen/internal/classify"
	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/pattern"
	"github.com/roach88/vizgen/internal/render"
)

// Classifier labels a request with a domain and a recommended pattern.
type Classifier interface {
	Classify(ctx context.Context, text string) (classify.Result, error)
}

// Renderer turns scene source into an artifact. *render.Controller
// implements it.
type Renderer interface {
	Run(ctx context.Context, source render.SourceFunc, observe render.Observer) (render.Outcome, error)
	Once(ctx context.Context, source string, observe render.Observer) (render.Outcome, error)
}

// IDGenerator issues request IDs.
type IDGenerator interface {
	NewID() string
}

// Clock reports the current time. Durations in Stats come from it.
type Clock interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config bounds the coordinator's retries.
type Config struct {
	// FeedbackRetries is N: a stage gets N+1 zero-temperature attempts
	// before the escalation attempt.
	FeedbackRetries       int
	EscalationTemperature float64
	// CodegenAttempts bounds post-check retries of scene code generation.
	CodegenAttempts int
	Model           string
	CodegenModel    string
	// DebugDir, if set, receives a copy of each run's final scene source.
	DebugDir string
}

// DefaultConfig returns the production retry bounds.
func DefaultConfig() Config {
	return Config{
		FeedbackRetries:       2,
		EscalationTemperature: 0.3,
		CodegenAttempts:       3,
	}
}

// Deps are the coordinator's collaborators. Generator and Renderer are
// required; the rest have defaults.
type Deps struct {
	Generator  llm.Generator
	Classifier Classifier
	Renderer   Renderer
	Recorder   Recorder
	IDs        IDGenerator
	Clock      Clock
	Logger     *zap.Logger
}

// Coordinator runs requests through the staged pipeline.
type Coordinator struct {
	cfg        Config
	gen        llm.Generator
	classifier Classifier
	renderer   Renderer
	recorder   Recorder
	ids        IDGenerator
	clock      Clock
	logger     *zap.Logger
}

// New creates a Coordinator.
func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Generator == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("pipeline: renderer is required")
	}
	def := DefaultConfig()
	if cfg.FeedbackRetries < 0 {
		cfg.FeedbackRetries = def.FeedbackRetries
	}
	if cfg.EscalationTemperature <= 0 {
		cfg.EscalationTemperature = def.EscalationTemperature
	}
	if cfg.CodegenAttempts <= 0 {
		cfg.CodegenAttempts = def.CodegenAttempts
	}
	if cfg.CodegenModel == "" {
		cfg.CodegenModel = cfg.Model
	}

	c := &Coordinator{
		cfg:        cfg,
		gen:        deps.Generator,
		classifier: deps.Classifier,
		renderer:   deps.Renderer,
		recorder:   deps.Recorder,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("pipeline")
	if c.classifier == nil {
		c.classifier = classify.New(deps.Generator, cfg.Model, c.logger)
	}
	if c.recorder == nil {
		c.recorder = NopRecorder{}
	}
	if c.ids == nil {
		c.ids = uuidGenerator{}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// run is the per-request state. It is created by Run or Baseline and never
// shared.
type run struct {
	id       string
	mode     string
	text     string
	start    time.Time
	resp     *Response
	attempts []Attempt
	sources  []Source
	logger   *zap.Logger
}

func (c *Coordinator) newRun(text, mode string) *run {
	id := c.ids.NewID()
	return &run{
		id:     id,
		mode:   mode,
		text:   text,
		start:  c.clock.Now(),
		resp:   &Response{RequestID: id},
		logger: c.logger.With(zap.String("request_id", id), zap.String("mode", mode)),
	}
}

// Normalize trims and NFC-normalizes request text.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Run processes one request. The Response is nil only when err is ErrEmptyText or
// ctx ended. When an IR stage exhausts its retries, Run returns the Response
// (status validation_failed, errors set) together with the *StageError.
func (c *Coordinator) Run(ctx context.Context, text string) (*Response, error) {
	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	r := c.newRun(text, "generate")

	cls, err := c.classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}
	kind := pattern.Resolve(cls.Domain, cls.RecommendedPattern)
	r.resp.Domain = cls.Domain
	r.resp.Pattern = string(kind)
	r.resp.Stats.add("classify", 2, cls.Usage, cls.Duration)

	fast := pattern.FastPath(cls.Domain, kind)
	r.logger.Info("resolved",
		zap.String("domain", cls.Domain),
		zap.String("recommended_pattern", cls.RecommendedPattern),
		zap.String("pattern", string(kind)),
		zap.Bool("fast_path", fast))

	if fast {
		err = c.fastPath(ctx, r, cls.Domain)
	} else {
		err = c.genericPath(ctx, r, cls.Domain)
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	switch {
	case err == nil:
	case IsStageError(err):
		r.resp.Status = StatusValidationFailed
		r.resp.Errors = StageErrors(err).Strings()
	default:
		return nil, err
	}

	c.finish(ctx, r)
	return r.resp, err
}

// renderWith runs the render controller and folds its outcome into the
// response.
func (c *Coordinator) renderWith(ctx context.Context, r *run, source render.SourceFunc) error {
	start := c.clock.Now()
	out, err := c.renderer.Run(ctx, source, nil)
	r.resp.RenderAttempts = out.Attempts
	r.resp.Stats.add("render", len(out.Attempts), llm.Usage{}, c.clock.Now().Sub(start))
	if err != nil {
		return err
	}
	r.resp.VideoPath = out.VideoPath
	r.resp.Fallback = out.Fallback
	r.resp.Status = statusOf(out)
	if r.resp.Status == StatusRenderFailed {
		if f := out.LastFailure(); f != nil {
			r.resp.Errors = append(r.resp.Errors, fmt.Sprintf("[%s] %s", f.Tag, f.Message))
		}
	}
	return nil
}

// keepSource remembers a scene source and writes the debug copy.
func (c *Coordinator) keepSource(r *run, kind, src string) {
	r.sources = append(r.sources, Source{Kind: kind, Text: src})
	r.logger.Debug("scene source",
		zap.String("kind", kind),
		zap.String("fingerprint", ir.SourceFingerprint(src)))
	if c.cfg.DebugDir == "" {
		return
	}
	path := filepath.Join(c.cfg.DebugDir, fmt.Sprintf("debug_%s_%s.py", kind, r.id))
	if err := os.MkdirAll(c.cfg.DebugDir, 0o755); err != nil {
		r.logger.Warn("debug copy skipped", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		r.logger.Warn("debug copy skipped", zap.Error(err))
		return
	}
	r.resp.DebugCodePath = path
}

// finish stamps the duration and hands the run to the recorder.
func (c *Coordinator) finish(ctx context.Context, r *run) {
	d := c.clock.Now().Sub(r.start)
	r.resp.Stats.DurationMS = d.Milliseconds()
	r.logger.Info("request finished",
		zap.String("status", string(r.resp.Status)),
		zap.Bool("fallback", r.resp.Fallback),
		zap.Int("total_tokens", r.resp.Stats.Usage.TotalTokens),
		zap.Duration("duration", d))

	rec := RunRecord{
		RequestID: r.id,
		Mode:      r.mode,
		Text:      r.text,
		Status:    r.resp.Status,
		Domain:    r.resp.Domain,
		Pattern:   r.resp.Pattern,
		VideoPath: r.resp.VideoPath,
		Fallback:  r.resp.Fallback,
		Errors:    r.resp.Errors,
		Usage:     r.resp.Stats.Usage,
		StartedAt: r.start,
		Duration:  d,
		Attempts:  r.attempts,
		Renders:   r.resp.RenderAttempts,
		Sources:   r.sources,
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("run not recorded", zap.Error(err))
	}
}
