package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/config"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/logging"
	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/render"
	"github.com/roach88/vizgen/internal/store"
)

// Deps overrides the external collaborators. Nil fields use the
// configured provider and the manim engine.
type Deps struct {
	Generator llm.Generator
	Engine    render.Engine
}

// app is the wired process: config, logger, coordinator and the optional
// history store. close releases everything it opened.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	coord  *pipeline.Coordinator
	store  *store.Store
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// recorder returns the store as a pipeline.Recorder, or nil when disabled.
func (a *app) recorder() pipeline.Recorder {
	if a.store == nil {
		return nil
	}
	return a.store
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: w,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	return logger, nil
}

// newApp wires the coordinator from config. Diagnostics go to the
// command's stderr so json output on stdout stays parseable.
func newApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	deps := Deps{}
	if opts.deps != nil {
		deps = *opts.deps
	}

	gen := deps.Generator
	if gen == nil {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, WrapExitError(ExitCommandError, "generative service unavailable", err)
		}
		gen, err = llm.New(ctx, cfg.LLMSettings(), logger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create generative client", err)
		}
	}
	engine := deps.Engine
	if engine == nil {
		engine = render.NewManimEngine(cfg.Render.Bin, logger)
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.DB != "" {
		a.store, err = store.Open(cfg.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open history", err)
		}
	}

	a.coord, err = pipeline.New(cfg.PipelineSettings(), pipeline.Deps{
		Generator: gen,
		Renderer:  render.NewController(engine, cfg.RenderSettings(), logger),
		Recorder:  a.recorder(),
		Logger:    logger,
	})
	if err != nil {
		a.close()
		return nil, WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}
	return a, nil
}

// openHistory opens the configured store for read-only commands.
func openHistory(opts *RootOptions) (*store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		return nil, NewExitError(ExitCommandError, "no history database configured (use --db or db in config)")
	}
	if _, err := os.Stat(cfg.DB); err != nil {
		return nil, WrapExitError(ExitCommandError, "history database not found", err)
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open history", err)
	}
	return st, nil
}

// readText collects request text from args, --file, or stdin when the
// only argument is "-".
func readText(args []string, file string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case file != "" && len(args) > 0:
		return "", NewExitError(ExitCommandError, "pass text as arguments or --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read input file", err)
		}
		text = string(data)
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		text = string(data)
	default:
		text = strings.Join(args, " ")
	}
	if strings.TrimSpace(text) == "" {
		return "", NewExitError(ExitCommandError, "input text is empty")
	}
	return text, nil
}

// requestError maps a coordinator error that produced no response.
func requestError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		return WrapExitError(ExitCommandError, "invalid input", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return WrapExitError(ExitCommandError, "request interrupted", err)
	default:
		return WrapExitError(ExitCommandError, "request failed", err)
	}
}
