// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/store"
)

// Service is the request-processing side of the pipeline.
type Service interface {
	Run(ctx context.Context, text string) (*pipeline.Response, error)
	Baseline(ctx context.Context, text string) (*pipeline.BaselineResponse, error)
}

// History serves recorded runs. It may be nil.
type History interface {
	Recent(ctx context.Context, f store.Filter) ([]store.Summary, error)
	Run(ctx context.Context, id string) (pipeline.RunRecord, error)
}

// Request is the body of both generate endpoints.
type Request struct {
	Text string `json:"text"`
}

// Server owns the fiber app.
type Server struct {
	app     *fiber.App
	svc     Service
	history History
	logger  *zap.Logger
}

// New builds the routes. history may be nil, which leaves /runs unrouted.
func New(svc Service, history History, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app:     fiber.New(fiber.Config{AppName: "vizgen"}),
		svc:     svc,
		history: history,
		logger:  logger.Named("server"),
	}

	s.app.Use(recover.New())
	s.app.Use(s.logRequest)

	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/generate", s.generate)
	s.app.Post("/generate_baseline", s.baseline)

	if history != nil {
		s.app.Get("/runs", s.listRuns)
		s.app.Get("/runs/:id", s.getRun)
	}
	return s
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) logRequest(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)))
	return err
}

func (s *Server) generate(c fiber.Ctx) error {
	text, err := readText(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := s.svc.Run(c.Context(), text)
	if resp == nil {
		return s.failure(c, err)
	}
	return c.Status(HTTPStatus(resp.Status)).JSON(resp)
}

func (s *Server) baseline(c fiber.Ctx) error {
	text, err := readText(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := s.svc.Baseline(c.Context(), text)
	if resp == nil {
		return s.failure(c, err)
	}
	return c.Status(HTTPStatus(resp.Status)).JSON(resp)
}

func (s *Server) listRuns(c fiber.Ctx) error {
	f := store.Filter{
		Status: pipeline.Status(c.Query("status")),
		Limit:  fiber.Query[int](c, "limit", 20),
	}
	runs, err := s.history.Recent(c.Context(), f)
	if err != nil {
		return s.failure(c, err)
	}
	return c.JSON(runs)
}

func (s *Server) getRun(c fiber.Ctx) error {
	run, err := s.history.Run(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	if err != nil {
		return s.failure(c, err)
	}
	return c.JSON(run)
}

// failure answers a request that produced no response body.
func (s *Server) failure(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Error("request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func readText(c fiber.Ctx) (string, error) {
	var req Request
	if err := c.Bind().JSON(&req); err != nil {
		return "", errors.New("invalid body")
	}
	return req.Text, nil
}

// HTTPStatus maps a response status to its HTTP code.
func HTTPStatus(s pipeline.Status) int {
	switch s {
	case pipeline.StatusOK, pipeline.StatusDegraded:
		return fiber.StatusOK
	case pipeline.StatusValidationFailed:
		return fiber.StatusUnprocessableEntity
	case pipeline.StatusRenderFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
