// Package classify asks the generative service for a request's domain and a
// recommended visualization pattern. Failures never propagate: an unusable
// answer becomes the safe default.
package classify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/pattern"
	"github.com/roach88/vizgen/internal/prompts"
)

// Result holds both labels and what they cost.
type Result struct {
	Domain             string
	RecommendedPattern string
	// DomainErr and PatternErr record why a default was used, if one was.
	DomainErr  error
	PatternErr error
	Usage      llm.Usage
	Duration   time.Duration
}

// Classifier wraps the two classification calls.
type Classifier struct {
	gen    llm.Generator
	model  string
	logger *zap.Logger
}

// New creates a Classifier. model may be empty to use the generator default.
func New(gen llm.Generator, model string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{gen: gen, model: model, logger: logger.Named("classify")}
}

// Classify issues both calls concurrently and always returns a usable Result.
// Only cancellation of ctx is reported as an error.
func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	var (
		res         Result
		dUse, pUse  llm.Usage
		dErr, pErr  error
		domain, rec string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		domain, dUse, dErr = c.ask(gctx, prompts.Domain, text, "domain")
		return nil
	})
	g.Go(func() error {
		rec, pUse, pErr = c.ask(gctx, prompts.Pattern, text, "pattern")
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res.Domain = pattern.NormalizeDomain(domain)
	res.DomainErr = dErr
	if dErr != nil {
		res.Domain = pattern.DomainGeneric
		c.logger.Warn("domain classification failed, using default", zap.Error(dErr))
	}

	res.RecommendedPattern = string(pattern.Default)
	if k, ok := pattern.Parse(rec); ok && pErr == nil {
		res.RecommendedPattern = string(k)
	}
	res.PatternErr = pErr
	if pErr != nil {
		c.logger.Warn("pattern recommendation failed, using default", zap.Error(pErr))
	}

	res.Usage = dUse.Add(pUse)
	res.Duration = time.Since(start)
	c.logger.Info("classified",
		zap.String("domain", res.Domain),
		zap.String("recommended_pattern", res.RecommendedPattern),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// ClassifyDomain runs only the domain call.
func (c *Classifier) ClassifyDomain(ctx context.Context, text string) string {
	d, _, err := c.ask(ctx, prompts.Domain, text, "domain")
	if err != nil {
		return pattern.DomainGeneric
	}
	return pattern.NormalizeDomain(d)
}

// RecommendPattern runs only the pattern call.
func (c *Classifier) RecommendPattern(ctx context.Context, text string) string {
	p, _, err := c.ask(ctx, prompts.Pattern, text, "pattern")
	if k, ok := pattern.Parse(p); ok && err == nil {
		return string(k)
	}
	return string(pattern.Default)
}

// ask runs one stage and extracts a string field from its JSON answer.
func (c *Classifier) ask(ctx context.Context, stage prompts.Stage, text, field string) (string, llm.Usage, error) {
	p, err := prompts.Build(stage, prompts.Data{Text: text})
	if err != nil {
		return "", llm.Usage{}, err
	}
	resp, err := c.gen.Generate(ctx, llm.Request{
		Stage:  string(stage),
		System: p.System,
		User:   p.User,
		JSON:   true,
		Model:  c.model,
	})
	if err != nil {
		return "", llm.Usage{}, err
	}
	doc, err := ir.ParseDocument(resp.Text)
	if err != nil {
		return "", resp.Usage, err
	}
	v, _ := doc[field].(string)
	return v, resp.Usage, nil
}
