package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/prompts"
	"github.com/roach88/vizgen/internal/validate"
)

// stageSpec describes one validated generation stage.
type stageSpec struct {
	stage prompts.Stage
	kind  ir.Kind
	data  prompts.Data
	model string
	// prepare, if set, adjusts a parsed document before validation.
	prepare func(ir.Document)
}

// runStage drives the retry contract for one stage. The attempt counter and
// the accumulated feedback are the only state; the loop always ends after
// FeedbackRetries+2 generations.
func (c *Coordinator) runStage(ctx context.Context, r *run, spec stageSpec) (ir.Document, error) {
	p, err := prompts.Build(spec.stage, spec.data)
	if err != nil {
		return nil, err
	}

	total := c.cfg.FeedbackRetries + 2
	start := c.clock.Now()
	var (
		usage    llm.Usage
		last     validate.Errors
		feedback string
	)
	done := func(n int) {
		r.resp.Stats.add(string(spec.stage), n, usage, c.clock.Now().Sub(start))
	}

	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		temp := 0.0
		if n == total {
			temp = c.cfg.EscalationTemperature
		}

		doc, att, errs, err := c.attempt(ctx, spec, p, feedback, n, temp)
		r.attempts = append(r.attempts, att)
		usage = usage.Add(att.Usage)
		if err != nil {
			done(n)
			return nil, err
		}

		fields := []zap.Field{
			zap.String("stage", string(spec.stage)),
			zap.Int("attempt", n),
			zap.Float64("temperature", temp),
			zap.Int("errors", len(errs)),
		}
		if len(errs) == 0 {
			if fp, err := ir.Fingerprint(doc); err == nil {
				fields = append(fields, zap.String("fingerprint", fp))
			}
			r.logger.Info("stage accepted", fields...)
			done(n)
			return doc, nil
		}
		r.logger.Warn("stage rejected", fields...)

		last = errs
		feedback = prompts.Feedback(last.Strings())
	}

	done(total)
	return nil, &StageError{Stage: string(spec.stage), Attempts: total, Errors: last}
}

// attempt runs a single generation and validates what comes back. The
// returned error is non-nil only when ctx ended; every other failure is
// reported in errs and mirrored on the Attempt.
func (c *Coordinator) attempt(ctx context.Context, spec stageSpec, p prompts.Prompt, feedback string, n int, temp float64) (ir.Document, Attempt, validate.Errors, error) {
	user := prompts.WithFeedback(p.User, feedback)
	att := Attempt{Stage: string(spec.stage), Index: n, Temperature: temp, Prompt: user}

	start := c.clock.Now()
	resp, err := c.gen.Generate(ctx, llm.Request{
		Stage:       string(spec.stage),
		System:      p.System,
		User:        user,
		Temperature: temp,
		JSON:        true,
		Model:       spec.model,
	})
	att.Duration = c.clock.Now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, att, nil, ctx.Err()
		}
		errs := validate.Errors{{Field: "$", Message: err.Error(), Code: validate.ErrGeneration}}
		att.Errors = errs.Strings()
		return nil, att, errs, nil
	}
	att.Output = resp.Text
	att.Usage = resp.Usage

	doc, err := ir.ParseDocument(resp.Text)
	if err != nil {
		att.ParseError = err.Error()
		errs := validate.Errors{{Field: "$", Message: "output is not a JSON object: " + err.Error(), Code: validate.ErrParse}}
		att.Errors = errs.Strings()
		return nil, att, errs, nil
	}
	if spec.prepare != nil {
		spec.prepare(doc)
	}
	errs := validate.ValidateKind(spec.kind, doc)
	att.Errors = errs.Strings()
	return doc, att, errs, nil
}
