package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/prompts"
	"github.com/roach88/vizgen/internal/sanitize"
)

// Baseline is the single-shot comparison path: one generation straight from
// text to scene source, sanitized, one render, no retry and no fallback.
func (c *Coordinator) Baseline(ctx context.Context, text string) (*BaselineResponse, error) {
	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	r := c.newRun(text, "baseline")
	out := &BaselineResponse{RequestID: r.id, Status: StatusRenderFailed}

	p, err := prompts.Build(prompts.Baseline, prompts.Data{Text: text})
	if err != nil {
		return nil, err
	}
	start := c.clock.Now()
	att, src, err := c.codegenCall(ctx, prompts.Baseline, p, "", 1)
	r.attempts = append(r.attempts, att)
	r.resp.Stats.add(string(prompts.Baseline), 1, att.Usage, c.clock.Now().Sub(start))
	out.Tokens = att.Usage

	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		out.Issues = []string{err.Error()}
	} else {
		out.Issues = sanitize.Messages(sanitize.Check(src))
		c.keepSource(r, "baseline", src)
		out.DebugCodePath = r.resp.DebugCodePath

		rendered, err := c.renderer.Once(ctx, src, nil)
		if err != nil {
			return nil, err
		}
		out.RenderAttempts = rendered.Attempts
		if rendered.Succeeded() {
			out.Status = StatusOK
			out.VideoPath = rendered.VideoPath
		} else if f := rendered.LastFailure(); f != nil {
			r.logger.Warn("baseline render failed", zap.String("tag", f.Tag), zap.String("message", f.Message))
		}
	}

	r.resp.Status = out.Status
	r.resp.VideoPath = out.VideoPath
	r.resp.RenderAttempts = out.RenderAttempts
	r.resp.Errors = out.Issues
	c.finish(ctx, r)
	out.DurationMS = r.resp.Stats.DurationMS
	return out, nil
}
