package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/prompts"
	"github.com/roach88/vizgen/internal/render"
	"github.com/roach88/vizgen/internal/sanitize"
)

// genericPath: pseudocode, domain attachment, animation IR, then generated
// scene code rendered with regeneration on failure.
func (c *Coordinator) genericPath(ctx context.Context, r *run, domain string) error {
	pseudo, err := c.runStage(ctx, r, stageSpec{
		stage: prompts.Pseudocode,
		kind:  ir.KindPseudocode,
		data:  prompts.Data{Text: r.text},
		model: c.cfg.Model,
	})
	if err != nil {
		return err
	}
	pseudo.SetDomain(domain)
	r.resp.PseudocodeIR = pseudo

	anim, err := c.runStage(ctx, r, stageSpec{
		stage: prompts.Animation,
		kind:  ir.KindAnimation,
		data:  prompts.Data{Text: r.text, Document: pseudo.Indent()},
		model: c.cfg.Model,
	})
	if err != nil {
		return err
	}
	anim.SetDomain(domain)
	r.resp.AnimIR = anim

	return c.renderWith(ctx, r, func(ctx context.Context, n int, failure *render.Failure) (string, error) {
		if n == 1 || failure == nil {
			return c.generateCode(ctx, r, anim)
		}
		return c.regenerateCode(ctx, r, anim, n, failure)
	})
}

// generateCode asks for scene source up to CodegenAttempts times, feeding
// post-check issues back. The last source is used even if issues remain;
// the renderer has the final word.
func (c *Coordinator) generateCode(ctx context.Context, r *run, anim ir.Document) (string, error) {
	p, err := prompts.Build(prompts.Codegen, prompts.Data{Text: r.text, Document: anim.Indent()})
	if err != nil {
		return "", err
	}

	start := c.clock.Now()
	var (
		usage    llm.Usage
		src      string
		lastErr  error
		feedback string
		n        int
	)
	for n = 1; n <= c.cfg.CodegenAttempts; n++ {
		att, out, err := c.codegenCall(ctx, prompts.Codegen, p, feedback, n)
		usage = usage.Add(att.Usage)
		if err != nil {
			r.attempts = append(r.attempts, att)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		issues := sanitize.Messages(sanitize.Check(out))
		att.Errors = issues
		r.attempts = append(r.attempts, att)
		src = out
		if len(issues) == 0 {
			r.logger.Info("codegen passed post-checks", zap.Int("attempt", n))
			break
		}
		r.logger.Warn("codegen post-checks failed", zap.Int("attempt", n), zap.Strings("issues", issues))
		feedback = prompts.CodeFeedback(issues)
	}
	r.resp.Stats.add(string(prompts.Codegen), min(n, c.cfg.CodegenAttempts), usage, c.clock.Now().Sub(start))

	if src == "" {
		return "", fmt.Errorf("pipeline: codegen produced no source: %w", lastErr)
	}
	c.keepSource(r, "codegen", src)
	return src, nil
}

// regenerateCode makes one fresh generation after a render failure, telling
// the generator what broke.
func (c *Coordinator) regenerateCode(ctx context.Context, r *run, anim ir.Document, n int, failure *render.Failure) (string, error) {
	p, err := prompts.Build(prompts.Codegen, prompts.Data{Text: r.text, Document: anim.Indent()})
	if err != nil {
		return "", err
	}
	problems := []string{fmt.Sprintf("rendering failed (%s): %s", failure.Tag, failure.Message)}
	if failure.Detail != "" && failure.Tag == render.TagRuntimeName {
		problems = append(problems, fmt.Sprintf("%s is not defined; do not use it", failure.Detail))
	}

	start := c.clock.Now()
	att, src, err := c.codegenCall(ctx, prompts.Codegen, p, prompts.CodeFeedback(problems), n)
	att.Stage = "regenerate"
	r.attempts = append(r.attempts, att)
	r.resp.Stats.add("regenerate", 1, att.Usage, c.clock.Now().Sub(start))
	if err != nil {
		return "", err
	}
	att.Errors = sanitize.Messages(sanitize.Check(src))
	r.attempts[len(r.attempts)-1] = att
	c.keepSource(r, "codegen", src)
	return src, nil
}

// codegenCall runs one source-producing generation and sanitizes the result.
func (c *Coordinator) codegenCall(ctx context.Context, stage prompts.Stage, p prompts.Prompt, feedback string, n int) (Attempt, string, error) {
	user := prompts.WithFeedback(p.User, feedback)
	att := Attempt{Stage: string(stage), Index: n, Prompt: user}

	start := c.clock.Now()
	resp, err := c.gen.Generate(ctx, llm.Request{
		Stage:  string(stage),
		System: p.System,
		User:   user,
		Model:  c.cfg.CodegenModel,
	})
	att.Duration = c.clock.Now().Sub(start)
	if err != nil {
		att.Errors = []string{err.Error()}
		return att, "", err
	}
	att.Output = resp.Text
	att.Usage = resp.Usage

	src := sanitize.Sanitize(resp.Text)
	if src == "\n" {
		att.Errors = []string{llm.ErrEmptyResponse.Error()}
		return att, "", llm.ErrEmptyResponse
	}
	return att, src, nil
}
