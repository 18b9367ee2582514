package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/vizgen/internal/llm"
)

// Reply is one scripted generator answer.
type Reply struct {
	Text  string
	Err   error
	Usage llm.Usage
}

// Text is a successful Reply with nominal usage.
func Text(s string) Reply {
	return Reply{Text: s, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// Fail is a Reply that returns err.
func Fail(err error) Reply { return Reply{Err: err} }

// ScriptedGenerator is an llm.Generator that answers from per-stage queues.
//
// Queued replies are consumed in order; once a stage's queue is empty its
// Always reply (if any) is returned forever. A stage with neither fails the
// call, which surfaces unscripted stages in tests.
//
// Thread-safety: safe for concurrent use.
type ScriptedGenerator struct {
	mu     sync.Mutex
	queues map[string][]Reply
	always map[string]Reply
	calls  []llm.Request
}

// NewScriptedGenerator creates an empty script.
func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{
		queues: map[string][]Reply{},
		always: map[string]Reply{},
	}
}

// On queues replies for stage.
func (g *ScriptedGenerator) On(stage string, replies ...Reply) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[stage] = append(g.queues[stage], replies...)
	return g
}

// Always sets the reply returned once stage's queue is drained.
func (g *ScriptedGenerator) Always(stage string, r Reply) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.always[stage] = r
	return g
}

// Generate implements llm.Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)

	var r Reply
	if q := g.queues[req.Stage]; len(q) > 0 {
		r, g.queues[req.Stage] = q[0], q[1:]
	} else if a, ok := g.always[req.Stage]; ok {
		r = a
	} else {
		return llm.Response{}, fmt.Errorf("testutil: no scripted reply for stage %q", req.Stage)
	}
	if r.Err != nil {
		return llm.Response{}, r.Err
	}
	return llm.Response{Text: r.Text, Usage: r.Usage, Model: "scripted"}, nil
}

// Calls returns the requests made for stage, or all requests if stage is empty.
func (g *ScriptedGenerator) Calls(stage string) []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []llm.Request
	for _, c := range g.calls {
		if stage == "" || c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

// Temperatures returns the temperatures used for stage, in call order.
func (g *ScriptedGenerator) Temperatures(stage string) []float64 {
	calls := g.Calls(stage)
	out := make([]float64, len(calls))
	for i, c := range calls {
		out[i] = c.Temperature
	}
	return out
}
