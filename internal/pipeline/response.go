package pipeline

import (
	"time"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/render"
)

// Status summarizes how a request ended.
type Status string

const (
	// StatusOK means the requested visualization rendered.
	StatusOK Status = "ok"
	// StatusDegraded means only the fallback scene rendered.
	StatusDegraded Status = "degraded"
	// StatusValidationFailed means an IR stage exhausted its retries.
	StatusValidationFailed Status = "validation_failed"
	// StatusRenderFailed means nothing rendered, fallback included.
	StatusRenderFailed Status = "render_failed"
)

// Response is the structured result of Run. Only the IR fields produced by
// the path taken are set.
type Response struct {
	RequestID      string           `json:"request_id"`
	Status         Status           `json:"status"`
	Domain         string           `json:"domain"`
	Pattern        string           `json:"pattern"`
	PseudocodeIR   ir.Document      `json:"pseudocode_ir,omitempty"`
	AnimIR         ir.Document      `json:"anim_ir,omitempty"`
	CNNIR          ir.Document      `json:"cnn_ir,omitempty"`
	SortingTrace   ir.Document      `json:"sorting_trace,omitempty"`
	AttentionIR    ir.Document      `json:"attention_ir,omitempty"`
	IR             ir.Document      `json:"ir,omitempty"`
	VideoPath      string           `json:"video_path,omitempty"`
	Fallback       bool             `json:"fallback"`
	Errors         []string         `json:"errors,omitempty"`
	RenderAttempts []render.Attempt `json:"render_attempts,omitempty"`
	DebugCodePath  string           `json:"debug_code_path,omitempty"`
	Stats          Stats            `json:"stats"`
}

// BaselineResponse is the result of the single-shot baseline path.
type BaselineResponse struct {
	RequestID      string           `json:"request_id"`
	Status         Status           `json:"status"`
	VideoPath      string           `json:"video_path,omitempty"`
	Tokens         llm.Usage        `json:"tokens"`
	Issues         []string         `json:"issues,omitempty"`
	RenderAttempts []render.Attempt `json:"render_attempts,omitempty"`
	DebugCodePath  string           `json:"debug_code_path,omitempty"`
	DurationMS     int64            `json:"duration_ms"`
}

// Stats aggregates usage and timing for a request.
type Stats struct {
	Stages     []StageStat `json:"stages"`
	Usage      llm.Usage   `json:"usage"`
	DurationMS int64       `json:"duration_ms"`
}

// StageStat is one stage's share of Stats.
type StageStat struct {
	Stage      string    `json:"stage"`
	Attempts   int       `json:"attempts"`
	Usage      llm.Usage `json:"usage"`
	DurationMS int64     `json:"duration_ms"`
}

func (s *Stats) add(stage string, attempts int, usage llm.Usage, d time.Duration) {
	s.Stages = append(s.Stages, StageStat{
		Stage:      stage,
		Attempts:   attempts,
		Usage:      usage,
		DurationMS: d.Milliseconds(),
	})
	s.Usage = s.Usage.Add(usage)
}

// statusOf maps a render outcome to a Status.
func statusOf(out render.Outcome) Status {
	switch {
	case out.VideoPath == "":
		return StatusRenderFailed
	case out.Fallback:
		return StatusDegraded
	default:
		return StatusOK
	}
}
