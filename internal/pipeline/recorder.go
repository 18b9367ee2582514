package pipeline

import (
	"context"
	"time"

	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/render"
)

// Attempt is one generation call and what became of it. Attempts live in a
// single run and are handed to the Recorder when the run ends.
type Attempt struct {
	Stage       string        `json:"stage"`
	Index       int           `json:"index"`
	Temperature float64       `json:"temperature"`
	Prompt      string        `json:"prompt"`
	Output      string        `json:"output"`
	ParseError  string        `json:"parse_error,omitempty"`
	Errors      []string      `json:"errors,omitempty"`
	Usage       llm.Usage     `json:"usage"`
	Duration    time.Duration `json:"duration"`
}

// Valid reports whether the attempt was accepted.
func (a Attempt) Valid() bool { return a.ParseError == "" && len(a.Errors) == 0 }

// Source is one piece of scene source a run produced.
type Source struct {
	Kind string `json:"kind"` // scene, codegen, baseline
	Text string `json:"text"`
}

// RunRecord is everything a finished run leaves behind.
type RunRecord struct {
	RequestID string
	Mode      string // generate or baseline
	Text      string
	Status    Status
	Domain    string
	Pattern   string
	VideoPath string
	Fallback  bool
	Errors    []string
	Usage     llm.Usage
	StartedAt time.Time
	Duration  time.Duration
	Attempts  []Attempt
	Renders   []render.Attempt
	Sources   []Source
}

// Recorder persists finished runs. Record is called once per run, after the
// response is complete; its error is logged and never fails the request.
type Recorder interface {
	Record(ctx context.Context, run RunRecord) error
}

// NopRecorder discards runs.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, RunRecord) error { return nil }
