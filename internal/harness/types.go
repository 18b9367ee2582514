package harness

import (
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/pipeline"
)

// TraceEvent is one generation call or one engine invocation.
type TraceEvent struct {
	Type        string   `json:"type"` // "generate" or "render"
	Stage       string   `json:"stage,omitempty"`
	Attempt     int      `json:"attempt"`
	Temperature *float64 `json:"temperature,omitempty"`
	Valid       *bool    `json:"valid,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	State       string   `json:"state,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
	Tag         string   `json:"tag,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists generation calls, then engine invocations, each in the
	// order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Response is set in generate mode, Baseline in baseline mode.
	Response *pipeline.Response         `json:"-"`
	Baseline *pipeline.BaselineResponse `json:"-"`

	// Run is what the coordinator handed to its recorder.
	Run pipeline.RunRecord `json:"-"`

	// Calls are the requests the generative service received, classifier
	// calls included.
	Calls []llm.Request `json:"-"`

	// Sources are the scene sources the engine was given, fallback included.
	Sources []string `json:"-"`

	// Err is a terminal error returned by the coordinator, if any.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddGenerateTrace records one generation call.
func (r *Result) AddGenerateTrace(a pipeline.Attempt) {
	temp := a.Temperature
	valid := a.Valid()
	errs := a.Errors
	if a.ParseError != "" {
		errs = append([]string{a.ParseError}, errs...)
	}
	r.Trace = append(r.Trace, TraceEvent{
		Type:        "generate",
		Stage:       a.Stage,
		Attempt:     a.Index,
		Temperature: &temp,
		Valid:       &valid,
		Errors:      errs,
	})
}

// AddRenderTrace records one engine invocation.
func (r *Result) AddRenderTrace(attempt int, state string, fallback bool, tag string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:     "render",
		Attempt:  attempt,
		State:    state,
		Fallback: fallback,
		Tag:      tag,
	})
}

// status returns the response status in either mode.
func (r *Result) status() pipeline.Status {
	switch {
	case r.Response != nil:
		return r.Response.Status
	case r.Baseline != nil:
		return r.Baseline.Status
	}
	return ""
}

// issues returns the response errors in either mode.
func (r *Result) issues() []string {
	switch {
	case r.Response != nil:
		return r.Response.Errors
	case r.Baseline != nil:
		return r.Baseline.Issues
	}
	return nil
}
