package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/prompts"
	"github.com/roach88/vizgen/internal/sorting"
)

// Scenario defines one scripted request.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Input is the request text.
	Input string `yaml:"input"`

	// Mode is "generate" (default) or "baseline".
	Mode string `yaml:"mode,omitempty"`

	// Pipeline overrides the coordinator's retry bounds.
	Pipeline *PipelineOverrides `yaml:"pipeline,omitempty"`

	// Replies scripts the generative service per stage name.
	Replies map[string][]Reply `yaml:"replies"`

	// Renders scripts engine outcomes for non-fallback sources, in order.
	Renders []RenderStep `yaml:"renders,omitempty"`

	// Fallback scripts the outcome of rendering the fallback artifact.
	Fallback *RenderStep `yaml:"fallback,omitempty"`

	// Assertions validate the response and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// PipelineOverrides replaces selected pipeline.Config bounds.
type PipelineOverrides struct {
	FeedbackRetries *int `yaml:"feedback_retries,omitempty"`
	CodegenAttempts *int `yaml:"codegen_attempts,omitempty"`
}

// Reply is one scripted generation. Exactly one field must be set.
type Reply struct {
	// Text is returned verbatim.
	Text string `yaml:"text,omitempty"`

	// JSON is encoded and returned.
	JSON any `yaml:"json,omitempty"`

	// Expand returns the reference sorting trace for an array.
	Expand *ExpandReply `yaml:"expand,omitempty"`

	// Error makes the call fail with this message.
	Error string `yaml:"error,omitempty"`
}

// ExpandReply names a sorting trace computed by the sorting package.
type ExpandReply struct {
	Algorithm string `yaml:"algorithm"`
	Array     []int  `yaml:"array"`
}

// RenderStep is one scripted engine outcome. The zero value succeeds.
type RenderStep struct {
	Stderr     string `yaml:"stderr,omitempty"`
	ExitCode   int    `yaml:"exit_code,omitempty"`
	TimedOut   bool   `yaml:"timed_out,omitempty"`
	NoArtifact bool   `yaml:"no_artifact,omitempty"`
}

// Assertion validates the response or the trace.
type Assertion struct {
	// Type selects the check; see the Assert constants.
	Type string `yaml:"type"`

	// Equals is the expected value for status, domain, pattern and fallback.
	Equals string `yaml:"equals,omitempty"`

	// Stage names the generation stage for stage_attempts and temperatures.
	Stage string `yaml:"stage,omitempty"`

	// Count is the expected number for stage_attempts and render_attempts.
	Count int `yaml:"count,omitempty"`

	// Text is the expected substring for error_contains and source_contains.
	Text string `yaml:"text,omitempty"`

	// Array is the expected final state for final_array.
	Array []int `yaml:"array,omitempty"`

	// Values are the expected temperatures, in call order.
	Values []float64 `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus         = "status"
	AssertDomain         = "domain"
	AssertPattern        = "pattern"
	AssertFallback       = "fallback"
	AssertStageAttempts  = "stage_attempts"
	AssertTemperatures   = "temperatures"
	AssertRenderAttempts = "render_attempts"
	AssertErrorContains  = "error_contains"
	AssertSourceContains = "source_contains"
	AssertFinalArray     = "final_array"
)

// Mode constants.
const (
	ModeGenerate = "generate"
	ModeBaseline = "baseline"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so that typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// text renders a reply into what the generative service returns.
func (r Reply) text() (string, error) {
	switch {
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return "", fmt.Errorf("encode json reply: %w", err)
		}
		return string(data), nil
	case r.Expand != nil:
		doc, err := ir.FromValue(sorting.Expand(r.Expand.Algorithm, r.Expand.Array))
		if err != nil {
			return "", err
		}
		data, err := doc.Bytes()
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return r.Text, nil
	}
}

func (r Reply) fields() int {
	n := 0
	if r.Text != "" {
		n++
	}
	if r.JSON != nil {
		n++
	}
	if r.Expand != nil {
		n++
	}
	if r.Error != "" {
		n++
	}
	return n
}

var knownStages = map[string]bool{
	string(prompts.Domain):       true,
	string(prompts.Pattern):      true,
	string(prompts.Pseudocode):   true,
	string(prompts.Animation):    true,
	string(prompts.Codegen):      true,
	string(prompts.Baseline):     true,
	string(prompts.CNNParam):     true,
	string(prompts.SortingTrace): true,
	string(prompts.SeqAttention): true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Input) == "" {
		return fmt.Errorf("input is required")
	}

	switch s.Mode {
	case "", ModeGenerate, ModeBaseline:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.Pipeline != nil {
		if p := s.Pipeline.FeedbackRetries; p != nil && *p < 0 {
			return fmt.Errorf("pipeline.feedback_retries must be non-negative")
		}
		if p := s.Pipeline.CodegenAttempts; p != nil && *p <= 0 {
			return fmt.Errorf("pipeline.codegen_attempts must be positive")
		}
	}

	for stage, replies := range s.Replies {
		if !knownStages[stage] {
			return fmt.Errorf("replies: unknown stage %q", stage)
		}
		if len(replies) == 0 {
			return fmt.Errorf("replies.%s: at least one reply is required", stage)
		}
		for i, r := range replies {
			if r.fields() != 1 {
				return fmt.Errorf("replies.%s[%d]: exactly one of text, json, expand, error is required", stage, i)
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatus:
		switch pipeline.Status(a.Equals) {
		case pipeline.StatusOK, pipeline.StatusDegraded, pipeline.StatusValidationFailed, pipeline.StatusRenderFailed:
		default:
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Equals)
		}
	case AssertDomain, AssertPattern:
		if a.Equals == "" {
			return fmt.Errorf("assertions[%d]: equals is required for %s", index, a.Type)
		}
	case AssertFallback:
		if a.Equals != "true" && a.Equals != "false" {
			return fmt.Errorf("assertions[%d]: equals must be true or false for fallback", index)
		}
	case AssertStageAttempts:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for stage_attempts", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stage_attempts", index)
		}
	case AssertTemperatures:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for temperatures", index)
		}
	case AssertRenderAttempts:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for render_attempts", index)
		}
	case AssertErrorContains, AssertSourceContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertFinalArray:
		if len(a.Array) == 0 {
			return fmt.Errorf("assertions[%d]: array is required for final_array", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
