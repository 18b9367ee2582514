package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden-file form of a scenario execution. It holds
// only fields that are stable across runs.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Status       string       `json:"status"`
	Domain       string       `json:"domain,omitempty"`
	Pattern      string       `json:"pattern,omitempty"`
	Fallback     bool         `json:"fallback"`
	Errors       []string     `json:"errors,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot builds the golden form of result.
func Snapshot(name string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		ScenarioName: name,
		Status:       string(result.status()),
		Errors:       result.issues(),
		Trace:        result.Trace,
	}
	if r := result.Response; r != nil {
		snap.Domain = r.Domain
		snap.Pattern = r.Pattern
		snap.Fallback = r.Fallback
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-run result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
