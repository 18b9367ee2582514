package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

const passingScenario = `name: resolve_only_sorting
input: "Show bubble sort on [3,1,2]"
replies:
  domain:
    - json: {domain: sorting}
  pattern:
    - json: {pattern: sequence}
  sorting_trace:
    - expand: {algorithm: bubble_sort, array: [3, 1, 2]}
assertions:
  - type: status
    equals: ok
  - type: final_array
    array: [1, 2, 3]
`

const failingScenario = `name: wrong_expectation
input: "Show bubble sort on [3,1,2]"
replies:
  domain:
    - json: {domain: sorting}
  pattern:
    - json: {pattern: sequence}
  sorting_trace:
    - expand: {algorithm: bubble_sort, array: [3, 1, 2]}
assertions:
  - type: status
    equals: degraded
`

func TestTestCommand_PackScenarios(t *testing.T) {
	out, err := execute(t, nil, nil, "test", scenariosDir, "--format", "json")
	require.NoError(t, err, out)

	result := decode[TestResult](t, out).Data
	assert.Equal(t, result.Total, result.Passed)
	assert.Zero(t, result.Failed)
	assert.GreaterOrEqual(t, result.Total, 5)
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, nil, nil, "test", scenariosDir, "--filter", "bubble*", "--format", "json")
	require.NoError(t, err)

	result := decode[TestResult](t, out).Data
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "bubble_sort_fast_path", result.Scenarios[0].Name)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sorting.yaml"), []byte(passingScenario), 0o644))

	out, err := execute(t, nil, nil, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ resolve_only_sorting (golden updated)")

	golden := filepath.Join(root, "golden", "resolve_only_sorting.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "resolve_only_sorting"`)

	out, err = execute(t, nil, nil, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ resolve_only_sorting\n")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(t, nil, nil, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(failingScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [unterminated"), 0o644))

	out, err := execute(t, nil, nil, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	env := decode[TestResult](t, out)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, 2, env.Data.Failed)
	assert.Equal(t, 0, env.Data.Passed)
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := execute(t, nil, nil, "test", "does/not/exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, nil, nil, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
