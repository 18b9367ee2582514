package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vizgen/internal/sorting"
	"github.com/roach88/vizgen/internal/testutil"
)

// envelope is CLIResponse with a typed payload.
type envelope[T any] struct {
	Status    string    `json:"status"`
	Data      T         `json:"data"`
	Error     *CLIError `json:"error"`
	RequestID string    `json:"request_id"`
}

func decode[T any](t *testing.T, out string) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &env), "output: %s", out)
	return env
}

// execute runs the root command with deps replacing the external
// collaborators and returns stdout.
func execute(t *testing.T, deps *Deps, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{deps: deps})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig points media, scratch and debug output into a temp dir and
// silences the logger.
func writeConfig(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"VIZGEN_LLM_PROVIDER", "VIZGEN_MEDIA_DIR", "VIZGEN_DB", "VIZGEN_MANIM_BIN"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "vizgen.yaml")
	cfg := "render:\n" +
		"  media_dir: " + filepath.Join(dir, "media") + "\n" +
		"  scratch_dir: " + filepath.Join(dir, "scratch") + "\n" +
		"logging:\n" +
		"  level: error\n" +
		"debug_dir: " + filepath.Join(dir, "debug") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// sortingGenerator scripts a bubble sort request that takes the fast path.
func sortingGenerator(t *testing.T) *testutil.ScriptedGenerator {
	t.Helper()
	return testutil.NewScriptedGenerator().
		Always("domain", testutil.Text(`{"domain": "sorting"}`)).
		Always("pattern", testutil.Text(`{"pattern": "sequence"}`)).
		Always("sorting_trace", testutil.Text(mustJSON(t, sorting.Expand("bubble_sort", []int{5, 2, 8, 1}))))
}

// failingGenerator scripts a generic request whose pseudocode never parses.
func failingGenerator() *testutil.ScriptedGenerator {
	return testutil.NewScriptedGenerator().
		Always("domain", testutil.Text(`{"domain": "generic"}`)).
		Always("pattern", testutil.Text(`{"pattern": "flow"}`)).
		Always("pseudocode", testutil.Text("not json at all"))
}
