package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/testutil"
)

const baselineSource = `from manim import *

class AlgorithmScene(Scene):
    def construct(self):
        self.play(Create(Square()))
`

func TestGenerate_Text(t *testing.T) {
	config := writeConfig(t)
	deps := &Deps{Generator: sortingGenerator(t), Engine: testutil.NewFakeEngine()}

	out, err := execute(t, deps, nil, "generate", "--config", config, "show bubble sort on [5, 2, 8, 1]")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   ok")
	assert.Contains(t, out, "Domain:   sorting")
	assert.Contains(t, out, "Pattern:  sequence")
	assert.Contains(t, out, "Video:")
	assert.Contains(t, out, "#1 succeeded")
}

func TestGenerate_JSON(t *testing.T) {
	config := writeConfig(t)
	engine := testutil.NewFakeEngine()
	deps := &Deps{Generator: sortingGenerator(t), Engine: engine}

	out, err := execute(t, deps, nil, "generate", "--config", config, "--format", "json", "show", "bubble", "sort", "on", "[5,2,8,1]")
	require.NoError(t, err)

	env := decode[pipeline.Response](t, out)
	assert.Equal(t, "ok", env.Status)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, env.Data.RequestID)
	assert.Equal(t, pipeline.StatusOK, env.Data.Status)
	assert.Equal(t, "sorting", env.Data.Domain)
	assert.NotEmpty(t, env.Data.SortingTrace)
	assert.NotEmpty(t, env.Data.IR)
	assert.False(t, env.Data.Fallback)

	require.NotEmpty(t, env.Data.DebugCodePath)
	_, statErr := os.Stat(env.Data.DebugCodePath)
	assert.NoError(t, statErr)
	require.Len(t, engine.Sources(), 1)
}

func TestGenerate_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		deps     func(t *testing.T) *Deps
		wantCode int
		status   string
	}{
		{
			name: "degraded",
			deps: func(t *testing.T) *Deps {
				return &Deps{Generator: sortingGenerator(t), Engine: testutil.FailingEngine("NameError: name 'Foo' is not defined")}
			},
			wantCode: ExitDegraded,
			status:   "Status:   degraded",
		},
		{
			name: "render_failed",
			deps: func(t *testing.T) *Deps {
				engine := testutil.FailingEngine("SyntaxError: invalid syntax")
				engine.Fallback = testutil.Outcome{Stderr: "boom", ExitCode: 1}
				return &Deps{Generator: sortingGenerator(t), Engine: engine}
			},
			wantCode: ExitRenderFailed,
			status:   "Status:   render_failed",
		},
		{
			name: "validation_failed",
			deps: func(t *testing.T) *Deps {
				return &Deps{Generator: failingGenerator(), Engine: testutil.NewFakeEngine()}
			},
			wantCode: ExitFailure,
			status:   "Status:   validation_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := writeConfig(t)
			out, err := execute(t, tt.deps(t), nil, "generate", "--config", config, "show bubble sort on [5, 2, 8, 1]")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.status)
		})
	}
}

func TestGenerate_ValidationFailureJSON(t *testing.T) {
	config := writeConfig(t)
	deps := &Deps{Generator: failingGenerator(), Engine: testutil.NewFakeEngine()}

	out, err := execute(t, deps, nil, "generate", "--config", config, "--format", "json", "explain a queue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	env := decode[pipeline.Response](t, out)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidation, env.Error.Code)
	assert.Equal(t, pipeline.StatusValidationFailed, env.Data.Status)
	assert.NotEmpty(t, env.Data.Errors)
	assert.Empty(t, env.Data.VideoPath)
}

func TestGenerate_Stdin(t *testing.T) {
	config := writeConfig(t)
	deps := &Deps{Generator: sortingGenerator(t), Engine: testutil.NewFakeEngine()}

	out, err := execute(t, deps, strings.NewReader("bubble sort [5, 2, 8, 1]\n"), "generate", "--config", config, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:   ok")
}

func TestGenerate_File(t *testing.T) {
	config := writeConfig(t)
	input := writeFile(t, "request.txt", "bubble sort [5, 2, 8, 1]")
	deps := &Deps{Generator: sortingGenerator(t), Engine: testutil.NewFakeEngine()}

	out, err := execute(t, deps, nil, "generate", "--config", config, "--file", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Domain:   sorting")
}

func TestGenerate_InputErrors(t *testing.T) {
	config := writeConfig(t)
	deps := &Deps{Generator: testutil.NewScriptedGenerator(), Engine: testutil.NewFakeEngine()}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no text", []string{}, "input text is empty"},
		{"blank text", []string{"   "}, "input text is empty"},
		{"args and file", []string{"--file", "x.txt", "text"}, "not both"},
		{"missing file", []string{"--file", "does-not-exist.txt"}, "failed to read input file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"generate", "--config", config}, tt.args...)
			_, err := execute(t, deps, nil, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerate_RequiresAPIKey(t *testing.T) {
	config := writeConfig(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := execute(t, &Deps{Engine: testutil.NewFakeEngine()}, nil, "generate", "--config", config, "explain a queue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBaseline(t *testing.T) {
	config := writeConfig(t)
	gen := testutil.NewScriptedGenerator().Always("baseline", testutil.Text(baselineSource))
	deps := &Deps{Generator: gen, Engine: testutil.NewFakeEngine()}

	out, err := execute(t, deps, nil, "baseline", "--config", config, "--format", "json", "explain a queue")
	require.NoError(t, err)

	env := decode[pipeline.BaselineResponse](t, out)
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, pipeline.StatusOK, env.Data.Status)
	assert.NotEmpty(t, env.Data.VideoPath)
	assert.Equal(t, 15, env.Data.Tokens.TotalTokens)
	assert.Len(t, env.Data.RenderAttempts, 1)
}

func TestBaseline_RenderFailed(t *testing.T) {
	config := writeConfig(t)
	gen := testutil.NewScriptedGenerator().Always("baseline", testutil.Text(baselineSource))
	deps := &Deps{Generator: gen, Engine: testutil.FailingEngine("SyntaxError: invalid syntax")}

	out, err := execute(t, deps, nil, "baseline", "--config", config, "explain a queue")
	require.Error(t, err)
	assert.Equal(t, ExitRenderFailed, GetExitCode(err))
	assert.Contains(t, out, "Status:   render_failed")
	assert.NotContains(t, out, "Video:")
}
