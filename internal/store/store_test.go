package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/render"
	"github.com/roach88/vizgen/internal/testutil"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, status pipeline.Status, started time.Time) pipeline.RunRecord {
	return pipeline.RunRecord{
		RequestID: id,
		Mode:      "generate",
		Text:      "explain a queue",
		Status:    status,
		Domain:    "generic",
		Pattern:   "flow",
		VideoPath: "media/" + id + ".mp4",
		Fallback:  status == pipeline.StatusDegraded,
		Errors:    []string{"E301 layout[1].id: duplicate id \"q\""},
		Usage:     llm.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Attempts: []pipeline.Attempt{
			{Stage: "pseudocode", Index: 1, Temperature: 0, Prompt: "p1", Output: "{", ParseError: "unexpected end of JSON input", Usage: llm.Usage{TotalTokens: 15}, Duration: 20 * time.Millisecond},
			{Stage: "pseudocode", Index: 2, Temperature: 0, Prompt: "p2", Output: "{}", Usage: llm.Usage{TotalTokens: 15}},
		},
		Renders: []render.Attempt{
			{Index: 1, State: render.StateRetryableFailure, SourcePath: "a.py", Failure: &render.Failure{Tag: render.TagRuntimeName, Message: "name 'Foo' is not defined"}},
			{Index: 2, State: render.StateSucceeded, SourcePath: "b.py", Duration: time.Second},
		},
		Sources: []pipeline.Source{{Kind: "codegen", Text: "from manim import *\n"}},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"runs", "attempts", "renders", "sources"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, len(migrations), version)

	for _, name := range []string{"idx_runs_status", "idx_runs_started_at"} {
		var n int
		require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&n))
		assert.Equal(t, 1, n, name)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestRecordRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := sampleRun("req-1", pipeline.StatusOK, testutil.Epoch)

	require.NoError(t, s.Record(ctx, run))

	got, err := s.Run(ctx, "req-1")
	require.NoError(t, err)

	assert.Equal(t, run.Text, got.Text)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, run.Usage, got.Usage)
	assert.Equal(t, run.Errors, got.Errors)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, run.Duration, got.Duration)

	require.Len(t, got.Attempts, 2)
	assert.Equal(t, "unexpected end of JSON input", got.Attempts[0].ParseError)
	assert.False(t, got.Attempts[0].Valid())
	assert.True(t, got.Attempts[1].Valid())
	assert.Equal(t, 15, got.Attempts[1].Usage.TotalTokens)

	require.Len(t, got.Renders, 2)
	require.NotNil(t, got.Renders[0].Failure)
	assert.Equal(t, render.TagRuntimeName, got.Renders[0].Failure.Tag)
	assert.Nil(t, got.Renders[1].Failure)
	assert.Equal(t, 2, got.Renders[1].Index)
	assert.Equal(t, render.StateSucceeded, got.Renders[1].State)

	assert.Equal(t, run.Sources, got.Sources)

	var fp string
	require.NoError(t, s.db.QueryRow(`SELECT fingerprint FROM sources WHERE run_id = ?`, "req-1").Scan(&fp))
	assert.Equal(t, ir.SourceFingerprint(run.Sources[0].Text), fp)
}

func TestRecordIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := sampleRun("req-1", pipeline.StatusOK, testutil.Epoch)

	require.NoError(t, s.Record(ctx, run))
	require.NoError(t, s.Record(ctx, run))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM attempts WHERE run_id = ?", "req-1").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRunNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentOrderingAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sampleRun("b", pipeline.StatusOK, testutil.Epoch)))
	require.NoError(t, s.Record(ctx, sampleRun("a", pipeline.StatusOK, testutil.Epoch)))
	require.NoError(t, s.Record(ctx, sampleRun("c", pipeline.StatusDegraded, testutil.Epoch.Add(time.Minute))))

	all, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, sum := range all {
		ids[i] = sum.RequestID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.True(t, all[0].Fallback)
	assert.Equal(t, 30, all[0].Tokens)

	degraded, err := s.Recent(ctx, Filter{Status: pipeline.StatusDegraded})
	require.NoError(t, err)
	require.Len(t, degraded, 1)
	assert.Equal(t, "c", degraded[0].RequestID)

	limited, err := s.Recent(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecentEmpty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Recent(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
