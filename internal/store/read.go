package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/render"
)

// ErrNotFound is returned when a run ID has no record.
var ErrNotFound = errors.New("run not found")

// Summary is one row of the history listing.
type Summary struct {
	RequestID string          `json:"request_id"`
	Mode      string          `json:"mode"`
	Status    pipeline.Status `json:"status"`
	Domain    string          `json:"domain"`
	Pattern   string          `json:"pattern"`
	VideoPath string          `json:"video_path,omitempty"`
	Fallback  bool            `json:"fallback"`
	Tokens    int             `json:"tokens"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	Status pipeline.Status
	Limit  int
}

// Recent returns the newest runs first, ties broken by ID.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Summary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, status, domain, pattern, video_path, fallback, total_tokens, started_at, duration_ms
		FROM runs
		WHERE (? = '' OR status = ?)
		ORDER BY started_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, string(f.Status), string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			status  string
			started string
			ms      int64
		)
		if err := rows.Scan(&sum.RequestID, &sum.Mode, &status, &sum.Domain, &sum.Pattern,
			&sum.VideoPath, &sum.Fallback, &sum.Tokens, &started, &ms); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.Status = pipeline.Status(status)
		sum.Duration = time.Duration(ms) * time.Millisecond
		if sum.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Run reads a whole run back. Prompts and outputs are included.
func (s *Store) Run(ctx context.Context, id string) (pipeline.RunRecord, error) {
	var (
		run     pipeline.RunRecord
		status  string
		errs    string
		started string
		ms      int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, input_text, status, domain, pattern, video_path, fallback, errors,
		       prompt_tokens, output_tokens, total_tokens, started_at, duration_ms
		FROM runs WHERE id = ?
	`, id).Scan(&run.RequestID, &run.Mode, &run.Text, &status, &run.Domain, &run.Pattern,
		&run.VideoPath, &run.Fallback, &errs, &run.Usage.PromptTokens,
		&run.Usage.CompletionTokens, &run.Usage.TotalTokens, &started, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.RunRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return pipeline.RunRecord{}, fmt.Errorf("query run: %w", err)
	}

	run.Status = pipeline.Status(status)
	run.Duration = time.Duration(ms) * time.Millisecond
	if run.StartedAt, err = parseTime(started); err != nil {
		return pipeline.RunRecord{}, err
	}
	if run.Errors, err = unmarshalStrings(errs); err != nil {
		return pipeline.RunRecord{}, err
	}
	if run.Attempts, err = s.readAttempts(ctx, id); err != nil {
		return pipeline.RunRecord{}, err
	}
	if run.Renders, err = s.readRenders(ctx, id); err != nil {
		return pipeline.RunRecord{}, err
	}
	if run.Sources, err = s.readSources(ctx, id); err != nil {
		return pipeline.RunRecord{}, err
	}
	return run, nil
}

func (s *Store) readAttempts(ctx context.Context, id string) ([]pipeline.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, attempt, temperature, prompt, output, parse_error, errors, total_tokens, duration_ms
		FROM attempts WHERE run_id = ? ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Attempt
	for rows.Next() {
		var (
			a    pipeline.Attempt
			errs string
			ms   int64
		)
		if err := rows.Scan(&a.Stage, &a.Index, &a.Temperature, &a.Prompt, &a.Output,
			&a.ParseError, &errs, &a.Usage.TotalTokens, &ms); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if a.Errors, err = unmarshalStrings(errs); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func (s *Store) readRenders(ctx context.Context, id string) ([]render.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt, state, fallback, source_path, tag, message, duration_ms
		FROM renders WHERE run_id = ? ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	var out []render.Attempt
	for rows.Next() {
		var (
			r        render.Attempt
			state    string
			tag, msg string
			ms       int64
		)
		if err := rows.Scan(&r.Index, &state, &r.Fallback, &r.SourcePath, &tag, &msg, &ms); err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		r.State = render.State(state)
		r.Duration = time.Duration(ms) * time.Millisecond
		if tag != "" {
			r.Failure = &render.Failure{Tag: tag, Message: msg}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renders: %w", err)
	}
	return out, nil
}

func (s *Store) readSources(ctx context.Context, id string) ([]pipeline.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, body FROM sources WHERE run_id = ? ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Source
	for rows.Next() {
		var src pipeline.Source
		if err := rows.Scan(&src.Kind, &src.Text); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}
