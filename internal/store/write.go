package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/pipeline"
)

// Record writes a finished run and all of its children in one transaction.
// Recording the same request ID twice is a no-op.
func (s *Store) Record(ctx context.Context, run pipeline.RunRecord) error {
	errs, err := marshalStrings(run.Errors)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, mode, input_text, status, domain, pattern, video_path, fallback, errors,
		 prompt_tokens, output_tokens, total_tokens, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.RequestID,
		run.Mode,
		run.Text,
		string(run.Status),
		run.Domain,
		run.Pattern,
		run.VideoPath,
		run.Fallback,
		errs,
		run.Usage.PromptTokens,
		run.Usage.CompletionTokens,
		run.Usage.TotalTokens,
		formatTime(run.StartedAt),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if err := writeAttempts(ctx, tx, run.RequestID, run.Attempts); err != nil {
		return err
	}
	if err := writeRenders(ctx, tx, run); err != nil {
		return err
	}
	if err := writeSources(ctx, tx, run.RequestID, run.Sources); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

func writeAttempts(ctx context.Context, tx *sql.Tx, runID string, attempts []pipeline.Attempt) error {
	for i, a := range attempts {
		errs, err := marshalStrings(a.Errors)
		if err != nil {
			return fmt.Errorf("record attempt %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempts
			(run_id, idx, stage, attempt, temperature, prompt, output, parse_error, errors, total_tokens, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, i, a.Stage, a.Index, a.Temperature, a.Prompt, a.Output,
			a.ParseError, errs, a.Usage.TotalTokens, a.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("record attempt %d: %w", i, err)
		}
	}
	return nil
}

func writeRenders(ctx context.Context, tx *sql.Tx, run pipeline.RunRecord) error {
	for i, r := range run.Renders {
		var tag, msg string
		if r.Failure != nil {
			tag, msg = r.Failure.Tag, r.Failure.Message
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO renders
			(run_id, idx, attempt, state, fallback, source_path, tag, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.RequestID, i, r.Index, string(r.State), r.Fallback, r.SourcePath, tag, msg,
			r.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("record render %d: %w", i, err)
		}
	}
	return nil
}

func writeSources(ctx context.Context, tx *sql.Tx, runID string, sources []pipeline.Source) error {
	for i, src := range sources {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sources (run_id, idx, kind, body, fingerprint) VALUES (?, ?, ?, ?, ?)
		`, runID, i, src.Kind, src.Text, ir.SourceFingerprint(src.Text))
		if err != nil {
			return fmt.Errorf("record source %d: %w", i, err)
		}
	}
	return nil
}
