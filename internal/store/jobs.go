package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediasuite/internal/agent"
	"mediasuite/internal/orchestrator"
)

const jobColumns = `id, file_reference, file_kind, status, error_message, created_at, completed_at`

// SaveJob writes the full job snapshot, replacing any stored results.
func (s *Store) SaveJob(ctx context.Context, job orchestrator.Job) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	results := make([][]byte, len(job.Results))
	for i, entry := range job.Results {
		encoded, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("encode result for %s: %w", entry.AgentID, err)
		}
		results[i] = encoded
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO jobs (
                id, file_reference, file_kind, status, error_message, created_at, completed_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                status = excluded.status,
                error_message = excluded.error_message,
                completed_at = excluded.completed_at,
                updated_at = excluded.updated_at`,
			job.ID,
			job.FileReference,
			job.FileKind,
			string(job.Status),
			nullableString(job.Error),
			formatTime(job.CreatedAt),
			formatTime(job.CompletedAt),
			formatTime(time.Now()),
		); err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_results WHERE job_id = ?`, job.ID); err != nil {
			return fmt.Errorf("clear results: %w", err)
		}
		for i, entry := range job.Results {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_results (job_id, position, agent_id, result_json) VALUES (?, ?, ?, ?)`,
				job.ID, i, entry.AgentID, string(results[i]),
			); err != nil {
				return fmt.Errorf("insert result %s: %w", entry.AgentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob fetches a job with its results. A missing job returns nil, nil.
func (s *Store) GetJob(ctx context.Context, id string) (*orchestrator.Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if err := s.loadResults(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs in creation order, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...orchestrator.Status) ([]*orchestrator.Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []*orchestrator.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, job := range jobs {
		if err := s.loadResults(ctx, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// Remove deletes a job with its results and messages. It reports whether the
// job existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove job %s: %w", id, err)
	}
	return removed, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[orchestrator.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[orchestrator.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[orchestrator.Status(status)] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*orchestrator.Job, error) {
	var (
		job       orchestrator.Job
		status    string
		errMsg    sql.NullString
		created   sql.NullString
		completed sql.NullString
	)
	if err := row.Scan(&job.ID, &job.FileReference, &job.FileKind, &status, &errMsg, &created, &completed); err != nil {
		return nil, err
	}
	job.Status = orchestrator.Status(status)
	job.Error = errMsg.String
	var err error
	if job.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.CompletedAt, err = parseTime(completed); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	return &job, nil
}

func (s *Store) loadResults(ctx context.Context, job *orchestrator.Job) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, result_json FROM job_results WHERE job_id = ? ORDER BY position`, job.ID)
	if err != nil {
		return fmt.Errorf("load results for %s: %w", job.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var agentID, encoded string
		if err := rows.Scan(&agentID, &encoded); err != nil {
			return err
		}
		var result agent.Result
		if err := json.Unmarshal([]byte(encoded), &result); err != nil {
			return fmt.Errorf("decode result %s: %w", agentID, err)
		}
		job.Results = append(job.Results, orchestrator.AgentResult{AgentID: agentID, Result: result})
	}
	return rows.Err()
}
