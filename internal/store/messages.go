package store

import (
	"context"
	"database/sql"
	"fmt"

	"mediasuite/internal/protocol"
)

// AppendMessage stores an envelope under jobID. The job row must already
// exist. Re-appending the same message id is a no-op.
func (s *Store) AppendMessage(ctx context.Context, jobID string, env protocol.Envelope) error {
	ctx = ensureContext(ctx)
	encoded, err := protocol.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.ID(), err)
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO messages (
                job_id, message_id, action, from_agent, to_agent, correlation_id, envelope_json, sent_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(message_id) DO NOTHING`,
			jobID,
			env.ID(),
			env.Action(),
			env.Header.FromID,
			env.Header.ToID,
			nullableString(env.Header.CorrelationID),
			string(encoded),
			formatTime(env.Header.Timestamp),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("append message %s: %w", env.ID(), err)
	}
	return nil
}

// Messages returns the envelopes stored for jobID in send order.
func (s *Store) Messages(ctx context.Context, jobID string) ([]protocol.Envelope, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT envelope_json FROM messages WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", jobID, err)
	}
	defer rows.Close()

	var envs []protocol.Envelope
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		env, err := protocol.Unmarshal([]byte(encoded))
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		envs = append(envs, env)
	}
	return envs, rows.Err()
}
