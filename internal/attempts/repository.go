package attempts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Attempt) error
	ListByOrder(ctx context.Context, orderID int64) ([]Attempt, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, a *Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkout_attempts (id, session_id, order_id, job_id, attempt, state, paid, amount, polls, failure_kind, failure_message, started_at, finished_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.SessionID, a.OrderID, a.JobID, a.Attempt, a.State, a.Paid, a.Amount, a.Polls,
		a.FailureKind, a.FailureMessage, a.StartedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout attempt: %w", err)
	}
	return nil
}

func (r *repo) ListByOrder(ctx context.Context, orderID int64) ([]Attempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, order_id, job_id, attempt, state, paid, amount, polls, failure_kind, failure_message, started_at, finished_at
         FROM checkout_attempts WHERE order_id = $1 ORDER BY finished_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select checkout attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.OrderID, &a.JobID, &a.Attempt, &a.State, &a.Paid, &a.Amount, &a.Polls,
			&a.FailureKind, &a.FailureMessage, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan checkout attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout attempts: %w", err)
	}
	return out, nil
}
