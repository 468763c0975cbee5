package attempts

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
)

// Journal records every finished payment attempt.
type Journal struct {
	repo Repository
}

func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo}
}

func (j *Journal) Record(ctx context.Context, res checkout.Result) error {
	return j.repo.Create(ctx, fromResult(res))
}

func fromResult(res checkout.Result) *Attempt {
	a := &Attempt{
		SessionID:  res.SessionID,
		OrderID:    res.OrderID,
		JobID:      res.JobID,
		Attempt:    res.Attempt,
		State:      res.State.String(),
		Paid:       res.Paid,
		Amount:     res.Amount,
		Polls:      res.Polls,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
	}
	if res.Failure != nil {
		a.FailureKind = string(res.Failure.Kind)
		a.FailureMessage = res.Failure.Message
	}
	return a
}

var _ checkout.Sink = (*Journal)(nil)
