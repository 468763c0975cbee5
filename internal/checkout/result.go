package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Result describes how one payment attempt ended.
type Result struct {
	SessionID  string
	OrderID    int64
	JobID      string
	Attempt    int
	State      State
	Paid       bool
	Amount     decimal.Decimal
	Polls      int
	Failure    *Failure
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sink receives payment outcomes. Errors are logged and never change the
// checkout state.
type Sink interface {
	Record(ctx context.Context, res Result) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, res Result) error

func (f SinkFunc) Record(ctx context.Context, res Result) error { return f(ctx, res) }

func (o *Orchestrator) resultLocked(polls int) Result {
	res := Result{
		SessionID:  o.id,
		OrderID:    o.orderID,
		JobID:      o.jobID,
		Attempt:    o.attemptNo,
		State:      o.state,
		Paid:       o.state == StatePaymentConfirmed,
		Polls:      polls,
		Failure:    o.failure,
		StartedAt:  o.payStart,
		FinishedAt: time.Now(),
	}
	if o.order != nil {
		res.Amount = o.order.TotalPriceTax.Add(o.order.ShippingPrice)
	}
	return res
}
