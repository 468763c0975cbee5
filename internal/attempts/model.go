package attempts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attempt is one journaled payment attempt. Card data is never stored.
type Attempt struct {
	ID             string
	SessionID      string
	OrderID        int64
	JobID          string
	Attempt        int
	State          string
	Paid           bool
	Amount         decimal.Decimal
	Polls          int
	FailureKind    string
	FailureMessage string
	StartedAt      time.Time
	FinishedAt     time.Time
}
