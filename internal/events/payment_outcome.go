package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
)

const (
	EventTypePaymentConfirmed = "CheckoutPaymentConfirmed"
	EventTypePaymentFailed    = "CheckoutPaymentFailed"

	paymentConfirmedSchema = "checkout.payment_confirmed.v1"
	paymentFailedSchema    = "checkout.payment_failed.v1"
)

// PaymentOutcomePayload is the v1 payload of both payment outcome events.
type PaymentOutcomePayload struct {
	SessionID      string          `json:"sessionId"`
	OrderID        int64           `json:"orderId"`
	JobID          string          `json:"jobId,omitempty"`
	Attempt        int             `json:"attempt"`
	Paid           bool            `json:"paid"`
	Amount         decimal.Decimal `json:"amount"`
	Polls          int             `json:"polls"`
	FailureKind    string          `json:"failureKind,omitempty"`
	FailureMessage string          `json:"failureMessage,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

type PaymentOutcomeEvent = EventEnvelope[PaymentOutcomePayload]

// newPaymentOutcomeEvent picks name, schema and routing key from whether the
// order ended up paid.
func newPaymentOutcomeEvent(res checkout.Result, producer string, occurredAt time.Time) (PaymentOutcomeEvent, string) {
	payload := PaymentOutcomePayload{
		SessionID:  res.SessionID,
		OrderID:    res.OrderID,
		JobID:      res.JobID,
		Attempt:    res.Attempt,
		Paid:       res.Paid,
		Amount:     res.Amount,
		Polls:      res.Polls,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.FinishedAt.UTC(),
	}
	if res.Failure != nil {
		payload.FailureKind = string(res.Failure.Kind)
		payload.FailureMessage = res.Failure.Message
	}

	name, schema, routingKey := EventTypePaymentConfirmed, paymentConfirmedSchema, PaymentConfirmedRoutingKey
	if !res.Paid {
		name, schema, routingKey = EventTypePaymentFailed, paymentFailedSchema, PaymentFailedRoutingKey
	}

	return PaymentOutcomeEvent{
		EventName:     name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: res.SessionID,
		CausationID:   res.JobID,
		Producer:      producer,
		PartitionKey:  strconv.FormatInt(res.OrderID, 10),
		OccurredAt:    occurredAt,
		Schema:        schema,
		Payload:       payload,
	}, routingKey
}
