package checkout

type State string

const (
	StateCartReview       State = "CART_REVIEW"
	StateOrderCreated     State = "ORDER_CREATED"
	StateShippingCaptured State = "SHIPPING_CAPTURED"
	StatePaymentSubmitted State = "PAYMENT_SUBMITTED"
	StatePollingPayment   State = "POLLING_PAYMENT"
	StatePaymentConfirmed State = "PAYMENT_CONFIRMED"
	StatePaymentFailed    State = "PAYMENT_FAILED"
)

var transitions = map[State][]State{
	StateCartReview:       {StateOrderCreated},
	StateOrderCreated:     {StateShippingCaptured},
	StateShippingCaptured: {StateShippingCaptured, StatePaymentSubmitted},
	StatePaymentSubmitted: {StatePollingPayment, StateShippingCaptured, StatePaymentConfirmed},
	StatePollingPayment:   {StatePaymentConfirmed, StatePaymentFailed},
	StatePaymentFailed:    {StateShippingCaptured, StatePaymentSubmitted},
}

// CanTransitionTo reports whether the checkout may move from s to next.
// PaymentConfirmed has no way out.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true only for a confirmed payment. A failed payment can
// always be retried with a new card.
func (s State) IsTerminal() bool {
	return s == StatePaymentConfirmed
}

func (s State) String() string {
	return string(s)
}

type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureTransport  FailureKind = "transport"
	FailureContract   FailureKind = "contract"
	FailurePayment    FailureKind = "payment"
	FailureTimeout    FailureKind = "timeout"
)

// Failure is the displayable outcome of the last failed step.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Fields  []string    `json:"fields,omitempty"`
	Err     error       `json:"-"`
}
