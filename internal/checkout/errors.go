package checkout

import (
	"errors"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/poller"
)

var (
	ErrBusy              = errors.New("another checkout step is in progress")
	ErrIllegalTransition = errors.New("checkout step not allowed in current state")
	ErrClosed            = errors.New("checkout session closed")
	ErrNoOrder           = errors.New("no order created yet")
	ErrPaymentDeclined   = errors.New("payment failed, please retry")
	ErrPaymentUnverified = errors.New("payment could not be verified, please retry")
)

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, clients.ErrValidation), errors.Is(err, clients.ErrEmptyCart):
		return FailureValidation
	case errors.Is(err, poller.ErrPollingTimeout):
		return FailureTimeout
	case errors.Is(err, ErrPaymentDeclined):
		return FailurePayment
	case errors.Is(err, clients.ErrContract):
		return FailureContract
	default:
		return FailureTransport
	}
}

func failureOf(err error) *Failure {
	f := &Failure{Kind: classify(err), Message: err.Error(), Err: err}

	var vErr *clients.ValidationError
	if errors.As(err, &vErr) {
		f.Fields = vErr.Fields
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		f.Message = apiErr.Message
	}
	return f
}
