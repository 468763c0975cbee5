package dto

import (
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
)

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type SessionResponse struct {
	checkout.View
	Cart cart.Totals `json:"cart"`
}

type SetQuantityRequest struct {
	Quantity string `json:"quantity"`
}

type ShippingRequest struct {
	Email               string                      `json:"email"`
	ShippingInformation clients.ShippingInformation `json:"shipping_information"`
}

type PaymentRequest struct {
	CreditCard clients.CreditCard `json:"credit_card"`
}

// PaymentResponse carries an empty job id when the order turned out to be
// paid already.
type PaymentResponse struct {
	JobID string         `json:"jobId"`
	State checkout.State `json:"state"`
}

type ErrorResponse struct {
	Error         string   `json:"error"`
	Code          string   `json:"code,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
}
