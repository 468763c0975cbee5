package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one entry of an order creation request.
type LineItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type ShippingInformation struct {
	Country    string `json:"country"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Province   string `json:"province"`
}

// CreditCard is never stored or logged.
type CreditCard struct {
	Name            string `json:"name"`
	Number          string `json:"number"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	CVV             string `json:"cvv"`
}

// Validate checks email and the five shipping fields.
func (s ShippingInformation) Validate(email string) error {
	return requireFields(
		"email", email,
		"country", s.Country,
		"address", s.Address,
		"postal_code", s.PostalCode,
		"city", s.City,
		"province", s.Province,
	)
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
// The server keys tax rates on the exact province string.
func (s ShippingInformation) Trimmed() ShippingInformation {
	return ShippingInformation{
		Country:    strings.TrimSpace(s.Country),
		Address:    strings.TrimSpace(s.Address),
		PostalCode: strings.TrimSpace(s.PostalCode),
		City:       strings.TrimSpace(s.City),
		Province:   strings.TrimSpace(s.Province),
	}
}

func (c CreditCard) Validate() error {
	return requireFields(
		"name", c.Name,
		"number", c.Number,
		"expiration_month", c.ExpirationMonth,
		"expiration_year", c.ExpirationYear,
		"cvv", c.CVV,
	)
}

func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

type OrderProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a snapshot of the server-owned order. Only Paid is authoritative
// and only right after a fetch.
type Order struct {
	ID                  int64                `json:"id"`
	TotalPrice          decimal.Decimal      `json:"total_price"`
	TotalPriceTax       decimal.Decimal      `json:"total_price_tax"`
	ShippingPrice       decimal.Decimal      `json:"shipping_price"`
	Email               string               `json:"email,omitempty"`
	ShippingInformation *ShippingInformation `json:"shipping_information,omitempty"`
	Paid                bool                 `json:"paid"`
	Transaction         json.RawMessage      `json:"transaction,omitempty"`
	Products            []OrderProduct       `json:"products"`
}

// UnmarshalJSON rejects orders without a paid flag; a missing flag must not
// read as unpaid.
func (o *Order) UnmarshalJSON(b []byte) error {
	type alias Order
	aux := struct {
		*alias
		Paid *bool `json:"paid"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Paid == nil {
		return fmt.Errorf("%w: order %d has no paid flag", ErrContract, o.ID)
	}
	o.Paid = *aux.Paid
	return nil
}

type OrderClient struct{ c *Client }

func NewOrderClient(c *Client) *OrderClient { return &OrderClient{c: c} }

func orderPath(orderID int64) string {
	return "/order/" + strconv.FormatInt(orderID, 10)
}

// CreateOrder refuses an empty item list without contacting the server.
func (oc *OrderClient) CreateOrder(ctx context.Context, items []LineItem) (int64, error) {
	if len(items) == 0 {
		return 0, ErrEmptyCart
	}

	req := struct {
		Products []LineItem `json:"products"`
	}{Products: items}
	var resp struct {
		OrderID *int64 `json:"order_id"`
	}
	if err := oc.c.doJSON(ctx, http.MethodPost, "/order", "", req, &resp); err != nil {
		return 0, wrap(ErrOrderSubmission, "create order", err)
	}
	if resp.OrderID == nil {
		return 0, wrap(ErrOrderSubmission, "create order", fmt.Errorf("%w: no order_id", ErrContract))
	}
	return *resp.OrderID, nil
}

func (oc *OrderClient) FetchOrder(ctx context.Context, orderID int64) (Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := oc.c.doJSON(ctx, http.MethodGet, orderPath(orderID), "", nil, &resp); err != nil {
		return Order{}, wrap(ErrOrderFetch, "fetch order", err)
	}
	if resp.Order == nil {
		return Order{}, wrap(ErrOrderFetch, "fetch order", fmt.Errorf("%w: no order", ErrContract))
	}
	return *resp.Order, nil
}

func (oc *OrderClient) UpdateShipping(ctx context.Context, orderID int64, email string, info ShippingInformation) error {
	if err := info.Validate(email); err != nil {
		return err
	}

	type shippingOrder struct {
		Email               string              `json:"email"`
		ShippingInformation ShippingInformation `json:"shipping_information"`
	}
	req := struct {
		Order shippingOrder `json:"order"`
	}{Order: shippingOrder{Email: strings.TrimSpace(email), ShippingInformation: info.Trimmed()}}

	if err := oc.c.doJSON(ctx, http.MethodPut, orderPath(orderID), "", req, nil); err != nil {
		return wrap(ErrOrderUpdate, "update shipping", err)
	}
	return nil
}

// SubmitPayment returns the id of the job processing the payment. A response
// without a job id is ErrPaymentSubmission; a failed request is ErrOrderUpdate.
func (oc *OrderClient) SubmitPayment(ctx context.Context, orderID int64, card CreditCard) (string, error) {
	if err := card.Validate(); err != nil {
		return "", err
	}

	req := struct {
		CreditCard CreditCard `json:"credit_card"`
	}{CreditCard: card}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := oc.c.doJSON(ctx, http.MethodPut, orderPath(orderID), "", req, &resp); err != nil {
		if errors.Is(err, ErrContract) {
			return "", wrap(ErrPaymentSubmission, "submit payment", err)
		}
		return "", wrap(ErrOrderUpdate, "submit payment", err)
	}
	if resp.JobID == "" {
		return "", wrap(ErrPaymentSubmission, "submit payment", fmt.Errorf("%w: no job_id", ErrContract))
	}
	return resp.JobID, nil
}
