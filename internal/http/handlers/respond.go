package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/session"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "bad-request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// WriteError maps domain and upstream errors to a status code and a JSON
// error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	resp := dto.ErrorResponse{
		Error:         err.Error(),
		Code:          code,
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	}

	var vErr *clients.ValidationError
	if errors.As(err, &vErr) {
		resp.Fields = vErr.Fields
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		resp.Error = apiErr.Message
		if apiErr.Field != "" {
			resp.Fields = []string{apiErr.Field}
		}
	}
	writeJSON(w, status, resp)
}

func statusOf(err error) (int, string) {
	var apiErr *clients.APIError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "not-found"
	case errors.Is(err, clients.ErrValidation),
		errors.Is(err, clients.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, catalog.ErrInvalidProduct):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, checkout.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, cart.ErrLocked):
		return http.StatusConflict, "cart-locked"
	case errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrClosed),
		errors.Is(err, checkout.ErrNoOrder):
		return http.StatusConflict, "illegal-state"
	case errors.Is(err, clients.ErrContract):
		return http.StatusBadGateway, "contract"
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		code := apiErr.Code
		if code == "" {
			code = "rejected"
		}
		return http.StatusUnprocessableEntity, code
	default:
		return http.StatusBadGateway, "upstream"
	}
}
