package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/session"
)

type SessionHandler struct{ reg *session.Registry }

func NewSessionHandler(reg *session.Registry) *SessionHandler { return &SessionHandler{reg: reg} }

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.reg.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) respond(w http.ResponseWriter, status int, s *session.Session) {
	writeJSON(w, status, dto.SessionResponse{View: s.Checkout.View(), Cart: s.Cart.Totals()})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.reg.Create()
	w.Header().Set("Location", "/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, dto.CreateSessionResponse{SessionID: s.ID})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, s)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Delete(chi.URLParam(r, "sessionId")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Cart.Totals())
}

func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var p catalog.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.Cart.Add(p); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Cart.Totals())
}

func (h *SessionHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req dto.SetQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Cart.SetQuantityText(productID, req.Quantity); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Cart.Totals())
}

func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if err := s.Cart.Remove(productID); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Cart.Totals())
}

func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Checkout.SubmitCart(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, s)
}

func (h *SessionHandler) Shipping(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.ShippingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Checkout.SubmitShipping(r.Context(), req.Email, req.ShippingInformation); err != nil {
		WriteError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, s)
}

// Payment answers 202 while the job is polled. An order found to be paid
// already is reported with 200 and no job id.
func (h *SessionHandler) Payment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	jobID, err := s.Checkout.SubmitPayment(r.Context(), req.CreditCard)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if jobID == "" {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.PaymentResponse{JobID: jobID, State: s.Checkout.State()})
}

// Order re-fetches the order for display without touching checkout state.
func (h *SessionHandler) Order(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	order, err := s.Checkout.RefreshOrder(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id < 1 {
		middleware.WriteError(w, r, http.StatusBadRequest, "bad-request", "productId must be a positive integer")
		return 0, false
	}
	return id, true
}
