package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/middleware"
)

// ProductLister is satisfied by *clients.CatalogClient.
type ProductLister interface {
	ListProducts(ctx context.Context, page, limit int) (catalog.Page, error)
}

type CatalogHandler struct{ c ProductLister }

func NewCatalogHandler(c ProductLister) *CatalogHandler { return &CatalogHandler{c: c} }

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	p, err := h.c.ListProducts(r.Context(), page, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProductPageFrom(p))
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "bad-request", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
