package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
)

type CatalogClient struct{ c *Client }

func NewCatalogClient(c *Client) *CatalogClient { return &CatalogClient{c: c} }

// ListProducts fetches one catalog page. Zero page or limit leaves the
// parameter to the server default.
func (cc *CatalogClient) ListProducts(ctx context.Context, page, limit int) (catalog.Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var p catalog.Page
	if err := cc.c.doJSON(ctx, http.MethodGet, "/", q.Encode(), nil, &p); err != nil {
		return catalog.Page{}, wrap(ErrCatalogFetch, "list products", err)
	}
	return p, nil
}
