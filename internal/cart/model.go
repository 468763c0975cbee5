package cart

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
)

// Line is one product-and-quantity entry of a cart.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type LineTotal struct {
	Line
	Total decimal.Decimal `json:"total"`
}

type Totals struct {
	Lines      []LineTotal     `json:"lines"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	ItemCount  int             `json:"itemCount"`
}

// Item is the order-creation view of a line.
type Item struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}
