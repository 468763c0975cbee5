package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

// Product is the catalog entry as returned by the store API. Once added to a
// cart it is kept as an immutable snapshot.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Weight      float64         `json:"weight"`
	InStock     bool            `json:"in_stock"`
}

// ImageID returns the id of the product picture. Pictures are numbered from
// zero while products are numbered from one.
func (p Product) ImageID() int64 {
	return p.ID - 1
}

func (p Product) Validate() error {
	if p.ID < 1 {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

// Page is one page of the product listing.
type Page struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
}
