package dto

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
)

type Product struct {
	ID          int64           `json:"id"`
	ImageID     int64           `json:"imageId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Weight      float64         `json:"weight"`
	InStock     bool            `json:"in_stock"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
}

func ProductFrom(p catalog.Product) Product {
	return Product{
		ID:          p.ID,
		ImageID:     p.ImageID(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Weight:      p.Weight,
		InStock:     p.InStock,
	}
}

func ProductPageFrom(p catalog.Page) ProductPage {
	out := ProductPage{Products: make([]Product, 0, len(p.Products)), Total: p.Total, Page: p.Page}
	for _, prod := range p.Products {
		out.Products = append(out.Products, ProductFrom(prod))
	}
	return out
}
