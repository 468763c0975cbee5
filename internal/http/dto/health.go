package dto

import "github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type UpstreamsHealthResponse struct {
	Status   string                 `json:"status"`
	Service  string                 `json:"service"`
	Upstream []clients.HealthResult `json:"upstream"`
}
