package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http/handlers"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/session"
)

type Deps struct {
	Logger *log.Logger
	Cfg    config.Config

	Sessions *session.Registry
	Catalog  handlers.ProductLister
	Metrics  *metrics.Metrics

	HealthProbes []clients.HealthProbe
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares (outer -> inner)
	r.Use(middleware.Recover(d.Logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.Cfg.CORSAllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderCorrelationID, clients.HeaderIdempotencyKey},
		ExposedHeaders: []string{middleware.HeaderCorrelationID, "Location"},
		MaxAge:         600,
	}).Handler)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Instrument)
	}

	// Health
	health := &handlers.HealthHandler{Probes: d.HealthProbes}
	r.Get("/health", health.Service)
	r.Get("/health/upstreams", health.Upstreams)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Catalog
	cat := handlers.NewCatalogHandler(d.Catalog)
	r.Get("/products", cat.ListProducts)

	// Sessions: cart + checkout
	s := handlers.NewSessionHandler(d.Sessions)
	r.Post("/sessions", s.Create)
	r.Route("/sessions/{sessionId}", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Delete("/", s.Delete)

		r.Get("/cart", s.GetCart)
		r.Post("/cart/items", s.AddItem)
		r.Put("/cart/items/{productId}", s.SetQuantity)
		r.Delete("/cart/items/{productId}", s.RemoveItem)

		r.Post("/checkout", s.Checkout)
		r.Put("/shipping", s.Shipping)
		r.Put("/payment", s.Payment)
		r.Get("/order", s.Order)
	})

	return r
}
