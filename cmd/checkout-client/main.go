package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/attempts"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/poller"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/session"
)

func main() {
	logger := log.New(os.Stdout, "[checkout-client] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	// Base HTTP client (shared)
	sharedHTTP := &http.Client{
		Timeout: cfg.UpstreamTimeout,
	}

	// Store API
	storeBase := clients.NewClient("store-api", cfg.StoreAPIURL, sharedHTTP,
		clients.WithBreaker(cfg.BreakerMaxFailures, cfg.BreakerCooldown))
	orders := clients.NewOrderClient(storeBase)
	jobs := clients.NewJobClient(storeBase)
	catalog := clients.NewCatalogClient(storeBase)

	m := metrics.New()
	sinks := []checkout.Sink{m}

	// Optional attempt journal
	var database *sql.DB
	if cfg.DBDSN != "" {
		if err := db.RunMigrations(cfg.DBDSN, logger); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		database, err = db.Open(openCtx, cfg.DBDSN)
		cancel()
		if err != nil {
			logger.Fatalf("open db: %v", err)
		}
		defer database.Close()
		sinks = append(sinks, attempts.NewJournal(attempts.NewRepository(database)))
		logger.Printf("recording checkout attempts in postgres")
	}

	// Optional payment outcome events
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatalf("dial rabbitmq: %v", err)
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, events.PublisherOptions{})
		if err != nil {
			logger.Fatalf("events publisher: %v", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Printf("publishing payment outcomes to %s", events.EventsExchange)
	}

	newPoller := func(jobID string) checkout.JobPoller {
		return poller.New(jobs, jobID, poller.Config{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
			Timeout:     cfg.PollTimeout,
			Logger:      logger,
			OnAttempt:   m.ObservePoll,
		})
	}

	sessions := session.NewRegistry(func(id string, c *cart.Store) *checkout.Orchestrator {
		return checkout.New(id, checkout.Deps{
			Cart:          c,
			Gateway:       orders,
			NewPoller:     newPoller,
			Sinks:         sinks,
			Logger:        logger,
			VerifyTimeout: cfg.UpstreamTimeout,
		})
	}, cfg.SessionIdleTTL, logger)
	sessions.StartSweeper(session.SweepInterval)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:   logger,
		Cfg:      cfg,
		Sessions: sessions,
		Catalog:  catalog,
		Metrics:  m,
		HealthProbes: []clients.HealthProbe{
			{Name: "store-api", Client: storeBase},
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on :%s (store api %s)", cfg.Port, cfg.StoreAPIURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	sessions.Close()
	logger.Printf("shutdown complete")
}
