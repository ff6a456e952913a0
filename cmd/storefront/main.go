package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/auth"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session/redisstore"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/session/sqlitestore"
)

const pruneInterval = time.Hour

func main() {
	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- catalog and event sequences ---
	var (
		products  catalog.Repository = catalog.NewMemoryRepository()
		publisher httpapi.CheckoutPublisher
	)
	if cfg.DatabaseDSN != "" {
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
				logger.Fatalf("db migrate: %v", err)
			}
		}

		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		products = catalog.NewPostgresRepository(pool)

		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatalf("db open: %v", err)
		}
		defer database.Close()

		// --- AMQP ---
		if cfg.RabbitMQURL != "" {
			conn, err := events.Dial(cfg.RabbitMQURL)
			if err != nil {
				logger.Fatalf("rabbitmq: %v", err)
			}
			defer conn.Close()

			p, err := events.NewPublisher(conn, events.NewSequenceRepository(database), events.StorefrontProducer)
			if err != nil {
				logger.Fatalf("create publisher: %v", err)
			}
			defer func() {
				if err := p.Close(); err != nil {
					logger.Printf("publisher close error: %v", err)
				}
			}()
			publisher = p
		}
	} else {
		logger.Printf("DATABASE_DSN not set: catalog kept in memory, checkout disabled")
	}

	// --- cart sessions ---
	var persister session.Persister
	switch cfg.CartPersistence {
	case config.PersistRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		store := redisstore.New(client, cfg.RedisCartTTL)
		defer store.Close()
		persister = store
	case config.PersistSQLite:
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			logger.Fatalf("sqlite: %v", err)
		}
		defer store.Close()
		go pruneSQLite(ctx, store, cfg.SQLiteRetention, logger)
		persister = store
	}

	manager := session.NewManager(session.Options{
		Persister: persister,
		IdleTTL:   cfg.SessionIdleTTL,
		Logger:    logger,
	})
	go manager.Run(ctx)
	defer manager.Flush()

	var verifier httpapi.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience)
	} else {
		logger.Printf("SUPABASE_JWT_SECRET not set: all requests are anonymous")
	}

	// --- HTTP ---
	streamsCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	router := httpapi.NewRouter(httpapi.Deps{
		StreamsDone:      streamsCtx.Done(),
		Logger:           logger,
		Sessions:         manager,
		Catalog:          products,
		Verifier:         verifier,
		Publisher:        publisher,
		SessionCookie:    cfg.SessionCookie,
		CookieSecure:     cfg.CookieSecure,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "storefront"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(stopStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s (cart persistence: %s)", cfg.HTTPAddr, cfg.CartPersistence)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Printf("server error: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
}

// pruneSQLite removes carts untouched for longer than retention.
func pruneSQLite(ctx context.Context, store *sqlitestore.Store, retention time.Duration, logger *log.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Printf("prune sqlite carts: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("pruned %d stale carts", n)
			}
		}
	}
}
