package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-service/internal/api"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/config"
	"storefront-service/internal/domain"
	"storefront-service/internal/session"
	"storefront-service/internal/store"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting service",
		zap.String("cart_backend", cfg.CartBackend),
		zap.String("log_level", cfg.LogLevel),
	)

	products, err := loadProducts(cfg)
	if err != nil {
		return err
	}
	productStore, err := store.NewMemoryCatalog(products)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	logger.Info("catalog loaded", zap.Int("products", len(products)))

	cartStore, err := openCartStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cartStore.Close(); err != nil {
			logger.Warn("error closing cart store", zap.Error(err))
		}
	}()

	carts := cart.NewService(cartStore, productStore)
	sessions := session.NewBinder(cfg.Session.CookieName, cfg.Session.TTL, cfg.IsProduction())
	currency := cfg.Currency()

	// --- Setup HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	registerHealthCheck(httpRouter, logger, cartStore)
	api.NewHTTPHandler(productStore, carts, sessions, currency, logger).RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	// --- Setup gRPC Server ---
	grpcServer := setupGRPCServer(logger, api.NewGRPCHandler(productStore, carts, currency, logger))
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		logger.Info("HTTP server has stopped")
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		logger.Info("gRPC server has stopped")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		waitForShutdown(logger, httpServer, grpcServer)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("service shutdown sequence finished")
	return nil
}

// loadProducts reads CATALOG_FILE when set, otherwise the built-in catalog.
func loadProducts(cfg *config.Config) ([]domain.Product, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default()
	}
	products, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogFile, err)
	}
	return products, nil
}

// openCartStore connects the configured cart backend.
func openCartStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.CartStorer, error) {
	switch cfg.CartBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database connection: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		s := store.NewPostgresCartStore(db, logger)
		if err := s.EnsureSchema(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to prepare cart schema: %w", err)
		}
		logger.Info("database connection established", zap.String("host", cfg.Postgres.Host))
		return s, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := store.NewRedisCartStore(rdb, cfg.Session.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
		return s, nil

	default:
		logger.Info("using in-memory cart store; carts are lost on restart")
		return store.NewMemoryCartStore(), nil
	}
}

func setupBaseMiddleware(router *chi.Mux, logger *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
}

// pinger is the part of a cart backend the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

func registerHealthCheck(router *chi.Mux, logger *zap.Logger, backend pinger) {
	router.Get("/api/v1/healthz", healthHandler(logger, backend))
}

func healthHandler(logger *zap.Logger, backend pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		storeStatus := "healthy"
		if err := backend.Ping(ctx); err != nil {
			storeStatus = "unhealthy"
			logger.Warn("health check cart store ping failed", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // Always 200, but payload indicates detailed status
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"cartStore":   storeStatus,
		})
	}
}

func setupGRPCServer(logger *zap.Logger, handler api.StorefrontServer) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(api.UnaryLoggingInterceptor(logger)))

	api.RegisterStorefrontServer(s, handler)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)

	return s
}

func waitForShutdown(logger *zap.Logger, httpServer *http.Server, grpcServer *grpc.Server) {
	logger.Info("starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out; forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}
}
