package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranga-app/api/internal/handlers"
	"github.com/teranga-app/api/internal/platform/auth"
	"github.com/teranga-app/api/internal/platform/config"
	"github.com/teranga-app/api/internal/platform/database"
	"github.com/teranga-app/api/internal/platform/idempotency"
	"github.com/teranga-app/api/internal/platform/observability"
	"github.com/teranga-app/api/internal/repositories/postgres"
	"github.com/teranga-app/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	provider := postgres.NewProvider(db)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	authenticator := auth.NewAuthenticator(
		[]byte(cfg.Auth.TokenSecret),
		auth.WithLeeway(cfg.Auth.TokenLeeway),
	)

	ordersLogger := logger.Named("orders")
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       provider.Orders(),
		Items:        provider.OrderItems(),
		Transactions: provider.Transactions(),
		Products:     provider.Products(),
		UnitOfWork:   provider,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			ordersLogger.Warn("order log", zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	transactionService, err := services.NewTransactionService(services.TransactionServiceDeps{
		Transactions: provider.Transactions(),
		Orders:       provider.Orders(),
		UnitOfWork:   provider,
	})
	if err != nil {
		logger.Fatal("failed to initialise transaction service", zap.Error(err))
	}

	// Mounted inside the route groups, after RequireAuth, so replay keys are
	// scoped to the authenticated caller.
	idempotencyMiddleware := idempotency.Middleware(
		idempotency.NewMemoryStore(),
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, transactionService, idempotencyMiddleware)
	transactionHandlers := handlers.NewTransactionHandlers(authenticator, transactionService, idempotencyMiddleware)
	healthHandlers := handlers.NewHealthHandlers(provider.Health())

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithTransactionRoutes(transactionHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("teranga api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
