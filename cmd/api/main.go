package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/helpora/api/internal/di"
	"github.com/helpora/api/internal/handlers"
	"github.com/helpora/api/internal/payments"
	"github.com/helpora/api/internal/platform/config"
	pfirestore "github.com/helpora/api/internal/platform/firestore"
	"github.com/helpora/api/internal/platform/idempotency"
	"github.com/helpora/api/internal/platform/jobs"
	"github.com/helpora/api/internal/platform/observability"
	"github.com/helpora/api/internal/repositories"
	firestoreRepo "github.com/helpora/api/internal/repositories/firestore"
	"github.com/helpora/api/internal/repositories/memory"
	"github.com/helpora/api/internal/services"
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
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, idemStore, readiness, err := buildRegistry(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise storage backend", zap.Error(err))
	}

	publisher, closePublisher, err := buildEventPublisher(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	if closePublisher != nil {
		defer closePublisher()
	}

	authorizer, err := buildPaymentAuthorizer(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise payment authorizer", zap.Error(err))
	}

	container, err := di.NewContainer(cfg, registry, di.Options{
		Payments: authorizer,
		Events:   publisher,
		Logger:   observability.EventLogger(logger.Named("services")),
	})
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("registry close error", zap.Error(err))
		}
	}()

	catalogHandlers := handlers.NewCatalogHandlers(container.Services.Catalog)
	cartHandlers := handlers.NewCartHandlers(container.Services.Cart,
		handlers.WithCheckoutRateLimit(cfg.Server.CheckoutRateLimit),
		handlers.WithCartMiddlewares(idempotency.Middleware(idemStore,
			idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
		)),
	)
	bookingHandlers := handlers.NewBookingHandlers(container.Services.Bookings)
	reviewHandlers := handlers.NewReviewHandlers(container.Services.Reviews)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(readiness)),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithVendorRoutes(catalogHandlers.VendorRoutes),
		handlers.WithVendorRoutes(bookingHandlers.VendorRoutes),
		handlers.WithVendorRoutes(reviewHandlers.VendorRoutes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithManagementRoutes(catalogHandlers.ManagementRoutes),
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
		serverLogger.Info("helpora api listening")
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

func buildRegistry(ctx context.Context, logger *zap.Logger, cfg config.Config) (repositories.Registry, idempotency.Store, map[string]handlers.ReadinessCheck, error) {
	switch cfg.Storage.Backend {
	case "memory":
		logger.Info("using in-memory storage backend")
		return memory.NewRegistry(), idempotency.NewMemoryStore(), nil, nil
	case "firestore":
		provider := pfirestore.NewProvider(cfg.Firestore)
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		registry, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := map[string]handlers.ReadinessCheck{
			"firestore": func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
				defer cancel()
				iter := client.Collections(pingCtx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		}
		return registry, idempotency.NewFirestoreStore(client), checks, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.BookingEventPublisher, func(), error) {
	topicID := strings.TrimSpace(cfg.PubSub.Topic)
	if topicID == "" {
		logger.Info("booking event publishing disabled; no topic configured")
		return nil, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	publisher, err := jobs.NewPubSubBookingPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	logger.Info("booking event publishing enabled", zap.String("topic", topicID))
	return publisher, closeFn, nil
}

func buildPaymentAuthorizer(logger *zap.Logger, cfg config.Config) (services.PaymentAuthorizer, error) {
	apiKey := strings.TrimSpace(cfg.Payments.StripeAPIKey)
	if apiKey == "" {
		logger.Info("payment authorization disabled; no stripe key configured")
		return nil, nil
	}

	paymentsLogger := logger.Named("payments")
	authorizer, err := payments.NewStripeAuthorizer(payments.StripeAuthorizerConfig{
		APIKey: apiKey,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug("stripe log", zFields...)
		},
		Clock: time.Now,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("payment authorization enabled")
	return authorizer, nil
}
