// Package app wires the storefront together and runs it.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/giftkart/storefront/internal/domain/cart"
	"github.com/giftkart/storefront/internal/domain/checkout"
	"github.com/giftkart/storefront/internal/domain/order"
	"github.com/giftkart/storefront/internal/domain/verification"
	"github.com/giftkart/storefront/internal/handler"
	"github.com/giftkart/storefront/internal/payment"
	"github.com/giftkart/storefront/internal/sms"
	"github.com/giftkart/storefront/internal/storage/postgres"
	storageredis "github.com/giftkart/storefront/internal/storage/redis"
	"github.com/giftkart/storefront/pkg/health"
	"github.com/giftkart/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for verification sessions and parked payment intents.
	redisClient, err := storageredis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = redisClient.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(500*time.Millisecond))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories and stores.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	verifStore := storageredis.NewVerificationStore(redisClient)
	intentStore := storageredis.NewIntentStore(redisClient)

	// Domain services.
	cartService := cart.NewService(productRepo, cartRepo, cart.Config{
		MinHamperValue:        cfg.Hamper.MinValue,
		FreeDeliveryThreshold: cfg.Hamper.FreeDeliveryThreshold,
		DeliveryFee:           cfg.Hamper.DeliveryFee,
	})
	dispatcher := sms.NewHTTPDispatcher(cfg.SMS.Endpoint, cfg.SMS.Sender, cfg.SMS.Timeout)
	gate := verification.NewGate(verifStore, dispatcher, verification.Config{
		CodeLength:     cfg.Verification.CodeLength,
		CodeTTL:        cfg.Verification.CodeTTL,
		ResendCooldown: cfg.Verification.ResendCooldown,
		ResendMax:      cfg.Verification.ResendMax,
		MaxAttempts:    cfg.Verification.MaxAttempts,
		TokenTTL:       cfg.Verification.TokenTTL,
		Pepper:         cfg.Verification.Pepper,
	})
	ledger := order.NewLedger(orderRepo)
	gateway := payment.NewHTTPGateway(payment.HTTPConfig{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.Gateway.Timeout,
	})
	orch := checkout.NewOrchestrator(cartService, productRepo, gate, ledger, gateway, intentStore, checkout.Config{
		IntentTTL: cfg.Checkout.IntentTTL,
		KeyBucket: cfg.Checkout.KeyBucket,
	})

	// HTTP surface.
	h := handler.NewHandler(
		productRepo,
		cartService,
		gate,
		ledger,
		orch,
		handler.NewAuth(apikeyRepo, []byte(cfg.APIKeyPepper)),
		[]byte(cfg.WebhookSecret),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", otelhttp.NewHandler(h.Routes(), "storefront-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-Api-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
