package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/cors"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/webhook"
)

// RunConfig loads config from a path and starts the gateway with signal
// handling.
func RunConfig(configPath string) error {
	logger := core.NewLogger("server")
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return Run(ctx, config, logger)
}

// Run starts the webhook gateway until the context is canceled.
func Run(ctx context.Context, config core.Config, logger *log.Logger) error {
	services, err := BuildServices(config, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	handler := applyMiddlewares(newMux(services), []Middleware{
		requestLogMiddleware(logger),
		corsMiddleware(),
	})

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}

// newMux mounts the per-sender webhook routes plus health and stats.
func newMux(services *Services) *http.ServeMux {
	config := services.Config
	opts := webhook.HandlerOptions{
		Logger:       core.NewLogger("webhook"),
		MaxBodyBytes: config.Server.MaxBodyBytes,
		DebugEvents:  config.Server.DebugEvents,
		Queue:        services.Queue,
		Registry:     services.Registry,
		AuditStore:   services.Audit,
	}

	mux := http.NewServeMux()
	mux.Handle("/webhooks/stripe", webhook.NewStripeHandler(config.Senders.Stripe, opts))
	mux.Handle("/webhooks/shopify", webhook.NewShopifyHandler(config.Senders.Shopify, opts))
	mux.Handle("/webhooks/paypal", webhook.NewPaypalHandler(config.Senders.Paypal, opts))
	mux.Handle("/webhooks/meta", webhook.NewMetaHandler(config.Senders.Meta, opts))
	mux.Handle("/healthz", healthHandler(func(r *http.Request) error {
		return services.Queue.Ping(r.Context())
	}))
	mux.Handle("/queuestats", statsHandler(services.Queue, services.logger))
	return mux
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// applyMiddlewares wraps handler so the first middleware in the list sees
// requests first.
func applyMiddlewares(handler http.Handler, middlewares []Middleware) http.Handler {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func corsMiddleware() Middleware {
	corsHandler := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(_ string) bool { return true },
		AllowedHeaders:  []string{"*"},
		MaxAge:          int(2 * time.Hour / time.Second),
	})
	return corsHandler.Handler
}
