// Command locatord serves a configured location fallback chain over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/locator/auth"
	"github.com/jonwraymond/locator/config"
	"github.com/jonwraymond/locator/health"
	"github.com/jonwraymond/locator/internal/api"
	"github.com/jonwraymond/locator/location"
	"github.com/jonwraymond/locator/observe"
	"github.com/jonwraymond/locator/provider"
	"github.com/jonwraymond/locator/resilience"
	"github.com/jonwraymond/locator/store"
)

const serviceName = "locatord"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.Telemetry.Observe())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	agg := health.NewAggregator()

	fixes, closeStore, err := openStore(ctx, cfg.Store, logger, agg)
	if err != nil {
		return err
	}
	defer closeStore()

	var nc *nats.Conn
	if cfg.Backend.Name == config.BackendNATS {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(serviceName),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
			nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
				logger.Warn(ctx, "nats error", observe.Field{Key: "error", Value: err.Error()})
			}),
		)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = nc.Drain() }()
		agg.Register(health.ConnChecker("nats", nc.IsConnected))
	}

	backend, err := provider.NewDefaultRegistry().Create(cfg.Backend.Name, provider.Deps{
		Store:   fixes,
		NATS:    nc,
		Logger:  logger,
		Enabled: cfg.Backend.Enabled,
		Prefix:  cfg.NATS.Prefix,
	})
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	defer func() { _ = backend.Close() }()
	agg.Register(health.NewProviderChecker(backend, chainProviders(cfg.Chain)...))

	var (
		src   location.Provider = backend
		authn *auth.JWTAuthenticator
	)
	if cfg.Auth.Enabled() {
		authn = auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		}, auth.NewStaticKeyProvider([]byte(cfg.Auth.Secret)))
		src = auth.NewGuard(backend, auth.DefaultScopePolicy())
	}

	chain, err := cfg.Chain.Build()
	if err != nil {
		return err
	}
	manager := location.NewManager(src,
		location.WithLogger(logger),
		location.WithMiddleware(mw),
	)

	injector, _ := backend.(provider.Injector)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             64 * 1024,
		Immutable:             true,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	api.SetupRoutes(app, api.Deps{
		Manager:  manager,
		Chain:    chain,
		Injector: injector,
		Auth:     authn,
		Health:   agg,
		Logger:   logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting",
			observe.Field{Key: "addr", Value: cfg.Server.Addr},
			observe.Field{Key: "backend", Value: backend.Name()},
			observe.Field{Key: "store", Value: cfg.Store.Kind},
			observe.Field{Key: "steps", Value: len(chain.Steps())},
			observe.Field{Key: "auth", Value: authn != nil},
		)
		listenErr <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "forced shutdown", observe.Field{Key: "error", Value: err.Error()})
	}
	logger.Info(shutdownCtx, "server stopped")
	return nil
}

// openStore builds the configured fix store and registers its health checks.
func openStore(ctx context.Context, cfg config.StoreConfig, logger observe.Logger, agg *health.Aggregator) (store.Store, func(), error) {
	policy := cfg.Policy()
	onChange := func(name string, from, to resilience.State) {
		logger.Warn(ctx, "circuit breaker state changed",
			observe.Field{Key: "backend", Value: name},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	}

	var closers []func()
	closeAll := func() {
		for _, c := range slices.Backward(closers) {
			c()
		}
	}

	var tiers []store.Store
	if cfg.Kind == config.StoreMemory || cfg.Kind == config.StoreTiered {
		tiers = append(tiers, store.NewMemory(policy))
	}

	if cfg.Kind == config.StoreValkey || cfg.Kind == config.StoreTiered {
		v, err := store.DialValkey(cfg.ValkeyAddr, policy, cfg.Breaker.New("valkey", onChange))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, v.Close)
		agg.Register(health.NewPingChecker("valkey", v))
		tiers = append(tiers, v)
	}

	if cfg.Kind == config.StorePostgres || cfg.Kind == config.StoreTiered {
		pg, err := store.ConnectPostgres(ctx, cfg.PostgresDSN, policy, cfg.Breaker.New("postgres", onChange))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				closeAll()
				return nil, nil, err
			}
		}
		agg.Register(health.NewPingChecker("postgres", pg))
		tiers = append(tiers, pg)
	}

	switch len(tiers) {
	case 0:
		return nil, nil, errors.New("store: no tiers configured")
	case 1:
		return tiers[0], closeAll, nil
	default:
		return store.NewTiered(tiers...), closeAll, nil
	}
}

// chainProviders lists the distinct providers the chain reads, in step order.
func chainProviders(cc config.ChainConfig) []string {
	var out []string
	for _, s := range cc.Steps {
		if !slices.Contains(out, s.Provider) {
			out = append(out, s.Provider)
		}
	}
	return out
}
