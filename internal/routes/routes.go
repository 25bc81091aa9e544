package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/config"
	"github.com/agura-market/agura_market/internal/logging"
	"github.com/agura-market/agura_market/internal/middleware"
	"github.com/agura-market/agura_market/internal/notification"
	"github.com/agura-market/agura_market/internal/payments"
	"github.com/agura-market/agura_market/internal/paypack"
	"github.com/agura-market/agura_market/internal/product"
	"github.com/agura-market/agura_market/internal/settlement"
)

// Provider is everything the routes need from the payment provider.
// *paypack.Client satisfies it.
type Provider interface {
	settlement.Gateway
	payments.Merchant
}

// Deps aggregates shared dependencies required to wire routes. Provider,
// Products and Registry are built from Cfg when nil.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	NATS     *nats.Conn
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Provider Provider
	Products product.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	verifier, err := auth.NewVerifier(d.Cfg.JWTSecret, nil)
	if err != nil {
		return err
	}
	env := paypack.Environment(d.Cfg.Paypack.Environment)
	if !env.Valid() {
		return fmt.Errorf("unknown paypack environment %q", d.Cfg.Paypack.Environment)
	}
	provider, err := buildProvider(d)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	// Services and handlers
	products := d.Products
	if products == nil {
		if d.DB != nil {
			products = product.NewPostgresRepository(d.DB)
		} else {
			products = product.NewMemoryRepository()
		}
	}

	var locker settlement.Locker
	if d.Cache != nil {
		locker = settlement.NewRedisLocker(d.Cache, d.Cfg.Purchase.LockTTL, d.Logger)
	} else {
		locker = settlement.NewMemoryLocker()
	}

	var attempts settlement.AttemptRepository
	if d.DB != nil {
		attempts = settlement.NewPostgresAttempts(d.DB)
	} else {
		attempts = settlement.NewMemoryAttempts()
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.NATS != nil {
		notifier = notification.NewNATSNotifier(d.NATS)
	}

	settlementSvc, err := settlement.NewService(settlement.Deps{
		Products:    products,
		Gateway:     provider,
		Locker:      locker,
		Attempts:    attempts,
		Notifier:    notifier,
		Environment: env,
		Logger:      d.Logger,
		HoldTimeout: d.Cfg.Purchase.LockTTL,
	})
	if err != nil {
		return err
	}
	paymentHandler := payments.NewHandler(settlementSvc, provider, env)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Protected routes
	protected := api.Group("", middleware.Authenticate(verifier))
	RegisterPaymentRoutes(protected, paymentHandler, PaymentRouteOptions{
		Cache:          d.Cache,
		IdempotencyTTL: d.Cfg.IdempotencyTTL,
		RatePerMinute:  d.Cfg.Purchase.RatePerMinute,
		AdminRoutes:    d.Cfg.Paypack.AdminRoutes,
		Logger:         d.Logger,
	})

	return nil
}

func buildProvider(d Deps) (Provider, error) {
	if d.Provider != nil {
		return d.Provider, nil
	}
	client, err := paypack.New(paypack.Config{
		BaseURL:      d.Cfg.Paypack.BaseURL,
		ClientID:     d.Cfg.Paypack.ClientID,
		ClientSecret: d.Cfg.Paypack.ClientSecret,
		Timeout:      d.Cfg.Paypack.Timeout,
	}, paypack.WithLogger(d.Logger), paypack.WithMetrics(paypack.NewMetrics(d.Registry)))
	if err != nil {
		return nil, fmt.Errorf("build paypack client (set PAYPACK_CLIENT_ID and PAYPACK_CLIENT_SECRET): %w", err)
	}
	return client, nil
}
