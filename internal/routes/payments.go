package routes

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/middleware"
	"github.com/agura-market/agura_market/internal/payments"
)

// PaymentRouteOptions tunes the purchase guards and admin exposure.
type PaymentRouteOptions struct {
	Cache          *redis.Client
	IdempotencyTTL time.Duration
	RatePerMinute  int
	AdminRoutes    bool
	Logger         *slog.Logger
}

// RegisterPaymentRoutes wires mobile-money endpoints onto an authenticated router.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, opts PaymentRouteOptions) {
	momo := r.Group("/momo")

	// Replays are answered before the limiter so they never use up quota.
	var pay []fiber.Handler
	if opts.Cache != nil {
		pay = append(pay, middleware.Idempotency(opts.Cache, opts.IdempotencyTTL, opts.Logger))
	}
	pay = append(pay, middleware.PurchaseRateLimit(opts.Cache, opts.RatePerMinute), h.Pay)
	momo.Post("/pay/:productId", pay...)

	admin := middleware.RequireRole(auth.RoleAdmin)
	momo.Get("/purchases/:productId", admin, h.Purchases)

	// Merchant operations move or reveal the marketplace's own money.
	if !opts.AdminRoutes {
		return
	}
	momo.Post("/withdraw", admin, h.Withdraw)
	momo.Get("/transactions", admin, h.Transactions)
	momo.Get("/events", admin, h.Events)
	momo.Get("/account", admin, h.Account)
}
