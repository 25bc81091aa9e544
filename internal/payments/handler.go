package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agura-market/agura_market/internal/apperr"
	"github.com/agura-market/agura_market/internal/middleware"
	"github.com/agura-market/agura_market/internal/paypack"
	"github.com/agura-market/agura_market/internal/settlement"
)

// Purchaser starts buyer payments and lists what was attempted.
type Purchaser interface {
	InitiatePurchase(ctx context.Context, in settlement.PurchaseInput) (settlement.PurchaseResult, error)
	Attempts(ctx context.Context, productID string) ([]settlement.Attempt, error)
}

// Merchant is the operator-facing side of the payment provider.
type Merchant interface {
	CashOut(ctx context.Context, req paypack.CashOutRequest) (paypack.Response, error)
	Transactions(ctx context.Context, page paypack.Page) (paypack.Response, error)
	Events(ctx context.Context, page paypack.Page) (paypack.Response, error)
	Me(ctx context.Context) (paypack.Response, error)
}

// Handler exposes the mobile-money endpoints.
type Handler struct {
	purchases Purchaser
	merchant  Merchant
	env       paypack.Environment
}

// NewHandler constructs a payment handler. env is used for withdrawals.
func NewHandler(purchases Purchaser, merchant Merchant, env paypack.Environment) *Handler {
	return &Handler{purchases: purchases, merchant: merchant, env: env}
}

// payRequest carries the payer's phone number. Any amount a client sends is
// ignored; the product price is authoritative.
type payRequest struct {
	Number string `json:"number"`
}

type withdrawRequest struct {
	Number string `json:"number"`
	Amount int64  `json:"amount"`
}

// Pay asks the buyer's phone to approve payment for a product.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("decode body: %w", apperr.ErrInvalidInput)
	}

	res, err := h.purchases.InitiatePurchase(c.UserContext(), settlement.PurchaseInput{
		ProductID:   c.Params("productId"),
		PayerNumber: req.Number,
		Identity:    middleware.Identity(c),
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  res.Status,
		"message": res.Message,
		"data":    res.Data,
		"product": res.Product,
	})
}

// Withdraw pushes funds from the merchant account to a phone number.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("decode body: %w", apperr.ErrInvalidInput)
	}

	res, err := h.merchant.CashOut(c.UserContext(), paypack.CashOutRequest{
		Number:      req.Number,
		Amount:      req.Amount,
		Environment: h.env,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "withdrawn successful", "data": res.Data})
}

// Transactions lists provider transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	res, err := h.merchant.Transactions(c.UserContext(), pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "successful transactions", "data": res.Data})
}

// Events lists provider transaction events.
func (h *Handler) Events(c *fiber.Ctx) error {
	res, err := h.merchant.Events(c.UserContext(), pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "successful events", "data": res.Data})
}

// Account returns the merchant profile held by the provider.
func (h *Handler) Account(c *fiber.Ctx) error {
	res, err := h.merchant.Me(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "successful account info", "data": res.Data})
}

// Purchases lists recorded purchase attempts for a product.
func (h *Handler) Purchases(c *fiber.Ctx) error {
	attempts, err := h.purchases.Attempts(c.UserContext(), c.Params("productId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "successful purchases", "data": attempts})
}

func pageFrom(c *fiber.Ctx) paypack.Page {
	return paypack.Page{
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", paypack.DefaultLimit),
	}.Normalize()
}
