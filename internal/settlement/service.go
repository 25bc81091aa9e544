package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agura-market/agura_market/internal/apperr"
	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/logging"
	"github.com/agura-market/agura_market/internal/notification"
	"github.com/agura-market/agura_market/internal/paypack"
	"github.com/agura-market/agura_market/internal/product"
)

const (
	// StatusSubmitted is the only success status: the payer has been asked
	// to confirm, nothing is settled yet.
	StatusSubmitted = "submitted"

	submittedMessage = "payment request sent to your phone number, please confirm it."

	bookkeepingTimeout = 5 * time.Second
)

// Gateway is the part of the payment provider the coordinator drives.
type Gateway interface {
	CashIn(ctx context.Context, req paypack.CashInRequest) (paypack.Response, error)
}

// PurchaseInput is a buyer's request to pay for a product.
type PurchaseInput struct {
	ProductID   string
	PayerNumber string
	Identity    auth.Identity
}

// PurchaseResult describes a submitted cash-in.
type PurchaseResult struct {
	Status  string
	Message string
	Data    json.RawMessage
	Product product.Reference
}

// Deps groups the collaborators of a Service. Products and Gateway are required.
type Deps struct {
	Products    product.Repository
	Gateway     Gateway
	Locker      Locker
	Attempts    AttemptRepository
	Notifier    notification.Notifier
	Environment paypack.Environment
	Logger      *slog.Logger
	// HoldTimeout bounds the work done while the product lock is held. Set it
	// to the lock TTL so a slow call is cancelled before the lock can expire.
	HoldTimeout time.Duration
}

// Service turns a purchase request into a provider cash-in for the product's price.
type Service struct {
	products product.Repository
	gateway  Gateway
	locker   Locker
	attempts AttemptRepository
	notifier notification.Notifier
	env      paypack.Environment
	logger   *slog.Logger
	hold     time.Duration
	now      func() time.Time
}

// NewService constructs a coordinator. A nil Locker or Attempts falls back to
// the in-memory implementation.
func NewService(deps Deps) (*Service, error) {
	if deps.Products == nil || deps.Gateway == nil {
		return nil, errors.New("settlement: products and gateway are required")
	}
	if !deps.Environment.Valid() {
		return nil, fmt.Errorf("settlement: unknown environment %q", deps.Environment)
	}
	s := &Service{
		products: deps.Products,
		gateway:  deps.Gateway,
		locker:   deps.Locker,
		attempts: deps.Attempts,
		notifier: deps.Notifier,
		env:      deps.Environment,
		logger:   deps.Logger,
		hold:     deps.HoldTimeout,
		now:      time.Now,
	}
	if s.locker == nil {
		s.locker = NewMemoryLocker()
	}
	if s.attempts == nil {
		s.attempts = NewMemoryAttempts()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s, nil
}

// InitiatePurchase asks the payer's phone to approve a cash-in for the
// product's stored price. The product is not marked sold.
func (s *Service) InitiatePurchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if in.Identity.IsZero() {
		return PurchaseResult{}, fmt.Errorf("purchase without identity: %w", apperr.ErrPreconditionFailed)
	}
	number := strings.TrimSpace(in.PayerNumber)
	if number == "" {
		return PurchaseResult{}, fmt.Errorf("number is required: %w", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return PurchaseResult{}, fmt.Errorf("product id is required: %w", apperr.ErrInvalidInput)
	}

	ref, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if ref.Price <= 0 {
		return PurchaseResult{}, fmt.Errorf("product %s has no payable price: %w", ref.ID, apperr.ErrInvalidInput)
	}

	// The deadline starts before the lock so it always ends before the lock expires.
	holdCtx := ctx
	if s.hold > 0 {
		var cancel context.CancelFunc
		holdCtx, cancel = context.WithTimeout(ctx, s.hold)
		defer cancel()
	}
	release, err := s.locker.Acquire(holdCtx, ref.ID)
	if err != nil {
		return PurchaseResult{}, err
	}
	defer release()

	attempt := Attempt{
		ID:          uuid.NewString(),
		ProductID:   ref.ID,
		PayerID:     in.Identity.Subject,
		PayerNumber: number,
		Amount:      ref.Price,
		CreatedAt:   s.now().UTC(),
	}

	resp, err := s.gateway.CashIn(holdCtx, paypack.CashInRequest{
		Number:      number,
		Amount:      ref.Price,
		Environment: s.env,
	})
	if err != nil {
		attempt.Status = AttemptFailed
		attempt.Failure = failureKind(err)
		s.record(ctx, attempt)
		return PurchaseResult{}, fmt.Errorf("cash in for product %s: %w", ref.ID, err)
	}

	attempt.Status = AttemptSubmitted
	attempt.ProviderRef = resp.Transaction().Ref
	s.record(ctx, attempt)
	s.notifyOwner(ctx, ref, attempt)

	return PurchaseResult{
		Status:  StatusSubmitted,
		Message: submittedMessage,
		Data:    resp.Data,
		Product: ref,
	}, nil
}

// Attempts lists recorded cash-in attempts for a product, newest first.
func (s *Service) Attempts(ctx context.Context, productID string) ([]Attempt, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("product id is required: %w", apperr.ErrInvalidInput)
	}
	return s.attempts.ListByProduct(ctx, productID)
}

func (s *Service) record(ctx context.Context, attempt Attempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()
	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("record purchase attempt failed",
			slog.String("product_id", attempt.ProductID),
			slog.String("status", attempt.Status),
			slog.Any("error", err))
	}
}

func (s *Service) notifyOwner(ctx context.Context, ref product.Reference, attempt Attempt) {
	if s.notifier == nil || ref.OwnerID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()
	msg := notification.Message{
		Kind:        notification.KindPurchaseSubmitted,
		Destination: ref.OwnerID,
		Body:        fmt.Sprintf("A buyer was asked to confirm a payment of %d for product %s", attempt.Amount, ref.ID),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notify product owner failed", slog.String("product_id", ref.ID), slog.Any("error", err))
	}
}

func failureKind(err error) string {
	switch {
	case paypack.IsRejected(err):
		return "rejected"
	case paypack.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
