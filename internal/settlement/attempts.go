package settlement

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	// AttemptSubmitted means the provider accepted the cash-in request. The
	// payer still has to confirm it on their phone.
	AttemptSubmitted = "submitted"
	// AttemptFailed means the provider call failed; see Failure for the kind.
	AttemptFailed = "failed"
)

// Attempt records one cash-in submission for a product. It is an audit trail,
// not a sold/unsold flag: the provider remains the system of record.
type Attempt struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	PayerID     string    `json:"payerId"`
	PayerNumber string    `json:"number"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	ProviderRef string    `json:"providerRef,omitempty"`
	Failure     string    `json:"failure,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AttemptRepository persists purchase attempts.
type AttemptRepository interface {
	Record(ctx context.Context, attempt Attempt) error
	ListByProduct(ctx context.Context, productID string) ([]Attempt, error)
}

type memoryAttempts struct {
	mu       sync.RWMutex
	attempts []Attempt
}

// NewMemoryAttempts creates a concurrency-safe in-memory attempt log.
func NewMemoryAttempts() AttemptRepository {
	return &memoryAttempts{}
}

func (m *memoryAttempts) Record(_ context.Context, attempt Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memoryAttempts) ListByProduct(_ context.Context, productID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
