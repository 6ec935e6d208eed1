package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const receiptKeyPrefix = "receipt:"

type CheckoutService struct {
	cart         *CartStore
	store        port.KeyValueStore
	receiptQueue chan domain.OrderReceipt

	// mu guards closed; senders hold it shared so Close waits for them.
	mu     sync.RWMutex
	closed bool
}

func NewCheckoutService(cart *CartStore, store port.KeyValueStore, queueSize int) *CheckoutService {
	return &CheckoutService{
		cart:         cart,
		store:        store,
		receiptQueue: make(chan domain.OrderReceipt, queueSize),
	}
}

func (s *CheckoutService) Summary() domain.OrderSummary {
	return domain.SummarizeCart(s.cart.State())
}

// Confirm places an order for the current cart contents and queues its
// receipt for persistence. The cart itself is left untouched.
func (s *CheckoutService) Confirm(ctx context.Context) (domain.OrderReceipt, error) {
	ctx, span := otel.Tracer("github.com/rl1809/storefront/internal/core/service").Start(ctx, "CheckoutService.Confirm")
	defer span.End()

	state := s.cart.State()
	if len(state.Items) == 0 {
		return domain.OrderReceipt{}, ErrEmptyCart
	}

	summary := domain.SummarizeCart(state)
	receipt := domain.OrderReceipt{
		ID:         uuid.NewString(),
		Items:      state.Items,
		TotalItems: summary.TotalItems,
		TotalPrice: summary.TotalPrice,
		PlacedAt:   time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("order.id", receipt.ID),
		attribute.Int("order.total_items", receipt.TotalItems),
	)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.OrderReceipt{}, ErrCheckoutClosed
	}

	select {
	case s.receiptQueue <- receipt:
	case <-ctx.Done():
		return domain.OrderReceipt{}, ctx.Err()
	}
	return receipt, nil
}

func (s *CheckoutService) SaveReceipt(ctx context.Context, receipt domain.OrderReceipt) error {
	blob, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	if err := s.store.Set(ctx, receiptKeyPrefix+receipt.ID, blob); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

func (s *CheckoutService) Receipt(ctx context.Context, id string) (domain.OrderReceipt, error) {
	blob, err := s.store.Get(ctx, receiptKeyPrefix+id)
	if errors.Is(err, port.ErrKeyNotFound) {
		return domain.OrderReceipt{}, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("read receipt: %w", err)
	}

	var receipt domain.OrderReceipt
	if err := json.Unmarshal(blob, &receipt); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return receipt, nil
}

func (s *CheckoutService) GetReceiptQueue() <-chan domain.OrderReceipt {
	return s.receiptQueue
}

// Close stops accepting orders and closes the receipt queue. Later Confirm
// calls fail with ErrCheckoutClosed. Close is idempotent.
func (s *CheckoutService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.receiptQueue)
}
