package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartStore owns the single cart instance. Dispatches are serialized and
// every resulting state is published to subscribers in dispatch order.
// Every state handed out is a copy.
type CartStore struct {
	mu          sync.Mutex
	state       domain.CartState
	subscribers map[int]func(domain.CartState)
	nextSubID   int
}

func NewCartStore() *CartStore {
	return &CartStore{
		state:       domain.NewCartState(),
		subscribers: make(map[int]func(domain.CartState)),
	}
}

func (s *CartStore) AddToCart(p domain.Product) domain.CartState {
	return s.dispatch(func(st domain.CartState) domain.CartState {
		return st.AddToCart(p)
	})
}

func (s *CartStore) RemoveFromCart(id int64) domain.CartState {
	return s.dispatch(func(st domain.CartState) domain.CartState {
		return st.RemoveFromCart(id)
	})
}

// UpdateQuantity rejects quantities below 1 without touching the cart.
// Updating an id that is not in the cart is a no-op.
func (s *CartStore) UpdateQuantity(id int64, quantity int) (domain.CartState, error) {
	if quantity < 1 {
		return s.State(), ErrInvalidQuantity
	}
	return s.dispatch(func(st domain.CartState) domain.CartState {
		return st.UpdateQuantity(id, quantity)
	}), nil
}

func (s *CartStore) ClearCart() domain.CartState {
	return s.dispatch(func(st domain.CartState) domain.CartState {
		return st.ClearCart()
	})
}

func (s *CartStore) State() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// TotalCount is the cart badge value.
func (s *CartStore) TotalCount() int {
	return s.State().TotalCount
}

func (s *CartStore) TotalPrice() decimal.Decimal {
	return s.State().TotalPrice()
}

// Subscribe registers fn to receive every new state. fn runs while the store
// is locked and must not call back into it. The returned function removes
// the subscription.
func (s *CartStore) Subscribe(fn func(domain.CartState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *CartStore) dispatch(transition func(domain.CartState) domain.CartState) domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = transition(s.state)
	for _, fn := range s.subscribers {
		fn(s.state.Snapshot())
	}
	return s.state.Snapshot()
}
