package domain

import "github.com/shopspring/decimal"

type CartLineItem struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CartState is an immutable cart value. Every transition returns a new state
// and keeps TotalCount equal to the sum of line item quantities.
type CartState struct {
	Items      []CartLineItem `json:"items"`
	TotalCount int            `json:"total_count"`
}

func NewCartState() CartState {
	return CartState{Items: []CartLineItem{}}
}

// AddToCart increments the line item for p, appending a new one with
// quantity 1 when p is not in the cart yet.
func (s CartState) AddToCart(p Product) CartState {
	next := s.clone()
	if i := next.indexOf(p.ID); i >= 0 {
		next.Items[i].Quantity++
	} else {
		next.Items = append(next.Items, CartLineItem{
			ID:       p.ID,
			Title:    p.Title,
			Price:    p.Price,
			Quantity: 1,
		})
	}
	next.TotalCount++
	return next
}

func (s CartState) RemoveFromCart(id int64) CartState {
	i := s.indexOf(id)
	if i < 0 {
		return s
	}
	next := s.clone()
	next.TotalCount -= next.Items[i].Quantity
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	return next
}

// UpdateQuantity sets the quantity of an existing line item. Quantities
// below 1 leave the state unchanged; dropping an item goes through
// RemoveFromCart.
func (s CartState) UpdateQuantity(id int64, quantity int) CartState {
	i := s.indexOf(id)
	if i < 0 || quantity < 1 {
		return s
	}
	next := s.clone()
	next.TotalCount += quantity - next.Items[i].Quantity
	next.Items[i].Quantity = quantity
	return next
}

func (s CartState) ClearCart() CartState {
	return NewCartState()
}

func (s CartState) Contains(id int64) bool {
	return s.indexOf(id) >= 0
}

func (s CartState) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (s CartState) indexOf(id int64) int {
	for i, item := range s.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a copy that shares no memory with s.
func (s CartState) Snapshot() CartState {
	return s.clone()
}

func (s CartState) clone() CartState {
	items := make([]CartLineItem, len(s.Items))
	copy(items, s.Items)
	return CartState{Items: items, TotalCount: s.TotalCount}
}
