package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSummary struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderReceipt struct {
	ID         string          `json:"id"`
	Items      []CartLineItem  `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	PlacedAt   time.Time       `json:"placed_at"`
}

func SummarizeCart(s CartState) OrderSummary {
	return OrderSummary{
		TotalItems: s.TotalCount,
		TotalPrice: s.TotalPrice(),
	}
}
