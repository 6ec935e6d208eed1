package domain

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

// GenerateCatalog builds the synthetic product catalog. The same size and
// seed always produce the same products.
func GenerateCatalog(size int, seed uint64) []Product {
	if size < 0 {
		size = 0
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	products := make([]Product, 0, size)
	for i := 1; i <= size; i++ {
		cents := 1000 + rng.Int64N(10000) // [10.00, 110.00)
		products = append(products, Product{
			ID:          int64(i),
			Title:       fmt.Sprintf("Product %d", i),
			Price:       decimal.New(cents, -2),
			Description: fmt.Sprintf("This is a description for product %d", i),
		})
	}
	return products
}
