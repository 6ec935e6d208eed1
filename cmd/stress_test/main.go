package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	catalogSize   = 100
	catalogSeed   = 42
	totalRequests = 5000
	setQuantity   = 3
	queueSize     = 10
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	store := storage.NewRedisAdapter(rdb)
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	catalog := domain.GenerateCatalog(catalogSize, catalogSeed)
	cart := service.NewCartStore()
	checkout := service.NewCheckoutService(cart, store, queueSize)

	var notifications atomic.Int64
	unsubscribe := cart.Subscribe(func(domain.CartState) { notifications.Add(1) })

	// Phase 1: concurrent adds
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cart.AddToCart(catalog[n%catalogSize])
		}(i)
	}
	wg.Wait()
	addState := cart.State()

	// Phase 2: concurrent quantity updates, interleaved with invalid ones
	var rejected atomic.Int32
	for _, p := range catalog {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			if _, err := cart.UpdateQuantity(id, setQuantity); err != nil {
				log.Printf("update %d: %v", id, err)
			}
		}(p.ID)
		go func(id int64) {
			defer wg.Done()
			if _, err := cart.UpdateQuantity(id, 0); err != nil {
				rejected.Add(1)
			}
		}(p.ID)
	}
	wg.Wait()
	elapsed := time.Since(start)
	unsubscribe()

	final := cart.State()

	// Persist a receipt through the queue
	receipt, err := checkout.Confirm(ctx)
	if err != nil {
		log.Fatalf("checkout failed: %v", err)
	}
	queued := <-checkout.GetReceiptQueue()
	if err := checkout.SaveReceipt(ctx, queued); err != nil {
		log.Fatalf("save receipt failed: %v", err)
	}
	checkout.Close()
	stored, err := checkout.Receipt(ctx, receipt.ID)
	if err != nil {
		log.Fatalf("read receipt failed: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Catalog Size:     %d\n", catalogSize)
	fmt.Printf("Add Requests:     %d\n", totalRequests)
	fmt.Printf("Line Items:       %d\n", len(final.Items))
	fmt.Printf("Total Count:      %d\n", final.TotalCount)
	fmt.Printf("Rejected Updates: %d\n", rejected.Load())
	fmt.Printf("Notifications:    %d\n", notifications.Load())
	fmt.Printf("Total Price:      %s\n", final.TotalPrice().StringFixed(2))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	check(addState.TotalCount == totalRequests,
		fmt.Sprintf("count after adds is %d", totalRequests),
		fmt.Sprintf("expected %d after adds, got %d", totalRequests, addState.TotalCount))

	check(sumQuantities(addState) == addState.TotalCount && sumQuantities(final) == final.TotalCount,
		"total count matches sum of quantities",
		fmt.Sprintf("count drift: adds %d/%d, final %d/%d",
			addState.TotalCount, sumQuantities(addState), final.TotalCount, sumQuantities(final)))

	check(len(final.Items) == catalogSize && final.TotalCount == catalogSize*setQuantity,
		fmt.Sprintf("every line item settled at quantity %d", setQuantity),
		fmt.Sprintf("expected %d items totalling %d, got %d totalling %d",
			catalogSize, catalogSize*setQuantity, len(final.Items), final.TotalCount))

	check(rejected.Load() == catalogSize,
		"all zero-quantity updates rejected",
		fmt.Sprintf("expected %d rejected updates, got %d", catalogSize, rejected.Load()))

	check(notifications.Load() == int64(totalRequests+catalogSize),
		"one notification per applied transition",
		fmt.Sprintf("expected %d notifications, got %d", totalRequests+catalogSize, notifications.Load()))

	check(stored.TotalItems == final.TotalCount && stored.TotalPrice.Equal(final.TotalPrice()),
		"receipt persisted to redis",
		fmt.Sprintf("receipt mismatch: %d items / %s", stored.TotalItems, stored.TotalPrice))
}

func sumQuantities(s domain.CartState) int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

func check(ok bool, pass, fail string) {
	if ok {
		fmt.Println("PASS: " + pass)
	} else {
		fmt.Println("FAIL: " + fail)
	}
}
