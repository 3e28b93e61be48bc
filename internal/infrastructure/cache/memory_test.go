package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardlens/backend/internal/domain"
)

func sampleResult() *domain.PriceResult {
	raw := 240.0
	return &domain.PriceResult{
		ProductID:   "6910",
		ProductName: "Charizard #4",
		ConsoleName: "Pokemon Base Set",
		RawPrice:    &raw,
		Grades: map[string]map[string]float64{
			domain.AuthorityPSA: {"9": 480, "10": 1500},
		},
		Score:      100,
		Confidence: domain.ConfidenceHigh,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "price:pokemon:charizard", sampleResult(), time.Minute); err != nil {
		t.Fatalf("Set() error = %v, want nil", err)
	}

	got, err := cache.Get(ctx, "price:pokemon:charizard")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got.ProductID != "6910" {
		t.Errorf("ProductID = %s, want 6910", got.ProductID)
	}
	if got.RawPrice == nil || *got.RawPrice != 240.0 {
		t.Errorf("RawPrice = %v, want 240", got.RawPrice)
	}
	if got.Grades[domain.AuthorityPSA]["9"] != 480.0 {
		t.Errorf("PSA 9 = %v, want 480", got.Grades[domain.AuthorityPSA]["9"])
	}
}

func TestMemoryCache_GetMissing(t *testing.T) {
	cache := NewMemoryCache()

	_, err := cache.Get(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "short-lived", sampleResult(), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	_, err := cache.Get(ctx, "short-lived")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}

	exists, err := cache.Exists(ctx, "short-lived")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true, want false after expiry")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Set(ctx, "to-delete", sampleResult(), time.Minute)
	if err := cache.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := cache.Get(ctx, "to-delete")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	exists, _ := cache.Exists(ctx, "missing")
	if exists {
		t.Error("Exists() = true for missing key")
	}

	cache.Set(ctx, "present", sampleResult(), time.Minute)
	exists, _ = cache.Exists(ctx, "present")
	if !exists {
		t.Error("Exists() = false for present key")
	}
}

func TestMemoryCache_CallerCannotMutateCachedResult(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	original := sampleResult()
	cache.Set(ctx, "immutable", original, time.Minute)

	// Mutating what the caller handed in must not reach the cache.
	*original.RawPrice = 1
	original.Grades[domain.AuthorityPSA]["9"] = 1

	first, err := cache.Get(ctx, "immutable")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *first.RawPrice != 240.0 || first.Grades[domain.AuthorityPSA]["9"] != 480.0 {
		t.Error("cached result was mutated through the caller's value")
	}

	// Mutating what Get returned must not reach the cache either.
	*first.RawPrice = 2
	first.Grades[domain.AuthorityPSA]["9"] = 2

	second, err := cache.Get(ctx, "immutable")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *second.RawPrice != 240.0 || second.Grades[domain.AuthorityPSA]["9"] != 480.0 {
		t.Error("cached result was mutated through a returned value")
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.Set(ctx, "a", sampleResult(), time.Minute)
	cache.Set(ctx, "b", sampleResult(), time.Minute)

	if size := cache.Size(); size != 2 {
		t.Errorf("Size() = %d, want 2", size)
	}

	cache.Clear()
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() after Clear = %d, want 0", size)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				cache.Set(ctx, "shared", sampleResult(), time.Minute)
				cache.Get(ctx, "shared")
				cache.Exists(ctx, "shared")
			}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
