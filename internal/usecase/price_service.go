package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/domain"
)

// Package-level compiled regex patterns for cache-key normalization.
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// PriceServiceConfig holds configuration for the price service.
type PriceServiceConfig struct {
	CacheTTL time.Duration
}

// PriceService is the caller-facing entry point: resolve a card query to a
// normalized price result (with caching), and estimate values for target
// grades. Route handlers own persistence and HTTP status mapping.
type PriceService struct {
	cache    domain.CacheRepository
	resolver *Resolver
	cacheTTL time.Duration
}

// NewPriceService creates a price service with dependencies.
func NewPriceService(cache domain.CacheRepository, resolver *Resolver, config PriceServiceConfig) *PriceService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 12 * time.Hour
	}
	return &PriceService{
		cache:    cache,
		resolver: resolver,
		cacheTTL: cacheTTL,
	}
}

// ResolvePrice looks up pricing for a card query.
// Flow: check cache -> resolve against catalog -> cache confident results.
// A nil result with nil error means pricing is unavailable for this card.
func (s *PriceService) ResolvePrice(ctx context.Context, q domain.CardQuery) (*domain.PriceResult, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, domain.ErrInvalidQuery
	}

	key := s.cacheKey(q)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	result, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}

	// Only confidently-priced, non-degraded results are worth caching;
	// fallback and cascade results should be re-attempted next time.
	if s.cache != nil && result != nil && result.HasPrices() && !result.IsFallback && !result.UsedCascade {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			log.Printf("[PRICE] cache store failed for %s: %v", key, err)
		}
	}

	return result, nil
}

// EstimateValue derives a dollar estimate for a target condition grade.
func (s *PriceService) EstimateValue(result *domain.PriceResult, grade float64) *float64 {
	return Estimate(result, grade)
}

// cacheKey builds a normalized cache key from the query.
// Format: "price:{domain}:{name}:{set}:{number}:{year}:{variant}"
func (s *PriceService) cacheKey(q domain.CardQuery) string {
	rules, err := domain.RulesForDomain(q.Domain)
	variant := q.Variant
	if err == nil {
		variant = rules.CanonicalVariant(q)
	}
	return fmt.Sprintf("price:%s:%s:%s:%s:%s:%s",
		normalizeForCacheKey(q.Domain),
		normalizeForCacheKey(q.Name),
		normalizeForCacheKey(q.Set),
		CleanNumber(q.Number),
		normalizeForCacheKey(q.Year),
		normalizeForCacheKey(variant),
	)
}

// normalizeForCacheKey lowercases, strips special characters, and collapses
// whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
