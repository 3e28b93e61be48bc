package usecase

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/cardlens/backend/internal/domain"
)

// Default confidence thresholds over the additive match score.
const (
	defaultHighThreshold   = 60
	defaultMediumThreshold = 35
)

// Pacer spaces sequential upstream calls. Satisfied by *catalog.Pacer.
type Pacer interface {
	Wait(ctx context.Context) error
}

// ResolverConfig holds tunables for the match resolver.
type ResolverConfig struct {
	HighThreshold      int
	MediumThreshold    int
	EnableDebugLogging bool
}

// Resolver walks scored catalog candidates, fetches detail pricing until one
// has usable price data, tracks the best priceless candidate as a degraded
// fallback, and assigns a confidence tier to the final result.
type Resolver struct {
	client          domain.CatalogClient
	pacer           Pacer
	highThreshold   int
	mediumThreshold int
	debug           bool
}

// NewResolver creates a resolver. pacer may be nil when pacing between
// detail fetches is not wanted (tests).
func NewResolver(client domain.CatalogClient, pacer Pacer, cfg ResolverConfig) *Resolver {
	high := cfg.HighThreshold
	if high <= 0 {
		high = defaultHighThreshold
	}
	medium := cfg.MediumThreshold
	if medium <= 0 {
		medium = defaultMediumThreshold
	}
	if medium > high {
		medium = high
	}
	return &Resolver{
		client:          client,
		pacer:           pacer,
		highThreshold:   high,
		mediumThreshold: medium,
		debug:           cfg.EnableDebugLogging,
	}
}

// Resolve finds the catalog product matching the query and returns its
// normalized prices with a confidence tier. A nil result with a nil error
// means unresolved: an expected, common outcome for obscure or misidentified
// cards, never an error.
//
// Search-phase failures propagate to the caller; per-candidate detail
// failures are absorbed so a single bad candidate never aborts the walk.
func (r *Resolver) Resolve(ctx context.Context, q domain.CardQuery) (*domain.PriceResult, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, domain.ErrInvalidQuery
	}
	rules, err := domain.RulesForDomain(q.Domain)
	if err != nil {
		return nil, err
	}

	result, err := r.resolveOnce(ctx, q, rules, false)
	if err != nil {
		return nil, err
	}

	hasNumber := strings.TrimSpace(q.Number) != ""

	if result != nil {
		// A priceless identification may still be improved by the cascade,
		// but only in domains where the collector number is not
		// load-bearing.
		if !result.HasPrices() && hasNumber && rules.CascadeAfterPricelessBest {
			cascaded, cascadeErr := r.resolveCascade(ctx, q, rules)
			if cascadeErr != nil {
				// The priceless identification already in hand is still
				// worth returning.
				log.Printf("[RESOLVE] cascade after priceless best for %q failed: %v", q.Name, cascadeErr)
			} else if cascaded != nil && cascaded.HasPrices() {
				return cascaded, nil
			}
		}
		return result, nil
	}

	if hasNumber {
		cascaded, err := r.resolveCascade(ctx, q, rules)
		if err != nil {
			return nil, err
		}
		if cascaded != nil {
			return cascaded, nil
		}
	}

	return nil, nil
}

// resolveCascade repeats resolution once with the collector number dropped.
// Identification precision has been deliberately relaxed, so the confidence
// of anything it finds is capped at medium.
func (r *Resolver) resolveCascade(ctx context.Context, q domain.CardQuery, rules domain.Rules) (*domain.PriceResult, error) {
	degraded := q
	degraded.Number = ""
	r.debugLog("cascade: retrying %q without collector number", q.Name)
	return r.resolveOnce(ctx, degraded, rules, true)
}

func (r *Resolver) resolveOnce(ctx context.Context, q domain.CardQuery, rules domain.Rules, cascaded bool) (*domain.PriceResult, error) {
	query := BuildQuery(q, rules)
	candidates, err := r.client.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		r.debugLog("no candidates for %q", query)
		return nil, nil
	}

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if score, ok := ScoreCandidate(c, q, rules); ok {
			scored = append(scored, domain.ScoredCandidate{Product: c, Score: score})
		}
	}
	if len(scored) == 0 {
		r.debugLog("all %d candidates rejected for %q", len(candidates), query)
		return nil, nil
	}

	// Stable sort keeps catalog order on ties.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	var bestPriceless *domain.ScoredCandidate

	for i := range scored {
		c := scored[i]
		if r.pacer != nil {
			if err := r.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		detail, err := r.client.GetProduct(ctx, c.Product.ID)
		if err != nil {
			// One bad candidate must never abort the whole resolution; it is
			// downgraded to "no usable price" and the walk continues.
			log.Printf("[RESOLVE] detail fetch for %s (%q) failed, treating as priceless: %v", c.Product.ID, c.Product.ProductName, err)
			if bestPriceless == nil {
				bestPriceless = &c
			}
			continue
		}
		if detail == nil {
			r.debugLog("no detail for %s (%q)", c.Product.ID, c.Product.ProductName)
			if bestPriceless == nil {
				bestPriceless = &c
			}
			continue
		}

		raw, grades := detail.Prices()
		if raw == nil && grades == nil {
			// Usable identification but no pricing; candidates arrive in
			// descending score order, so the first of these is the best.
			if bestPriceless == nil {
				bestPriceless = &c
			}
			continue
		}

		isFallback := bestPriceless != nil && bestPriceless.Score > c.Score
		result := &domain.PriceResult{
			ProductID:   detail.ID,
			ProductName: detail.ProductName,
			ConsoleName: detail.ConsoleName,
			RawPrice:    raw,
			Grades:      grades,
			Score:       c.Score,
			IsFallback:  isFallback,
			UsedCascade: cascaded,
			UpdatedAt:   time.Now().UTC(),
		}
		if isFallback {
			result.ExactMatchName = bestPriceless.Product.ProductName
		}
		result.Confidence = r.confidenceFor(c.Score, isFallback, cascaded)
		r.debugLog("resolved %q -> %q score=%d confidence=%s fallback=%v", query, detail.ProductName, c.Score, result.Confidence, isFallback)
		return result, nil
	}

	if bestPriceless != nil {
		// We know what the card is, we just have no pricing for it.
		r.debugLog("best candidate %q has no pricing", bestPriceless.Product.ProductName)
		return &domain.PriceResult{
			ProductID:   bestPriceless.Product.ID,
			ProductName: bestPriceless.Product.ProductName,
			ConsoleName: bestPriceless.Product.ConsoleName,
			Score:       bestPriceless.Score,
			Confidence:  domain.ConfidenceLow,
			UsedCascade: cascaded,
			UpdatedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, nil
}

// confidenceFor derives the tier from score and fallback status. A fallback
// result is never high; a cascade result is capped at medium regardless of
// score.
func (r *Resolver) confidenceFor(score int, isFallback, cascaded bool) domain.Confidence {
	var conf domain.Confidence
	switch {
	case score >= r.highThreshold:
		conf = domain.ConfidenceHigh
	case score >= r.mediumThreshold:
		conf = domain.ConfidenceMedium
	default:
		conf = domain.ConfidenceLow
	}
	if (isFallback || cascaded) && conf == domain.ConfidenceHigh {
		conf = domain.ConfidenceMedium
	}
	return conf
}

func (r *Resolver) debugLog(format string, args ...interface{}) {
	if r.debug {
		log.Printf("[RESOLVE] "+format, args...)
	}
}
