package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cardlens/backend/internal/domain"
)

// fakeCatalog implements domain.CatalogClient. Search responses are consumed
// in call order so cascade retries can be scripted.
type fakeCatalog struct {
	searches    [][]domain.CatalogProduct
	searchErr   error
	searchErrs  []error // consumed in call order, ahead of searchErr
	details     map[string]*domain.CatalogProduct
	detailErrs  map[string]error
	queries     []string
	detailCalls []string
}

func (f *fakeCatalog) SearchProducts(_ context.Context, query string) ([]domain.CatalogProduct, error) {
	f.queries = append(f.queries, query)
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.searches) == 0 {
		return nil, nil
	}
	result := f.searches[0]
	f.searches = f.searches[1:]
	return result, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.CatalogProduct, error) {
	f.detailCalls = append(f.detailCalls, id)
	if err, ok := f.detailErrs[id]; ok {
		return nil, err
	}
	return f.details[id], nil
}

func newTestResolver(client domain.CatalogClient) *Resolver {
	return NewResolver(client, nil, ResolverConfig{})
}

func TestResolve_HighConfidenceMatch(t *testing.T) {
	holo := domain.CatalogProduct{ID: "6910", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{{holo}},
		details: map[string]*domain.CatalogProduct{
			"6910": {ID: "6910", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set", LoosePrice: 24000, GradedPrice: 48000},
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain:  "pokemon",
		Name:    "Charizard",
		Set:     "Base Set",
		Number:  "4",
		Variant: "holo",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want match")
	}
	if result.Confidence != domain.ConfidenceHigh {
		t.Errorf("Confidence = %s, want high (score %d)", result.Confidence, result.Score)
	}
	if result.RawPrice == nil || *result.RawPrice != 240.0 {
		t.Errorf("RawPrice = %v, want 240", result.RawPrice)
	}
	if result.Grades[domain.AuthorityPSA]["9"] != 480.0 {
		t.Errorf("PSA 9 = %v, want 480", result.Grades[domain.AuthorityPSA]["9"])
	}
	if result.IsFallback || result.UsedCascade {
		t.Errorf("IsFallback = %v, UsedCascade = %v, want false for a direct match", result.IsFallback, result.UsedCascade)
	}
}

func TestResolve_FallbackToLowerScoredPricedCandidate(t *testing.T) {
	holo := domain.CatalogProduct{ID: "1", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set"}
	plain := domain.CatalogProduct{ID: "2", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{{holo, plain}},
		details: map[string]*domain.CatalogProduct{
			"1": {ID: "1", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set"}, // no prices
			"2": {ID: "2", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set", LoosePrice: 24000},
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain:  "pokemon",
		Name:    "Charizard",
		Set:     "Base Set",
		Number:  "4",
		Variant: "holo",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want fallback match")
	}
	if !result.IsFallback {
		t.Error("IsFallback = false, want true")
	}
	if result.ExactMatchName != "Charizard #4 [Holofoil]" {
		t.Errorf("ExactMatchName = %q, want the passed-over candidate", result.ExactMatchName)
	}
	if result.ProductID != "2" {
		t.Errorf("ProductID = %s, want 2", result.ProductID)
	}
	if result.Confidence == domain.ConfidenceHigh {
		t.Error("Confidence = high, want capped for a fallback result")
	}
	if !result.HasPrices() {
		t.Error("fallback result should carry prices")
	}
}

func TestResolve_CascadeWithoutNumber(t *testing.T) {
	holo := domain.CatalogProduct{ID: "1", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{
			{},     // primary query with the bogus number finds nothing
			{holo}, // degraded query succeeds
		},
		details: map[string]*domain.CatalogProduct{
			"1": {ID: "1", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set", LoosePrice: 24000},
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain:  "pokemon",
		Name:    "Charizard",
		Set:     "Base Set",
		Number:  "999",
		Variant: "holo",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want cascade match")
	}
	if !result.UsedCascade {
		t.Error("UsedCascade = false, want true")
	}
	if result.Confidence == domain.ConfidenceHigh {
		t.Error("Confidence = high, want capped for a cascade result")
	}

	if len(client.queries) != 2 {
		t.Fatalf("search calls = %d, want 2", len(client.queries))
	}
	if !strings.Contains(client.queries[0], "#999") {
		t.Errorf("primary query %q should carry the number", client.queries[0])
	}
	if strings.Contains(client.queries[1], "#999") {
		t.Errorf("cascade query %q should drop the number", client.queries[1])
	}
}

func TestResolve_CascadeErrorKeepsPricelessBest(t *testing.T) {
	promo := domain.CatalogProduct{ID: "7", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{{promo}},
		searchErrs: []error{
			nil, // primary search succeeds, finds only a priceless candidate
			&domain.CatalogError{Message: "upstream timeout", Timeout: true, Retryable: true},
		},
		details: map[string]*domain.CatalogProduct{
			"7": {ID: "7", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}, // no prices
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain: "pokemon",
		Name:   "Charizard",
		Number: "4",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want the cascade failure absorbed", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want the priceless identification")
	}
	if result.HasPrices() {
		t.Error("result should carry no prices")
	}
	if result.Confidence != domain.ConfidenceLow {
		t.Errorf("Confidence = %s, want low", result.Confidence)
	}
	if len(client.queries) != 2 {
		t.Errorf("search calls = %d, want the cascade retry attempted", len(client.queries))
	}
}

func TestResolve_PricelessBestIsLowConfidence(t *testing.T) {
	promo := domain.CatalogProduct{ID: "7", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{{promo}},
		details: map[string]*domain.CatalogProduct{
			"7": {ID: "7", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}, // no prices
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain: "pokemon",
		Name:   "Charizard",
		Number: "4",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want identified-but-priceless result")
	}
	if result.Confidence != domain.ConfidenceLow {
		t.Errorf("Confidence = %s, want low", result.Confidence)
	}
	if result.HasPrices() {
		t.Error("priceless result should carry no prices")
	}
	if result.ProductName != "Charizard #4" {
		t.Errorf("ProductName = %q, want Charizard #4", result.ProductName)
	}
}

func TestResolve_DetailErrorDowngradesCandidate(t *testing.T) {
	first := domain.CatalogProduct{ID: "1", ProductName: "Charizard #4 [Holofoil]", ConsoleName: "Pokemon Base Set"}
	second := domain.CatalogProduct{ID: "2", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set"}
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{{first, second}},
		details: map[string]*domain.CatalogProduct{
			"2": {ID: "2", ProductName: "Charizard #4", ConsoleName: "Pokemon Base Set", LoosePrice: 24000},
		},
		detailErrs: map[string]error{
			"1": &domain.CatalogError{Message: "upstream transient failure", Status: 503, Retryable: true},
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain:  "pokemon",
		Name:    "Charizard",
		Number:  "4",
		Variant: "holo",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil: one bad candidate must not abort the walk", err)
	}
	if result == nil {
		t.Fatal("Resolve() result = nil, want next candidate")
	}
	if result.ProductID != "2" {
		t.Errorf("ProductID = %s, want 2", result.ProductID)
	}
	// The errored candidate out-scored the chosen one, so it counts as a
	// passed-over priceless best.
	if !result.IsFallback {
		t.Error("IsFallback = false, want true")
	}
	if result.ExactMatchName != "Charizard #4 [Holofoil]" {
		t.Errorf("ExactMatchName = %q, want the errored higher-scoring candidate", result.ExactMatchName)
	}
}

func TestResolve_SearchErrorPropagates(t *testing.T) {
	client := &fakeCatalog{
		searchErr: &domain.CatalogError{Message: "blocked by anti-bot challenge (status 403)", Status: 403, Blocked: true},
	}

	_, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain: "pokemon",
		Name:   "Charizard",
	})

	if err == nil {
		t.Fatal("Resolve() error = nil, want search failure to propagate")
	}
	var catErr *domain.CatalogError
	if !errors.As(err, &catErr) || !catErr.Blocked {
		t.Errorf("error = %v, want the catalog error unchanged", err)
	}
}

func TestResolve_UnresolvedIsNilNil(t *testing.T) {
	client := &fakeCatalog{}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain: "pokemon",
		Name:   "Zzyzx Placeholder",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil: unresolved is not an error", err)
	}
	if result != nil {
		t.Errorf("Resolve() result = %+v, want nil", result)
	}
}

func TestResolve_AllCandidatesRejected(t *testing.T) {
	client := &fakeCatalog{
		searches: [][]domain.CatalogProduct{
			{{ID: "1", ProductName: "Blastoise #2", ConsoleName: "Pokemon Base Set"}},
		},
	}

	result, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{
		Domain: "pokemon",
		Name:   "Charizard",
	})

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if result != nil {
		t.Errorf("Resolve() result = %+v, want nil", result)
	}
	if len(client.detailCalls) != 0 {
		t.Errorf("detail calls = %v, want none for rejected candidates", client.detailCalls)
	}
}

func TestResolve_EmptyNameIsInvalid(t *testing.T) {
	client := &fakeCatalog{}

	_, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{Domain: "pokemon"})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestResolve_UnknownDomain(t *testing.T) {
	client := &fakeCatalog{}

	_, err := newTestResolver(client).Resolve(context.Background(), domain.CardQuery{Domain: "beanie-babies", Name: "Charizard"})
	if !errors.Is(err, domain.ErrUnknownDomain) {
		t.Errorf("error = %v, want ErrUnknownDomain", err)
	}
}

func TestConfidenceFor(t *testing.T) {
	r := newTestResolver(&fakeCatalog{})

	tests := []struct {
		name       string
		score      int
		isFallback bool
		cascaded   bool
		want       domain.Confidence
	}{
		{"high score", 80, false, false, domain.ConfidenceHigh},
		{"medium score", 45, false, false, domain.ConfidenceMedium},
		{"low score", 10, false, false, domain.ConfidenceLow},
		{"threshold boundary high", 60, false, false, domain.ConfidenceHigh},
		{"threshold boundary medium", 35, false, false, domain.ConfidenceMedium},
		{"fallback caps high at medium", 90, true, false, domain.ConfidenceMedium},
		{"cascade caps high at medium", 90, false, true, domain.ConfidenceMedium},
		{"fallback leaves low alone", 10, true, false, domain.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.confidenceFor(tt.score, tt.isFallback, tt.cascaded)
			if got != tt.want {
				t.Errorf("confidenceFor(%d, %v, %v) = %s, want %s", tt.score, tt.isFallback, tt.cascaded, got, tt.want)
			}
		})
	}
}
