package domain

import "time"

// CardQuery is the attribute record produced by the upstream vision step.
// Fields other than Name are optional; the boolean flags are shorthands for
// the most common variant tags and are ignored when Variant is set.
type CardQuery struct {
	Domain         string `json:"domain"`
	Name           string `json:"name"`
	Set            string `json:"set,omitempty"`
	Number         string `json:"number,omitempty"` // may carry a "#" prefix or "/total" suffix
	Year           string `json:"year,omitempty"`
	Variant        string `json:"variant,omitempty"`
	IsFoil         bool   `json:"isFoil,omitempty"`
	IsFirstEdition bool   `json:"isFirstEdition,omitempty"`
	IsReverseHolo  bool   `json:"isReverseHolo,omitempty"`
}

// CatalogProduct is one row returned by catalog search. Price fields are in
// integer pennies; a product with every price field at zero is still a valid
// candidate, it just cannot satisfy a priced resolution.
type CatalogProduct struct {
	ID          string `json:"id"`
	ProductName string `json:"productName"`
	ConsoleName string `json:"consoleName"` // catalog category label, used as the set identifier

	LoosePrice       int `json:"loosePrice,omitempty"`
	GradedPrice      int `json:"gradedPrice,omitempty"`      // PSA 9
	ManualOnlyPrice  int `json:"manualOnlyPrice,omitempty"`  // PSA 10
	BoxOnlyPrice     int `json:"boxOnlyPrice,omitempty"`     // BGS 9.5
	BGS10Price       int `json:"bgs10Price,omitempty"`       // BGS 10
	Condition17Price int `json:"condition17Price,omitempty"` // CGC 10
	Condition18Price int `json:"condition18Price,omitempty"` // SGC 10
}

// HasPrices reports whether the product carries any usable price field.
func (p CatalogProduct) HasPrices() bool {
	return p.LoosePrice > 0 || p.GradedPrice > 0 || p.ManualOnlyPrice > 0 ||
		p.BoxOnlyPrice > 0 || p.BGS10Price > 0 || p.Condition17Price > 0 ||
		p.Condition18Price > 0
}

// Catalog price fields carry integer pennies; results are exposed in dollars.
const penniesPerDollar = 100.0

// Prices converts the product's penny-denominated price fields to a raw
// dollar price and sparse per-authority grade tables. The catalog overloads
// its fixed field set per category; for cards the mapping is:
//
//	loose-price          raw / ungraded
//	graded-price         PSA 9
//	manual-only-price    PSA 10
//	box-only-price       BGS 9.5
//	bgs-10-price         BGS 10
//	condition-17-price   CGC 10
//	condition-18-price   SGC 10
func (p CatalogProduct) Prices() (*float64, map[string]map[string]float64) {
	var raw *float64
	if p.LoosePrice > 0 {
		v := dollars(p.LoosePrice)
		raw = &v
	}

	grades := make(map[string]map[string]float64)
	add := func(authority, grade string, pennies int) {
		if pennies <= 0 {
			return
		}
		if grades[authority] == nil {
			grades[authority] = make(map[string]float64)
		}
		grades[authority][grade] = dollars(pennies)
	}

	add(AuthorityPSA, "9", p.GradedPrice)
	add(AuthorityPSA, "10", p.ManualOnlyPrice)
	add(AuthorityBGS, "9.5", p.BoxOnlyPrice)
	add(AuthorityBGS, "10", p.BGS10Price)
	add(AuthorityCGC, "10", p.Condition17Price)
	add(AuthoritySGC, "10", p.Condition18Price)

	if len(grades) == 0 {
		grades = nil
	}
	return raw, grades
}

func dollars(pennies int) float64 {
	return float64(pennies) / penniesPerDollar
}

// ScoredCandidate pairs a catalog product with its match score. Rejected
// candidates never become ScoredCandidates; the scorer signals rejection
// through its second return value instead of a sentinel score.
type ScoredCandidate struct {
	Product CatalogProduct
	Score   int
}

// Grading authority keys for PriceResult.Grades.
const (
	AuthorityPSA = "PSA"
	AuthorityBGS = "BGS"
	AuthoritySGC = "SGC"
	AuthorityCGC = "CGC"
)

// Confidence is a coarse summary of how trustworthy a resolved match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// PriceResult is the normalized outcome of one resolution. RawPrice and the
// grade maps are in dollars. When IsFallback is true, ExactMatchName names
// the higher-scoring candidate that was passed over because it had no price
// data, and the chosen candidate's score is strictly lower than that
// candidate's score.
type PriceResult struct {
	ProductID      string                        `json:"productId"`
	ProductName    string                        `json:"productName"`
	ConsoleName    string                        `json:"consoleName"`
	RawPrice       *float64                      `json:"rawPrice"`
	Grades         map[string]map[string]float64 `json:"grades,omitempty"` // authority -> grade label -> dollars
	Score          int                           `json:"score"`
	Confidence     Confidence                    `json:"confidence"`
	IsFallback     bool                          `json:"isFallback"`
	ExactMatchName string                        `json:"exactMatchName,omitempty"`
	UsedCascade    bool                          `json:"usedCascade,omitempty"`
	UpdatedAt      time.Time                     `json:"updatedAt"`
}

// HasPrices reports whether the result carries a raw price or any graded price.
func (r *PriceResult) HasPrices() bool {
	if r.RawPrice != nil {
		return true
	}
	for _, grades := range r.Grades {
		if len(grades) > 0 {
			return true
		}
	}
	return false
}

// TrackedCard is a catalog item the batch tracker keeps fresh.
type TrackedCard struct {
	ID    string
	Query CardQuery
}

// PriceSnapshot is the unit the batch tracker persists per refreshed card.
type PriceSnapshot struct {
	CardID     string
	Result     *PriceResult
	CapturedAt time.Time
}
