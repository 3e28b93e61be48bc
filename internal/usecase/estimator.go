package usecase

import (
	"math"
	"strconv"

	"github.com/cardlens/backend/internal/domain"
)

// gradeAuthorityOrder fixes the lookup order across grading authorities so
// estimation is deterministic when several carry a price at the same grade.
var gradeAuthorityOrder = []string{
	domain.AuthorityPSA,
	domain.AuthorityBGS,
	domain.AuthorityCGC,
	domain.AuthoritySGC,
}

// Grade-bucketed multipliers over the graded premium: the estimate captures
// a shrinking fraction of (graded - raw) as condition drops.
const (
	premiumMult95 = 0.70 // grade >= 9.5
	premiumMult9  = 0.65 // grade >= 9
	premiumMult8  = 0.55 // grade >= 8
	premiumMult7  = 0.45 // grade >= 7
	premiumMultLo = 0.35 // below 7

	// rawOnlyMultiple is a conservative documented heuristic for when the
	// result carries no graded price at all, not derived from data.
	rawOnlyMultiple = 3.0

	// noRawDiscount assumes a 30% discount vs. the incumbent grader when no
	// raw price anchors the premium, since the certification has no track
	// record yet.
	noRawDiscount = 0.70
)

// Estimate derives a dollar value for one target condition grade from a
// resolved price result. It returns nil when the result carries neither a
// graded price nor a raw price.
//
// Pure and referentially transparent: callers may invoke it repeatedly for
// different grades against the same cached result.
func Estimate(result *domain.PriceResult, grade float64) *float64 {
	if result == nil {
		return nil
	}

	graded := gradedPriceAt(result, grade)
	if graded == nil {
		graded = nearestGradedPrice(result, grade)
	}
	raw := result.RawPrice

	switch {
	case graded == nil && raw == nil:
		return nil
	case graded == nil:
		return roundCents(*raw * rawOnlyMultiple)
	case raw == nil:
		return roundCents(*graded * noRawDiscount)
	}

	estimate := *raw + (*graded-*raw)*premiumMultiplier(grade)
	return roundCents(estimate)
}

// gradedPriceAt looks up the graded price at round(grade), with a half-grade
// special case at 9.5 for grades >= 9.
func gradedPriceAt(result *domain.PriceResult, grade float64) *float64 {
	label := gradeLabel(grade)
	for _, authority := range gradeAuthorityOrder {
		if prices, ok := result.Grades[authority]; ok {
			if v, ok := prices[label]; ok {
				price := v
				return &price
			}
		}
	}
	return nil
}

// nearestGradedPrice anchors the premium when the table carries graded
// prices but none at the target label: it picks the entry whose grade is
// numerically closest to the target, preferring the higher grade on ties.
// The raw-only multiple is reserved for results with no graded price at all,
// so a missing label can never estimate above a present higher grade.
func nearestGradedPrice(result *domain.PriceResult, grade float64) *float64 {
	var (
		best     *float64
		bestDist float64
		bestVal  float64
	)
	for _, authority := range gradeAuthorityOrder {
		for label, price := range result.Grades[authority] {
			v, err := strconv.ParseFloat(label, 64)
			if err != nil {
				continue
			}
			dist := math.Abs(v - grade)
			if best == nil || dist < bestDist || (dist == bestDist && v > bestVal) {
				p := price
				best = &p
				bestDist = dist
				bestVal = v
			}
		}
	}
	return best
}

func gradeLabel(grade float64) string {
	if grade >= 9 && grade < 10 && grade-math.Floor(grade) == 0.5 {
		return "9.5"
	}
	return strconv.Itoa(int(math.Round(grade)))
}

func premiumMultiplier(grade float64) float64 {
	switch {
	case grade >= 9.5:
		return premiumMult95
	case grade >= 9:
		return premiumMult9
	case grade >= 8:
		return premiumMult8
	case grade >= 7:
		return premiumMult7
	default:
		return premiumMultLo
	}
}

func roundCents(v float64) *float64 {
	rounded := math.Round(v*100) / 100
	return &rounded
}
