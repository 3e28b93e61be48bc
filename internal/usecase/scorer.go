package usecase

import (
	"regexp"
	"strings"

	"github.com/cardlens/backend/internal/domain"
)

// Field-agreement weights. Empirically chosen; the ordering of magnitude
// matters more than the literal numbers, and the confidence thresholds that
// interpret totals are configurable.
const (
	nameExactBonus        = 50
	nameTokenBonus        = 5 // per matching name token
	numberMatchBonus      = 30
	numberMismatchPenalty = 15
	setFullMatchBonus     = 10
	setPartialBonus       = 8 // scaled by word-overlap ratio
	variantBonus          = 10
	variantMissingPenalty = 8
	yearBonus             = 5
)

// Collector-number notations seen in catalog display names: "#N", " N/",
// trailing " N".
var numberNotations = regexp.MustCompile(`#(\d+)|\s(\d+)/|\s(\d+)$`)

var fourDigitYear = regexp.MustCompile(`^\d{4}$`)

// ScoreCandidate scores one catalog product against the query using weighted
// field agreement. The second return value is false when a required field
// (primary name, and the collector number in strict domains) definitively
// fails to match; rejected candidates never participate in ranking.
//
// Scores are additive with no fixed bound, and the function is deterministic:
// the same candidate and query always produce the same score.
func ScoreCandidate(p domain.CatalogProduct, q domain.CardQuery, rules domain.Rules) (int, bool) {
	queryName := strings.ToLower(strings.TrimSpace(q.Name))
	if queryName == "" {
		return 0, false
	}
	candidateName := strings.ToLower(p.ProductName)
	consoleName := strings.ToLower(p.ConsoleName)

	score := 0

	// Primary-name agreement.
	if candidateName == queryName || strings.HasPrefix(candidateName, queryName+" ") {
		score += nameExactBonus
	} else {
		queryTokens := nameTokens(queryName)
		candidateTokens := nameTokens(candidateName)
		matched := tokenOverlap(queryTokens, candidateTokens)
		if matched == 0 {
			return 0, false
		}
		ratio := float64(matched) / float64(len(queryTokens))
		if rules.NameOverlapRatio > 0 && ratio < rules.NameOverlapRatio {
			return 0, false
		}
		score += matched * nameTokenBonus
	}

	// Collector-number agreement.
	if strings.TrimSpace(q.Number) != "" {
		if numberMatches(p.ProductName, q.Number) {
			score += numberMatchBonus
		} else if rules.StrictNumber {
			return 0, false
		} else {
			score -= numberMismatchPenalty
		}
	}

	// Set/expansion agreement is a soft signal only.
	if set := strings.ToLower(rules.CleanSetName(q.Set)); set != "" {
		if strings.Contains(consoleName, set) {
			score += setFullMatchBonus
		} else if ratio := wordOverlapRatio(set, consoleName); ratio > 0 {
			score += int(ratio * setPartialBonus)
		}
	}

	// Variant/foil agreement. Some catalogs omit the marker for the default
	// print, so absence penalizes without rejecting.
	if variant := strings.ToLower(rules.CanonicalVariant(q)); variant != "" {
		if strings.Contains(candidateName, variant) {
			score += variantBonus
		} else {
			score -= variantMissingPenalty
		}
	}

	// Year agreement (coarse).
	if year := strings.TrimSpace(q.Year); fourDigitYear.MatchString(year) {
		if strings.Contains(candidateName, year) || strings.Contains(consoleName, year) {
			score += yearBonus
		}
	}

	return score, true
}

// numberMatches reports whether the candidate display name carries the
// collector number in any of the common notations, comparing zero-stripped
// forms in both directions so "027" matches "#27" and "27" matches "#004"
// style padding.
func numberMatches(candidateName, number string) bool {
	want := CleanNumber(number)
	if want == "" {
		return false
	}
	for _, m := range numberNotations.FindAllStringSubmatch(candidateName, -1) {
		for _, captured := range m[1:] {
			if captured == "" {
				continue
			}
			if captured == want || zeroStripped(captured) == want {
				return true
			}
		}
	}
	return false
}

func zeroStripped(s string) string {
	stripped := strings.TrimLeft(s, "0")
	if stripped == "" {
		return "0"
	}
	return stripped
}

// nameTokens splits a lowercased name into tokens longer than one character.
func nameTokens(s string) []string {
	var tokens []string
	for _, w := range strings.Fields(s) {
		if len(w) > 1 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// tokenOverlap counts distinct tokens of a that appear in b.
func tokenOverlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	seen := make(map[string]bool, len(a))
	count := 0
	for _, t := range a {
		if set[t] && !seen[t] {
			seen[t] = true
			count++
		}
	}
	return count
}

// wordOverlapRatio returns the fraction of words in want that appear in have.
func wordOverlapRatio(want, have string) float64 {
	wantWords := strings.Fields(want)
	if len(wantWords) == 0 {
		return 0
	}
	haveSet := make(map[string]bool)
	for _, w := range strings.Fields(have) {
		haveSet[w] = true
	}
	matched := 0
	for _, w := range wantWords {
		if haveSet[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(wantWords))
}
