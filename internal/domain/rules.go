package domain

import (
	"fmt"
	"strings"
)

// VariantMapping canonicalizes free-text variant descriptions: the first
// mapping whose Substring appears in the lowercased input wins. Order matters
// ("reverse holo" must be checked before "holo").
type VariantMapping struct {
	Substring string
	Canonical string
}

// Rules parameterizes the generic engine for one card domain. It is pure
// data plus small pure helpers; the query builder, scorer, and resolver are
// implemented once against it.
type Rules struct {
	Domain string

	// SetPrefixes are leading words stripped from set names before querying
	// and comparing ("Pokemon Base Set" -> "Base Set"). Lowercase.
	SetPrefixes []string

	// Variants canonicalize free-text variant tags, checked in order.
	Variants []VariantMapping

	// Canonical tokens for the boolean query flags.
	FoilVariant         string
	FirstEditionVariant string
	ReverseHoloVariant  string

	// StrictNumber makes a collector-number mismatch a hard rejection.
	// Permissive domains only penalize, since numbering conventions vary
	// too much across sources for a mismatch alone to be fatal.
	StrictNumber bool

	// NameOverlapRatio is the minimum fraction of query-name tokens that
	// must appear in the candidate name. Zero means any overlap qualifies.
	NameOverlapRatio float64

	// CascadeAfterPricelessBest allows the fallback cascade to run even
	// when the primary query identified a (priceless) candidate. Domains
	// where the collector number is load-bearing keep this off: a looser
	// query would only degrade identification further.
	CascadeAfterPricelessBest bool
}

var PokemonRules = Rules{
	Domain:      "pokemon",
	SetPrefixes: []string{"pokemon tcg", "pokemon"},
	Variants: []VariantMapping{
		{Substring: "1st edition", Canonical: "1st Edition"},
		{Substring: "first edition", Canonical: "1st Edition"},
		{Substring: "reverse holo", Canonical: "Reverse Holo"},
		{Substring: "reverse foil", Canonical: "Reverse Holo"},
		{Substring: "holo", Canonical: "Holofoil"},
		{Substring: "shadowless", Canonical: "Shadowless"},
	},
	FoilVariant:         "Holofoil",
	FirstEditionVariant: "1st Edition",
	ReverseHoloVariant:  "Reverse Holo",
	StrictNumber:        true,
	NameOverlapRatio:    0.8,
}

var MagicRules = Rules{
	Domain:      "magic",
	SetPrefixes: []string{"magic: the gathering", "magic the gathering", "magic:", "magic", "mtg"},
	Variants: []VariantMapping{
		{Substring: "etched", Canonical: "Etched Foil"},
		{Substring: "foil", Canonical: "Foil"},
		{Substring: "borderless", Canonical: "Borderless"},
		{Substring: "showcase", Canonical: "Showcase"},
		{Substring: "extended art", Canonical: "Extended Art"},
	},
	FoilVariant:               "Foil",
	StrictNumber:              false,
	NameOverlapRatio:          0, // any overlap
	CascadeAfterPricelessBest: true,
}

var OnePieceRules = Rules{
	Domain:      "onepiece",
	SetPrefixes: []string{"one piece card game", "one piece"},
	Variants: []VariantMapping{
		{Substring: "manga", Canonical: "Manga Art"},
		{Substring: "alt art", Canonical: "Alternate Art"},
		{Substring: "alternate art", Canonical: "Alternate Art"},
		{Substring: "parallel", Canonical: "Parallel"},
		{Substring: "foil", Canonical: "Parallel"},
	},
	FoilVariant:               "Parallel",
	StrictNumber:              false,
	NameOverlapRatio:          0.8,
	CascadeAfterPricelessBest: true,
}

// RulesForDomain returns the rules table for a domain identifier.
func RulesForDomain(domain string) (Rules, error) {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case "pokemon":
		return PokemonRules, nil
	case "magic", "mtg":
		return MagicRules, nil
	case "onepiece", "one piece":
		return OnePieceRules, nil
	default:
		return Rules{}, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
}

// CanonicalVariant resolves the query's variant intent to a canonical token.
// An explicit variant string takes precedence; the boolean flags are only
// consulted when it is empty, so the two never double up.
func (r Rules) CanonicalVariant(q CardQuery) string {
	if v := strings.TrimSpace(q.Variant); v != "" {
		lower := strings.ToLower(v)
		for _, m := range r.Variants {
			if strings.Contains(lower, m.Substring) {
				return m.Canonical
			}
		}
		return v // unmatched free text passes through unchanged
	}
	switch {
	case q.IsFirstEdition && r.FirstEditionVariant != "":
		return r.FirstEditionVariant
	case q.IsReverseHolo && r.ReverseHoloVariant != "":
		return r.ReverseHoloVariant
	case q.IsFoil && r.FoilVariant != "":
		return r.FoilVariant
	}
	return ""
}

// CleanSetName strips the domain prefix words from a set name and bounds its
// length for use in a free-text query.
func (r Rules) CleanSetName(set string) string {
	s := strings.TrimSpace(set)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, prefix := range r.SetPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			lower = strings.ToLower(s)
		}
	}
	words := strings.Fields(s)
	if len(words) > maxSetWords {
		words = words[:maxSetWords]
	}
	return strings.Join(words, " ")
}

// maxSetWords bounds the set-name portion of a query; long expansion names
// drown out the card name in the upstream free-text ranker.
const maxSetWords = 4
