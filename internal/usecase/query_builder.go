package usecase

import (
	"strings"

	"github.com/cardlens/backend/internal/domain"
)

// BuildQuery normalizes a card query into the search string the catalog's
// free-text ranker understands. Token order matters to the upstream: primary
// name first, then the cleaned collector number prefixed with "#", then a
// length-bounded cleaned set name, then the canonical variant token last.
//
// The fallback cascade reuses this builder with the collector number cleared
// on the query, which is the single field most prone to cross-source
// formatting mismatches.
func BuildQuery(q domain.CardQuery, rules domain.Rules) string {
	parts := make([]string, 0, 4)

	if name := strings.TrimSpace(q.Name); name != "" {
		parts = append(parts, name)
	}
	if number := CleanNumber(q.Number); number != "" {
		parts = append(parts, "#"+number)
	}
	if set := rules.CleanSetName(q.Set); set != "" {
		parts = append(parts, set)
	}
	if variant := rules.CanonicalVariant(q); variant != "" {
		parts = append(parts, variant)
	}

	return strings.Join(parts, " ")
}

// CleanNumber normalizes a collector number: strip a leading "#", drop
// everything after "/" ("4/102" -> "4"), and strip leading zeros ("027" ->
// "27"). An all-zero number keeps a single zero.
func CleanNumber(number string) string {
	n := strings.TrimSpace(number)
	n = strings.TrimPrefix(n, "#")
	if idx := strings.Index(n, "/"); idx >= 0 {
		n = n[:idx]
	}
	n = strings.TrimSpace(n)
	if n == "" {
		return ""
	}
	stripped := strings.TrimLeft(n, "0")
	if stripped == "" && strings.ContainsRune(n, '0') {
		return "0"
	}
	return stripped
}
