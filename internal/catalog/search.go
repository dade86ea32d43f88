package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

type productNames []Product

func (p productNames) String(i int) string { return strings.ToLower(p[i].Name) }
func (p productNames) Len() int            { return len(p) }

// search keeps the products whose name fuzzy-matches term, best match
// first.
func search(ps []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return ps
	}

	matches := fuzzy.FindFrom(term, productNames(ps))
	out := make([]Product, 0, len(matches))
	for _, m := range matches {
		out = append(out, ps[m.Index])
	}
	return out
}

func applyLimit(ps []Product, limit int) []Product {
	if limit > 0 && len(ps) > limit {
		return ps[:limit]
	}
	return ps
}
