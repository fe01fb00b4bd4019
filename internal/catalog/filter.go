package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchMode selects how search tokens are compared against product names.
type MatchMode string

const (
	// MatchCaseInsensitive compares tokens and names case-insensitively.
	// DynamoDB cannot evaluate this, so token predicates run client-side.
	MatchCaseInsensitive MatchMode = "insensitive"

	// MatchCanonical rewrites each token to first-letter-upper, rest-lower and
	// matches it as an exact substring. This is the legacy storage convention and
	// is evaluated by the store.
	MatchCanonical MatchMode = "canonical"
)

// ParseMatchMode returns the mode for s, defaulting to MatchCaseInsensitive.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == MatchCanonical {
		return MatchCanonical
	}
	return MatchCaseInsensitive
}

// PredicateKind is the kind of a filter leaf.
type PredicateKind int

const (
	PredicateContains PredicateKind = iota
	PredicateEquals
)

// Predicate is one leaf of a filter: a substring containment or an equality test
// on a string attribute.
type Predicate struct {
	Kind  PredicateKind
	Attr  string
	Value string
}

func (p Predicate) matches(product Product, mode MatchMode) bool {
	field := product.StringField(p.Attr)
	switch p.Kind {
	case PredicateContains:
		if mode == MatchCaseInsensitive {
			return strings.Contains(strings.ToLower(field), strings.ToLower(p.Value))
		}
		return strings.Contains(field, p.Value)
	case PredicateEquals:
		return field == p.Value
	default:
		return false
	}
}

// Filter is a conjunction of predicates. There is no OR and no negation.
// The zero value matches every record.
type Filter struct {
	predicates []Predicate
	mode       MatchMode
}

// BuildFilter turns search parameters into a Filter. Every whitespace-delimited
// token of searchTerm becomes a containment predicate on the product name, and a
// non-empty category becomes an equality predicate. All predicates are ANDed.
func BuildFilter(searchTerm, category string, mode MatchMode) Filter {
	if mode == "" {
		mode = MatchCaseInsensitive
	}
	f := Filter{mode: mode}
	for _, token := range strings.Fields(searchTerm) {
		if mode == MatchCanonical {
			token = NormalizeToken(token)
		}
		f.predicates = append(f.predicates, Predicate{Kind: PredicateContains, Attr: AttrProductName, Value: token})
	}
	if category = strings.TrimSpace(category); category != "" {
		f.predicates = append(f.predicates, Predicate{Kind: PredicateEquals, Attr: AttrCategoryName, Value: category})
	}
	return f
}

// NormalizeToken returns token with its first letter upper-cased and the rest lower-cased.
func NormalizeToken(token string) string {
	if token == "" {
		return token
	}
	r, size := utf8.DecodeRuneInString(token)
	return string(unicode.ToUpper(r)) + strings.ToLower(token[size:])
}

// Mode returns the token match mode.
func (f Filter) Mode() MatchMode {
	if f.mode == "" {
		return MatchCaseInsensitive
	}
	return f.mode
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.predicates) == 0
}

// Predicates returns a copy of the filter leaves.
func (f Filter) Predicates() []Predicate {
	out := make([]Predicate, len(f.predicates))
	copy(out, f.predicates)
	return out
}

// StorePredicates returns the leaves a store can evaluate server-side.
// Case-insensitive containment is not among them.
func (f Filter) StorePredicates() []Predicate {
	var out []Predicate
	for _, p := range f.predicates {
		if p.Kind == PredicateContains && f.Mode() == MatchCaseInsensitive {
			continue
		}
		out = append(out, p)
	}
	return out
}

// NeedsClientSide reports whether some leaves must be applied over scan results.
func (f Filter) NeedsClientSide() bool {
	return len(f.StorePredicates()) != len(f.predicates)
}

// Matches evaluates every predicate against p.
func (f Filter) Matches(p Product) bool {
	for _, pred := range f.predicates {
		if !pred.matches(p, f.Mode()) {
			return false
		}
	}
	return true
}

// Select returns the products that match the filter, preserving order.
func (f Filter) Select(products []Product) []Product {
	if f.IsEmpty() {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
