package tabulate

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/reeltab/reeltab/internal/scanning"
)

// Candidate is a line item reported for a single frame, tagged with the
// frame it came from. Candidates are read-only input to aggregation.
type Candidate struct {
	scanning.LineItem
	Frame int
}

// Item is one deduplicated line item in the final table.
type Item struct {
	Name       string   `json:"name"`
	Quantity   float64  `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	TotalPrice float64  `json:"total_price"`
}

// Options are the aggregation tunables.
type Options struct {
	// FuzzyThreshold is the name-similarity score in (0, 1] above which
	// two normalized names are treated as the same item. 1 requires an
	// exact match after normalization.
	FuzzyThreshold float64
}

// priceEpsilon absorbs float formatting noise; prices come from decimal
// text, so anything under half a cent is the same price.
const priceEpsilon = 0.005

// entry is the working state of one canonical line during aggregation.
type entry struct {
	name     string // first-seen display name
	norm     string
	quantity *float64
	unit     *float64
	total    *float64
}

// Aggregate collapses candidates gathered from possibly-overlapping frames
// into one canonical table, preserving first-seen order. Two candidates
// are the same physical line when their normalized names match (exactly or
// above the fuzzy threshold) and their prices do not disagree. A match
// enriches the existing entry: nil fields are filled from the candidate,
// fields already set are never overwritten, so a later frame's OCR noise
// cannot corrupt a cleanly read value. Candidates whose prices contradict
// every existing entry open a new one; over-counting beats silently
// dropping a purchased item. Deterministic given its ordered input.
func Aggregate(candidates []Candidate, opts Options) []Item {
	var entries []*entry

	for _, c := range candidates {
		name := strings.TrimSpace(c.Name)
		norm := normalizeName(name)
		if norm == "" {
			continue
		}

		var match *entry
		for _, e := range entries {
			if !sameName(e.norm, norm, opts.FuzzyThreshold) {
				continue
			}
			if !compatible(e.unit, c.UnitPrice) || !compatible(e.total, c.TotalPrice) {
				continue
			}
			match = e
			break
		}

		if match == nil {
			entries = append(entries, &entry{
				name:     name,
				norm:     norm,
				quantity: c.Quantity,
				unit:     c.UnitPrice,
				total:    c.TotalPrice,
			})
			continue
		}

		if match.quantity == nil {
			match.quantity = c.Quantity
		}
		if match.unit == nil {
			match.unit = c.UnitPrice
		}
		if match.total == nil {
			match.total = c.TotalPrice
		}
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.finalize())
	}
	return items
}

// finalize resolves the canonical defaults: quantity 1 when never
// observed, total derived from quantity and unit price when only those
// were read.
func (e *entry) finalize() Item {
	qty := 1.0
	if e.quantity != nil && *e.quantity > 0 {
		qty = *e.quantity
	}

	var total float64
	switch {
	case e.total != nil:
		total = *e.total
	case e.unit != nil:
		total = qty * *e.unit
	}

	return Item{
		Name:       e.name,
		Quantity:   qty,
		UnitPrice:  e.unit,
		TotalPrice: total,
	}
}

// normalizeName reduces an item name to its comparison form: uppercase
// with runs of whitespace collapsed.
func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// sameName reports whether two normalized names refer to the same item,
// either exactly or above the Levenshtein similarity threshold.
func sameName(a, b string, fuzzyThreshold float64) bool {
	if a == b {
		return true
	}
	if fuzzyThreshold <= 0 || fuzzyThreshold >= 1 {
		return false
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return false
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1-float64(dist)/float64(longest) >= fuzzyThreshold
}

// compatible reports whether two observed prices can belong to the same
// line: equal within epsilon, or at least one unobserved.
func compatible(a, b *float64) bool {
	if a == nil || b == nil {
		return true
	}
	return math.Abs(*a-*b) < priceEpsilon
}
