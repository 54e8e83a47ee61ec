package scanning

import "context"

// LineItem is one raw line item reported by the model for a single frame.
// Fields the model could not read are nil; items are never mutated after
// creation.
type LineItem struct {
	Name       string   `json:"name"`
	Quantity   *float64 `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	TotalPrice *float64 `json:"total_price"`
}

// Extractor defines the interface for line-item extraction backends.
// Implementations receive one PNG frame per call and return the items
// visible on it, possibly none.
type Extractor interface {
	ExtractItems(ctx context.Context, png []byte) ([]LineItem, error)
	// Close closes the extractor and releases resources
	Close() error
}
