package testutil

import (
	"time"

	"github.com/Veraticus/receipt-review/internal/model"
)

// DefaultDate is the receipt date used by the builder unless overridden.
var DefaultDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// ResultBuilder assembles extraction results in display order.
//
//	results := testutil.NewResults().
//		Complete("r1", "Corner Cafe", 8.50).
//		Partial("r2", "Hardware Store", 42).
//		Failed("r3", "image too dark").
//		Build()
type ResultBuilder struct {
	results []model.ExtractionResult
}

// NewResults starts an empty batch.
func NewResults() *ResultBuilder {
	return &ResultBuilder{}
}

// Complete adds a receipt with every required field, which classifies as ready.
func (b *ResultBuilder) Complete(id, merchant string, total float64) *ResultBuilder {
	return b.add(id, &model.Receipt{
		Merchant: merchant,
		Date:     DefaultDate,
		Total:    total,
		LineItems: []model.LineItem{
			{Description: "item", Quantity: 1, Amount: total},
		},
	})
}

// Partial adds a receipt without line items, which classifies as review.
func (b *ResultBuilder) Partial(id, merchant string, total float64) *ResultBuilder {
	return b.add(id, &model.Receipt{
		Merchant: merchant,
		Date:     DefaultDate,
		Total:    total,
	})
}

// Failed adds a result whose extraction failed.
func (b *ResultBuilder) Failed(id, reason string) *ResultBuilder {
	b.results = append(b.results, model.ExtractionResult{
		ID:            id,
		Index:         len(b.results),
		FailureReason: reason,
	})
	return b
}

// Build returns the results.
func (b *ResultBuilder) Build() []model.ExtractionResult {
	out := make([]model.ExtractionResult, len(b.results))
	copy(out, b.results)
	return out
}

func (b *ResultBuilder) add(id string, r *model.Receipt) *ResultBuilder {
	b.results = append(b.results, model.ExtractionResult{
		ID:      id,
		Index:   len(b.results),
		Success: true,
		Receipt: r,
	})
	return b
}
