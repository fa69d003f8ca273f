// Package model defines the core domain models used throughout the application.
package model

// ItemStatus indicates where a batch item stands in review.
type ItemStatus string

// Item status constants.
const (
	StatusReady  ItemStatus = "ready"
	StatusReview ItemStatus = "review"
	StatusEdited ItemStatus = "edited"
	StatusError  ItemStatus = "error"
)

// IsValid reports whether s is one of the known item statuses.
func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusReady, StatusReview, StatusEdited, StatusError:
		return true
	default:
		return false
	}
}

// ExtractionResult is what the extraction pipeline hands over for one scanned receipt.
type ExtractionResult struct {
	Receipt       *Receipt
	ID            string
	FailureReason string
	Index         int
	Success       bool
}

// BatchItem is one receipt candidate under review.
type BatchItem struct {
	Receipt       *Receipt
	ID            string
	Status        ItemStatus
	FailureReason string
	Index         int
	Confidence    float64
}

// Clone returns a deep copy so callers cannot reach into batch-owned data.
func (b BatchItem) Clone() BatchItem {
	out := b
	if b.Receipt != nil {
		r := b.Receipt.Clone()
		out.Receipt = &r
	}
	return out
}

// HasCandidate reports whether extraction produced usable receipt data.
func (b BatchItem) HasCandidate() bool {
	return b.Receipt != nil && b.Status != StatusError
}
