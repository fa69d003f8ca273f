package batch

import (
	"strings"

	"github.com/Veraticus/receipt-review/internal/model"
)

// ReadyThreshold is the confidence at or above which an extraction needs no review.
const ReadyThreshold = 0.85

// requiredFields is the number of completeness checks in Score.
const requiredFields = 4

// Classification is the initial status stamped on an item at load time.
type Classification struct {
	Status        model.ItemStatus
	FailureReason string
	Confidence    float64
}

// Classify derives the initial review status for one extraction outcome.
func Classify(result model.ExtractionResult) Classification {
	if !result.Success || result.Receipt == nil {
		reason := strings.TrimSpace(result.FailureReason)
		if reason == "" {
			reason = "extraction failed"
		}
		return Classification{
			Status:        model.StatusError,
			Confidence:    0,
			FailureReason: reason,
		}
	}

	score := Score(*result.Receipt)
	status := model.StatusReview
	if score >= ReadyThreshold {
		status = model.StatusReady
	}

	return Classification{
		Status:     status,
		Confidence: score,
	}
}

// Score returns the fraction of required receipt fields that were extracted:
// merchant, a positive total, at least one line item and a date.
func Score(r model.Receipt) float64 {
	present := 0
	if r.HasMerchant() {
		present++
	}
	if r.Total > 0 {
		present++
	}
	if len(r.LineItems) > 0 {
		present++
	}
	if !r.Date.IsZero() {
		present++
	}
	return float64(present) / requiredFields
}
