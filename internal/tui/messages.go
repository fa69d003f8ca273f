package tui

import (
	"github.com/Veraticus/receipt-review/internal/engine"
	"github.com/Veraticus/receipt-review/internal/model"
)

type batchLoadedMsg struct {
	err     error
	results []model.ExtractionResult
}

type saveFinishedMsg struct {
	err     error
	summary *engine.SaveSummary
}
