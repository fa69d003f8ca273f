package batch

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/stretchr/testify/require"
)

// completeReceipt has every required field, so it classifies as ready.
func completeReceipt(merchant string, total float64) *model.Receipt {
	return &model.Receipt{
		Merchant: merchant,
		Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Total:    total,
		Category: "Groceries",
		LineItems: []model.LineItem{
			{Description: "item", Quantity: 1, Amount: total},
		},
	}
}

func extracted(id string, index int) model.ExtractionResult {
	return model.ExtractionResult{
		ID:      id,
		Index:   index,
		Success: true,
		Receipt: completeReceipt("Merchant "+id, 10+float64(index)),
	}
}

func failedExtraction(id string, index int, reason string) model.ExtractionResult {
	return model.ExtractionResult{ID: id, Index: index, FailureReason: reason}
}

func threeItems() []model.ExtractionResult {
	return []model.ExtractionResult{extracted("A", 0), extracted("B", 1), extracted("C", 2)}
}

func quietSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSession(append([]Option{WithLogger(logger)}, opts...)...)
}

// sessionIn drives a fresh session with items A, B, C into the requested phase.
func sessionIn(t *testing.T, phase Phase) *Session {
	t.Helper()
	s := quietSession(t)

	steps := map[Phase][]func() Result{
		PhaseIdle:      nil,
		PhaseLoading:   {s.StartLoading},
		PhaseReviewing: {func() Result { return s.LoadBatch(threeItems()) }},
		PhaseEditing: {
			func() Result { return s.LoadBatch(threeItems()) },
			func() Result { return s.StartEditing("B") },
		},
		PhaseSaving: {
			func() Result { return s.LoadBatch(threeItems()) },
			s.SaveStart,
		},
		PhaseComplete: {
			func() Result { return s.LoadBatch(threeItems()) },
			s.SaveStart,
			func() Result { return s.SaveItemSuccess("A") },
			s.SaveComplete,
		},
		PhaseError: {
			s.StartLoading,
			func() Result { return s.LoadFailed("scanner offline") },
		},
	}

	for i, step := range steps[phase] {
		res := step()
		require.True(t, res.OK(), "setup step %d for %s: %v", i, phase, res.Err)
	}
	require.Equal(t, phase, s.Phase())
	return s
}

// invoke issues op with arguments that would be valid if the phase allowed it.
func invoke(s *Session, op Operation) Result {
	switch op {
	case OpLoadBatch:
		return s.LoadBatch(threeItems())
	case OpStartLoading:
		return s.StartLoading()
	case OpLoadFailed:
		return s.LoadFailed("boom")
	case OpReset:
		return s.Reset()
	case OpSelectItem:
		return s.SelectItem(1)
	case OpUpdateItem:
		status := model.StatusReady
		return s.UpdateItem("A", ItemPatch{Status: &status})
	case OpDiscardItem:
		return s.DiscardItem("A")
	case OpStartEditing:
		return s.StartEditing("A")
	case OpFinishEditing:
		return s.FinishEditing()
	case OpSaveStart:
		return s.SaveStart()
	case OpSaveItemSuccess:
		return s.SaveItemSuccess("C")
	case OpSaveItemFailure:
		return s.SaveItemFailure("C", "net")
	case OpSaveComplete:
		return s.SaveComplete()
	default:
		panic(fmt.Sprintf("unhandled operation %v", op))
	}
}

// requireInvariants checks the batch invariants that must hold after every operation.
func requireInvariants(t *testing.T, st State) {
	t.Helper()
	require.True(t, st.Phase.IsValid(), "phase %d is not defined", st.Phase)

	if st.Phase == PhaseIdle {
		require.Empty(t, st.Items)
		require.Equal(t, 0, st.CurrentIndex)
	}

	if len(st.Items) == 0 {
		require.Equal(t, 0, st.CurrentIndex)
	} else {
		require.GreaterOrEqual(t, st.CurrentIndex, 0)
		require.Less(t, st.CurrentIndex, len(st.Items))
	}

	require.LessOrEqual(t, st.SavedCount+st.FailedCount, len(st.Items))

	if st.EditingItemID != "" {
		require.Equal(t, PhaseEditing, st.Phase)
		_, ok := st.EditingItem()
		require.True(t, ok, "editing id %s does not refer to an item", st.EditingItemID)
	}

	seen := make(map[string]bool, len(st.Items))
	for _, it := range st.Items {
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
	}
}
