package batch

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_StartsIdle(t *testing.T) {
	s := quietSession(t)
	st := s.State()

	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.Items)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Empty(t, st.EditingItemID)
	assert.Empty(t, st.Error)
	requireInvariants(t, st)
}

func TestSession_LoadBatch(t *testing.T) {
	s := quietSession(t)

	res := s.LoadBatch(threeItems())

	require.True(t, res.OK())
	assert.Equal(t, PhaseReviewing, res.Phase)

	st := s.State()
	assert.Equal(t, PhaseReviewing, st.Phase)
	require.Len(t, st.Items, 3)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, []string{"A", "B", "C"}, []string{st.Items[0].ID, st.Items[1].ID, st.Items[2].ID})
	for i, it := range st.Items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, model.StatusReady, it.Status)
		assert.InDelta(t, 1.0, it.Confidence, 1e-9)
	}
	requireInvariants(t, st)
}

func TestSession_LoadBatchClassifiesFailures(t *testing.T) {
	s := quietSession(t)
	partial := extracted("B", 1)
	partial.Receipt.LineItems = nil

	res := s.LoadBatch([]model.ExtractionResult{
		extracted("A", 0),
		partial,
		failedExtraction("C", 2, "ocr timeout"),
	})
	require.True(t, res.OK())

	st := s.State()
	assert.Equal(t, model.StatusReady, st.Items[0].Status)
	assert.Equal(t, model.StatusReview, st.Items[1].Status)
	assert.InDelta(t, 0.75, st.Items[1].Confidence, 1e-9)
	assert.Equal(t, model.StatusError, st.Items[2].Status)
	assert.Equal(t, "ocr timeout", st.Items[2].FailureReason)
	assert.Nil(t, st.Items[2].Receipt)
}

func TestSession_LoadBatchDuplicateIDsRejected(t *testing.T) {
	s := quietSession(t)

	res := s.LoadBatch([]model.ExtractionResult{extracted("A", 0), extracted("A", 1)})

	assert.True(t, res.Rejected(ErrDuplicateItem))
	st := s.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.Items)
}

func TestSession_SnapshotIsolation(t *testing.T) {
	s := quietSession(t)
	input := threeItems()
	require.True(t, s.LoadBatch(input).OK())

	input[0].Receipt.Merchant = "changed by producer"
	st := s.State()
	st.Items[1].Receipt.Merchant = "changed by renderer"
	st.Items[2].Status = model.StatusError

	again := s.State()
	assert.Equal(t, "Merchant A", again.Items[0].Receipt.Merchant)
	assert.Equal(t, "Merchant B", again.Items[1].Receipt.Merchant)
	assert.Equal(t, model.StatusReady, again.Items[2].Status)
}

// Scenario: discarding an item ahead of the cursor shifts the cursor back.
func TestSession_DiscardBeforeCursor(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)
	require.True(t, s.SelectItem(2).OK())

	require.True(t, s.DiscardItem("B").OK())

	st := s.State()
	assert.Equal(t, 1, st.CurrentIndex)
	require.Len(t, st.Items, 2)
	assert.Equal(t, "A", st.Items[0].ID)
	assert.Equal(t, "C", st.Items[1].ID)
	requireInvariants(t, st)
}

func TestSession_SelectItemOutOfRange(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)
	require.True(t, s.SelectItem(1).OK())

	res := s.SelectItem(3)
	assert.True(t, res.Rejected(ErrInvalidIndex))
	assert.True(t, s.SelectItem(-1).Rejected(ErrInvalidIndex))
	assert.Equal(t, 1, s.State().CurrentIndex)
}

func TestSession_UpdateItem(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)
	receipt := completeReceipt("Fixed Merchant", 42)

	require.True(t, s.UpdateItem("B", ItemPatch{Receipt: receipt}).OK())

	st := s.State()
	assert.Equal(t, PhaseReviewing, st.Phase)
	assert.Equal(t, model.StatusEdited, st.Items[1].Status)
	assert.Equal(t, "Fixed Merchant", st.Items[1].Receipt.Merchant)
	assert.Equal(t, "B", st.Items[1].ID)

	res := s.UpdateItem("missing", ItemPatch{Receipt: receipt})
	assert.True(t, res.Rejected(ErrUnknownItem))
}

func TestSession_EditingFlow(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)

	require.True(t, s.StartEditing("C").OK())
	st := s.State()
	assert.Equal(t, PhaseEditing, st.Phase)
	assert.Equal(t, "C", st.EditingItemID)
	assert.Equal(t, 2, st.CurrentIndex)
	requireInvariants(t, st)

	// discard and save are not reachable while editing
	assert.True(t, s.DiscardItem("C").Rejected(ErrInvalidTransition))
	assert.True(t, s.SaveStart().Rejected(ErrInvalidTransition))
	assert.True(t, s.SelectItem(0).Rejected(ErrInvalidTransition))

	status := model.StatusReady
	require.True(t, s.UpdateItem("C", ItemPatch{Status: &status}).OK())
	assert.Equal(t, PhaseEditing, s.Phase())

	require.True(t, s.FinishEditing().OK())
	st = s.State()
	assert.Equal(t, PhaseReviewing, st.Phase)
	assert.Empty(t, st.EditingItemID)
	requireInvariants(t, st)
}

func TestSession_StartEditingUnknownItem(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)

	res := s.StartEditing("nope")

	assert.True(t, res.Rejected(ErrUnknownItem))
	assert.Equal(t, PhaseReviewing, s.Phase())
	assert.Empty(t, s.State().EditingItemID)
}

// Scenario: mixed outcomes settle on complete.
func TestSession_SaveMixedOutcomes(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)

	require.True(t, s.SaveStart().OK())
	assert.Equal(t, PhaseSaving, s.Phase())
	require.True(t, s.SaveItemSuccess("A").OK())
	require.True(t, s.SaveItemFailure("B", "net").OK())
	require.True(t, s.SaveItemSuccess("C").OK())
	res := s.SaveComplete()

	require.True(t, res.OK())
	assert.Equal(t, PhaseComplete, res.Phase)
	st := s.State()
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 2, st.SavedCount)
	assert.Equal(t, 1, st.FailedCount)
	assert.Empty(t, st.Error)
	assert.Equal(t, Outcome{Reason: "net"}, st.Outcomes["B"])
	assert.True(t, st.Outcomes["A"].Saved)
	assert.Len(t, st.Items, 3)
}

// Scenario: a single item that fails to save ends in error.
func TestSession_SaveAllFailed(t *testing.T) {
	s := quietSession(t)
	require.True(t, s.LoadBatch([]model.ExtractionResult{extracted("A", 0)}).OK())
	require.True(t, s.SaveStart().OK())
	require.True(t, s.SaveItemFailure("A", "x").OK())

	res := s.SaveComplete()

	require.True(t, res.OK())
	st := s.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, "All items failed to save", st.Error)
	assert.Equal(t, 1, st.FailedCount)
}

// Scenario: an empty batch saves trivially.
func TestSession_EmptyBatchCompletes(t *testing.T) {
	s := quietSession(t)
	require.True(t, s.LoadBatch(nil).OK())
	assert.Equal(t, PhaseReviewing, s.Phase())

	require.True(t, s.SaveStart().OK())
	require.True(t, s.SaveComplete().OK())

	st := s.State()
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Empty(t, st.Error)
	requireInvariants(t, st)
}

// Scenario: a second saveStart is refused and does not disturb the run.
func TestSession_DoubleSaveStart(t *testing.T) {
	s := sessionIn(t, PhaseReviewing)
	require.True(t, s.SaveStart().OK())
	require.True(t, s.SaveItemSuccess("A").OK())

	res := s.SaveStart()

	assert.True(t, res.Rejected(ErrInvalidTransition))
	st := s.State()
	assert.Equal(t, PhaseSaving, st.Phase)
	assert.Equal(t, 1, st.SavedCount)
	assert.Equal(t, 0, st.FailedCount)
}

func TestSession_SaveOutcomeGuards(t *testing.T) {
	s := sessionIn(t, PhaseSaving)

	assert.True(t, s.SaveItemSuccess("ghost").Rejected(ErrUnknownItem))
	assert.True(t, s.SaveItemFailure("ghost", "late").Rejected(ErrUnknownItem))

	require.True(t, s.SaveItemSuccess("A").OK())
	assert.True(t, s.SaveItemSuccess("A").Rejected(ErrDuplicateOutcome))
	assert.True(t, s.SaveItemFailure("A", "again").Rejected(ErrDuplicateOutcome))

	st := s.State()
	assert.Equal(t, 1, st.SavedCount)
	assert.Equal(t, 0, st.FailedCount)
	assert.Equal(t, 2, st.PendingSaves())
}

func TestSession_SaveCompleteWithUnreportedItems(t *testing.T) {
	var diags []Diagnostic
	s := quietSession(t, WithDiagnostics(func(d Diagnostic) { diags = append(diags, d) }))
	require.True(t, s.LoadBatch(threeItems()).OK())
	require.True(t, s.SaveStart().OK())
	require.True(t, s.SaveItemFailure("A", "disk full").OK())
	require.True(t, s.SaveItemFailure("B", "disk full").OK())

	require.True(t, s.SaveComplete().OK())

	// C never reported, so not every item failed.
	assert.Equal(t, PhaseComplete, s.Phase())
	require.NotEmpty(t, diags)
	last := diags[len(diags)-1]
	assert.Equal(t, OpSaveComplete, last.Op)
	assert.Contains(t, last.Message, "1 of 3")
}

func TestSession_LateReportsAfterResetAreIgnored(t *testing.T) {
	s := sessionIn(t, PhaseSaving)
	require.True(t, s.SaveItemSuccess("A").OK())

	require.True(t, s.Reset().OK())
	res := s.SaveItemSuccess("B")

	assert.True(t, res.Rejected(ErrInvalidTransition))
	assert.Equal(t, State{Phase: PhaseIdle, Items: []model.BatchItem{}, Outcomes: map[string]Outcome{}}, s.State())
}

func TestSession_ResetFromEveryPhase(t *testing.T) {
	initial := quietSession(t).State()

	for _, phase := range Phases() {
		t.Run(phase.String(), func(t *testing.T) {
			s := sessionIn(t, phase)

			res := s.Reset()

			require.True(t, res.OK())
			assert.Equal(t, PhaseIdle, res.Phase)
			assert.Equal(t, initial, s.State())
		})
	}
}

func TestSession_LoadingFlow(t *testing.T) {
	t.Run("load after loading", func(t *testing.T) {
		s := sessionIn(t, PhaseLoading)
		require.True(t, s.LoadBatch(threeItems()).OK())
		assert.Equal(t, PhaseReviewing, s.Phase())
	})

	t.Run("load failure", func(t *testing.T) {
		s := sessionIn(t, PhaseLoading)
		require.True(t, s.LoadFailed("  ").OK())
		st := s.State()
		assert.Equal(t, PhaseError, st.Phase)
		assert.Equal(t, "Extraction failed", st.Error)
	})

	t.Run("load replaces nothing once reviewing", func(t *testing.T) {
		s := sessionIn(t, PhaseReviewing)
		assert.True(t, s.LoadBatch(nil).Rejected(ErrInvalidTransition))
		assert.Len(t, s.State().Items, 3)
	})
}

func TestSession_DiagnosticsAndObserver(t *testing.T) {
	var diags []Diagnostic
	var phases []Phase
	s := quietSession(t,
		WithDiagnostics(func(d Diagnostic) { diags = append(diags, d) }),
		WithObserver(func(st State) { phases = append(phases, st.Phase) }),
	)

	require.True(t, s.LoadBatch(threeItems()).OK())
	require.True(t, s.SaveStart().OK())
	require.True(t, s.SaveItemFailure("B", "net").OK())
	assert.False(t, s.FinishEditing().OK())

	assert.Equal(t, []Phase{PhaseReviewing, PhaseSaving, PhaseSaving}, phases)

	require.Len(t, diags, 2)
	assert.Equal(t, "B", diags[0].ItemID)
	assert.Contains(t, diags[0].Message, "B")
	assert.Contains(t, diags[0].Message, "net")
	assert.Equal(t, OpFinishEditing, diags[1].Op)
	assert.Equal(t, PhaseSaving, diags[1].Phase)
	assert.ErrorIs(t, diags[1].Err, ErrInvalidTransition)
}

func TestSession_HooksMayCallBack(t *testing.T) {
	var s *Session
	var seen []int
	s = quietSession(t, WithObserver(func(State) {
		seen = append(seen, len(s.State().Items))
	}))

	require.True(t, s.LoadBatch(threeItems()).OK())
	assert.Equal(t, []int{3}, seen)
}

func TestSession_ConcurrentOutcomeReports(t *testing.T) {
	s := quietSession(t)
	results := make([]model.ExtractionResult, 0, 50)
	for i := 0; i < 50; i++ {
		results = append(results, extracted(string(rune('a'+i%26))+string(rune('A'+i/26)), i))
	}
	require.True(t, s.LoadBatch(results).OK())
	require.True(t, s.SaveStart().OK())

	var wg sync.WaitGroup
	for i, r := range results {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if i%5 == 0 {
				s.SaveItemFailure(id, "flaky")
				return
			}
			s.SaveItemSuccess(id)
		}(i, r.ID)
	}
	wg.Wait()
	require.True(t, s.SaveComplete().OK())

	st := s.State()
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 40, st.SavedCount)
	assert.Equal(t, 10, st.FailedCount)
}

// Random operation sequences never break the batch invariants.
func TestSession_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ops := Operations()
	itemIDs := []string{"A", "B", "C", "D", "ghost"}

	for run := 0; run < 200; run++ {
		s := quietSession(t)
		for step := 0; step < 40; step++ {
			id := itemIDs[rng.Intn(len(itemIDs))]
			var res Result
			switch op := ops[rng.Intn(len(ops))]; op {
			case OpLoadBatch:
				n := rng.Intn(5)
				batch := make([]model.ExtractionResult, 0, n)
				for i := 0; i < n; i++ {
					batch = append(batch, extracted(itemIDs[i], i))
				}
				res = s.LoadBatch(batch)
			case OpSelectItem:
				res = s.SelectItem(rng.Intn(6) - 1)
			case OpUpdateItem:
				res = s.UpdateItem(id, ItemPatch{Receipt: completeReceipt("x", 1)})
			case OpDiscardItem:
				res = s.DiscardItem(id)
			case OpStartEditing:
				res = s.StartEditing(id)
			case OpSaveItemSuccess:
				res = s.SaveItemSuccess(id)
			case OpSaveItemFailure:
				res = s.SaveItemFailure(id, "boom")
			default:
				res = invoke(s, op)
			}

			st := s.State()
			assert.Equal(t, st.Phase, res.Phase, "run %d step %d", run, step)
			requireInvariants(t, st)
		}
	}
}
