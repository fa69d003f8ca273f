// Package batch implements the phase-gated review workflow for a batch of
// scanned receipts: loading extraction results, reviewing and editing
// candidates, and aggregating per-item save outcomes into a terminal phase.
//
// A Session is the single owner of batch state. Every operation is checked
// against the phase guard before it touches items or counters; refused
// operations leave state untouched and come back as a rejected Result.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Veraticus/receipt-review/internal/model"
)

// Diagnostic is a developer-facing note about a refused operation or a
// notable save outcome.
type Diagnostic struct {
	Err     error
	Message string
	ItemID  string
	Level   slog.Level
	Op      Operation
	Phase   Phase
}

// DiagnosticFunc receives diagnostics after the operation that produced them
// has released the session.
type DiagnosticFunc func(Diagnostic)

// ObserverFunc receives a snapshot after every applied operation.
type ObserverFunc func(State)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDiagnostics registers a hook that sees every diagnostic.
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(s *Session) {
		s.onDiagnostic = fn
	}
}

// WithObserver registers a hook called with the new state after each applied operation.
func WithObserver(fn ObserverFunc) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// State is an immutable snapshot of a session.
type State struct {
	Outcomes      map[string]Outcome
	EditingItemID string
	Error         string
	Items         []model.BatchItem
	CurrentIndex  int
	SavedCount    int
	FailedCount   int
	Phase         Phase
}

// CurrentItem returns the item under the cursor.
func (st State) CurrentItem() (model.BatchItem, bool) {
	if st.CurrentIndex < 0 || st.CurrentIndex >= len(st.Items) {
		return model.BatchItem{}, false
	}
	return st.Items[st.CurrentIndex], true
}

// EditingItem returns the item being edited, if any.
func (st State) EditingItem() (model.BatchItem, bool) {
	if st.EditingItemID == "" {
		return model.BatchItem{}, false
	}
	for _, it := range st.Items {
		if it.ID == st.EditingItemID {
			return it, true
		}
	}
	return model.BatchItem{}, false
}

// PendingSaves is the number of items with no reported outcome yet.
func (st State) PendingSaves() int {
	return len(st.Items) - st.SavedCount - st.FailedCount
}

// Session is the state container for one batch review.
type Session struct {
	logger       *slog.Logger
	onDiagnostic DiagnosticFunc
	onChange     ObserverFunc
	items        *collection
	agg          *aggregator
	editingID    string
	errMsg       string
	notes        []Diagnostic
	phase        Phase
	mu           sync.Mutex
}

// NewSession returns an idle session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
		items:  newCollection(),
		agg:    newAggregator(),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the active phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a deep copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	return State{
		Phase:         s.phase,
		Items:         s.items.snapshot(),
		CurrentIndex:  s.items.cursor,
		SavedCount:    s.agg.saved,
		FailedCount:   s.agg.failed,
		EditingItemID: s.editingID,
		Error:         s.errMsg,
		Outcomes:      s.agg.snapshot(),
	}
}

// StartLoading marks that extraction is under way for a new batch.
func (s *Session) StartLoading() Result {
	return s.apply(OpStartLoading, "", func(next Phase) (Phase, error) {
		return next, nil
	})
}

// LoadBatch classifies each extraction result and replaces the batch with the
// resulting items, in the order given.
func (s *Session) LoadBatch(results []model.ExtractionResult) Result {
	return s.apply(OpLoadBatch, "", func(next Phase) (Phase, error) {
		items := make([]model.BatchItem, 0, len(results))
		for _, r := range results {
			c := Classify(r)
			item := model.BatchItem{
				ID:            r.ID,
				Index:         r.Index,
				Status:        c.Status,
				Confidence:    c.Confidence,
				FailureReason: c.FailureReason,
			}
			if c.Status != model.StatusError {
				item.Receipt = r.Receipt
			}
			items = append(items, item)
		}

		if err := s.items.load(items); err != nil {
			return next, err
		}
		s.agg.reset()
		s.editingID = ""
		s.errMsg = ""

		for _, it := range items {
			if it.Status == model.StatusError {
				s.note(slog.LevelInfo, OpLoadBatch, it.ID, "extraction failed: "+it.FailureReason)
			}
		}
		return next, nil
	})
}

// LoadFailed records that the extraction pipeline could not produce a batch at all.
func (s *Session) LoadFailed(reason string) Result {
	return s.apply(OpLoadFailed, "", func(next Phase) (Phase, error) {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = "Extraction failed"
		}
		s.errMsg = reason
		return next, nil
	})
}

// Reset discards everything and returns to idle. It is allowed from every phase.
func (s *Session) Reset() Result {
	return s.apply(OpReset, "", func(next Phase) (Phase, error) {
		s.items.clear()
		s.agg.reset()
		s.editingID = ""
		s.errMsg = ""
		return next, nil
	})
}

// SelectItem moves the cursor.
func (s *Session) SelectItem(index int) Result {
	return s.apply(OpSelectItem, "", func(next Phase) (Phase, error) {
		return next, s.items.selectIndex(index)
	})
}

// UpdateItem merges patch into the item with the given id. The item becomes
// edited unless the patch names a status.
func (s *Session) UpdateItem(id string, patch ItemPatch) Result {
	return s.apply(OpUpdateItem, id, func(next Phase) (Phase, error) {
		return next, s.items.update(id, patch)
	})
}

// DiscardItem removes the item with the given id and repairs the cursor.
func (s *Session) DiscardItem(id string) Result {
	return s.apply(OpDiscardItem, id, func(next Phase) (Phase, error) {
		return next, s.items.discard(id)
	})
}

// StartEditing opens the item with the given id for editing and moves the cursor to it.
func (s *Session) StartEditing(id string) Result {
	return s.apply(OpStartEditing, id, func(next Phase) (Phase, error) {
		pos := s.items.position(id)
		if pos < 0 {
			return next, s.items.unknown(id)
		}
		s.items.cursor = pos
		s.editingID = id
		return next, nil
	})
}

// FinishEditing closes the editor and returns to review.
func (s *Session) FinishEditing() Result {
	return s.apply(OpFinishEditing, "", func(next Phase) (Phase, error) {
		s.editingID = ""
		return next, nil
	})
}

// SaveStart begins the save run.
func (s *Session) SaveStart() Result {
	return s.apply(OpSaveStart, "", func(next Phase) (Phase, error) {
		return next, nil
	})
}

// SaveItemSuccess records that the item was persisted.
func (s *Session) SaveItemSuccess(id string) Result {
	return s.apply(OpSaveItemSuccess, id, func(next Phase) (Phase, error) {
		if err := s.checkOutcome(id); err != nil {
			return next, err
		}
		s.agg.recordSuccess(id)
		return next, nil
	})
}

// SaveItemFailure records that persisting the item failed.
func (s *Session) SaveItemFailure(id, reason string) Result {
	return s.apply(OpSaveItemFailure, id, func(next Phase) (Phase, error) {
		if err := s.checkOutcome(id); err != nil {
			return next, err
		}
		s.agg.recordFailure(id, reason)
		s.note(slog.LevelWarn, OpSaveItemFailure, id, fmt.Sprintf("item %s failed to save: %s", id, reason))
		return next, nil
	})
}

// SaveComplete closes the save run and settles on complete or error.
func (s *Session) SaveComplete() Result {
	return s.apply(OpSaveComplete, "", func(_ Phase) (Phase, error) {
		total := s.items.len()
		if pending := total - s.agg.reported(); pending > 0 {
			s.note(slog.LevelWarn, OpSaveComplete, "",
				fmt.Sprintf("save completed with %d of %d items unreported", pending, total))
		}
		phase, msg := s.agg.resolve(total)
		s.errMsg = msg
		return phase, nil
	})
}

func (s *Session) checkOutcome(id string) error {
	if _, ok := s.items.get(id); !ok {
		return s.items.unknown(id)
	}
	return s.agg.checkReport(id)
}

// apply runs one guarded operation. fn must validate before it mutates: if it
// returns an error nothing may have changed.
func (s *Session) apply(op Operation, itemID string, fn func(next Phase) (Phase, error)) Result {
	s.mu.Lock()

	from := s.phase
	result := Result{Op: op, Phase: from}

	if next, ok := permit(from, op); !ok {
		rej := &RejectionError{Op: op, Phase: from, Err: ErrInvalidTransition}
		if op == OpDiscardItem && from == PhaseSaving {
			rej.Detail = "items cannot be removed while saves are in flight"
		}
		result.Err = rej
	} else if resolved, err := fn(next); err != nil {
		result.Err = &RejectionError{Op: op, Phase: from, Err: err}
	} else {
		s.phase = resolved
		result.Phase = resolved
	}

	notes := s.notes
	s.notes = nil

	var snapshot *State
	if result.Err == nil && s.onChange != nil {
		st := s.snapshotLocked()
		snapshot = &st
	}
	s.mu.Unlock()

	if result.Err != nil {
		s.emit(Diagnostic{
			Level:   slog.LevelWarn,
			Op:      op,
			Phase:   from,
			ItemID:  itemID,
			Err:     result.Err,
			Message: "batch operation rejected",
		})
	}
	for _, d := range notes {
		s.emit(d)
	}
	if snapshot != nil {
		s.onChange(*snapshot)
	}

	return result
}

// note queues a diagnostic to be emitted once the lock is released.
func (s *Session) note(level slog.Level, op Operation, itemID, msg string) {
	s.notes = append(s.notes, Diagnostic{
		Level:   level,
		Op:      op,
		Phase:   s.phase,
		ItemID:  itemID,
		Message: msg,
	})
}

func (s *Session) emit(d Diagnostic) {
	attrs := []any{"op", d.Op.String(), "phase", d.Phase.String()}
	if d.ItemID != "" {
		attrs = append(attrs, "item_id", d.ItemID)
	}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}
	s.logger.Log(context.Background(), d.Level, d.Message, attrs...)

	if s.onDiagnostic != nil {
		s.onDiagnostic(d)
	}
}
