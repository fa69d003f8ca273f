package batch

import "fmt"

// AllFailedMessage is the summary surfaced when no item in a non-empty batch saved.
const AllFailedMessage = "All items failed to save"

// Outcome records what the persistence collaborator reported for one item.
type Outcome struct {
	Reason string
	Saved  bool
}

// aggregator counts per-item save outcomes for a single save run.
type aggregator struct {
	outcomes map[string]Outcome
	saved    int
	failed   int
}

func newAggregator() *aggregator {
	return &aggregator{outcomes: make(map[string]Outcome)}
}

func (a *aggregator) checkReport(id string) error {
	if prev, ok := a.outcomes[id]; ok {
		state := "failed"
		if prev.Saved {
			state = "saved"
		}
		return fmt.Errorf("%w: %s already %s", ErrDuplicateOutcome, id, state)
	}
	return nil
}

func (a *aggregator) recordSuccess(id string) {
	a.outcomes[id] = Outcome{Saved: true}
	a.saved++
}

func (a *aggregator) recordFailure(id, reason string) {
	a.outcomes[id] = Outcome{Reason: reason}
	a.failed++
}

func (a *aggregator) reported() int {
	return a.saved + a.failed
}

// resolve picks the terminal phase for a batch of itemCount items.
func (a *aggregator) resolve(itemCount int) (Phase, string) {
	if itemCount > 0 && a.failed == itemCount {
		return PhaseError, AllFailedMessage
	}
	return PhaseComplete, ""
}

func (a *aggregator) snapshot() map[string]Outcome {
	out := make(map[string]Outcome, len(a.outcomes))
	for id, o := range a.outcomes {
		out[id] = o
	}
	return out
}

func (a *aggregator) reset() {
	a.outcomes = make(map[string]Outcome)
	a.saved = 0
	a.failed = 0
}
