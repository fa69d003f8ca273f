package batch

// Phase is the lifecycle stage of a batch review session.
type Phase int

// Phase constants. Exactly one is active at a time.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReviewing
	PhaseEditing
	PhaseSaving
	PhaseComplete
	PhaseError
)

var phaseNames = [...]string{
	PhaseIdle:      "idle",
	PhaseLoading:   "loading",
	PhaseReviewing: "reviewing",
	PhaseEditing:   "editing",
	PhaseSaving:    "saving",
	PhaseComplete:  "complete",
	PhaseError:     "error",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// IsValid reports whether p is one of the seven defined phases.
func (p Phase) IsValid() bool {
	return p >= PhaseIdle && p <= PhaseError
}

// IsTerminal reports whether only reset can leave p.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Phases lists every phase in declaration order.
func Phases() []Phase {
	return []Phase{PhaseIdle, PhaseLoading, PhaseReviewing, PhaseEditing, PhaseSaving, PhaseComplete, PhaseError}
}

// Operation names a public action on the session.
type Operation int

// Operation constants.
const (
	OpLoadBatch Operation = iota
	OpStartLoading
	OpLoadFailed
	OpReset
	OpSelectItem
	OpUpdateItem
	OpDiscardItem
	OpStartEditing
	OpFinishEditing
	OpSaveStart
	OpSaveItemSuccess
	OpSaveItemFailure
	OpSaveComplete
)

var operationNames = [...]string{
	OpLoadBatch:       "loadBatch",
	OpStartLoading:    "startLoading",
	OpLoadFailed:      "loadFailed",
	OpReset:           "reset",
	OpSelectItem:      "selectItem",
	OpUpdateItem:      "updateItem",
	OpDiscardItem:     "discardItem",
	OpStartEditing:    "startEditing",
	OpFinishEditing:   "finishEditing",
	OpSaveStart:       "saveStart",
	OpSaveItemSuccess: "saveItemSuccess",
	OpSaveItemFailure: "saveItemFailure",
	OpSaveComplete:    "saveComplete",
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "unknown"
	}
	return operationNames[o]
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(operationNames))
	for i := range operationNames {
		ops = append(ops, Operation(i))
	}
	return ops
}
