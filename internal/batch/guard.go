package batch

// transitions is the complete phase guard. A (phase, operation) pair that is
// missing here is rejected without touching state. saveComplete resolves to
// PhaseComplete or PhaseError once the aggregator has looked at the counters,
// so its entry only records that the call is allowed.
var transitions = map[Phase]map[Operation]Phase{
	PhaseIdle: {
		OpLoadBatch:    PhaseReviewing,
		OpStartLoading: PhaseLoading,
		OpReset:        PhaseIdle,
	},
	PhaseLoading: {
		OpLoadBatch:  PhaseReviewing,
		OpLoadFailed: PhaseError,
		OpReset:      PhaseIdle,
	},
	PhaseReviewing: {
		OpSelectItem:   PhaseReviewing,
		OpUpdateItem:   PhaseReviewing,
		OpDiscardItem:  PhaseReviewing,
		OpStartEditing: PhaseEditing,
		OpSaveStart:    PhaseSaving,
		OpReset:        PhaseIdle,
	},
	PhaseEditing: {
		OpUpdateItem:    PhaseEditing,
		OpFinishEditing: PhaseReviewing,
		OpReset:         PhaseIdle,
	},
	PhaseSaving: {
		OpSaveItemSuccess: PhaseSaving,
		OpSaveItemFailure: PhaseSaving,
		OpSaveComplete:    PhaseComplete,
		OpReset:           PhaseIdle,
	},
	PhaseComplete: {
		OpReset: PhaseIdle,
	},
	PhaseError: {
		OpReset: PhaseIdle,
	},
}

// permit looks up the guard table. The returned phase is only meaningful when
// ok is true.
func permit(phase Phase, op Operation) (next Phase, ok bool) {
	row, found := transitions[phase]
	if !found {
		return phase, false
	}
	next, ok = row[op]
	if !ok {
		return phase, false
	}
	return next, true
}

// Allowed reports whether op may be issued while the session is in phase.
func Allowed(phase Phase, op Operation) bool {
	_, ok := permit(phase, op)
	return ok
}
