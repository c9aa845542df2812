package domain

var allowedTransitions = map[RequestState][]RequestState{
	StateCreated:              {StatePendingApproval, StateTicketCreationFailed},
	StatePendingApproval:      {StateApproved, StateRejected},
	StateApproved:             {StateRunning, StateTriggerFailed},
	StateRunning:              {StateSucceeded, StateFailed},
	StateSucceeded:            {StateFeedbackPending},
	StateFailed:               {StateFeedbackPending},
	StateFeedbackPending:      {StateClosed},
	StateTicketCreationFailed: {},
	StateRejected:             {},
	StateTriggerFailed:        {},
	StateClosed:               {},
}

// IsValidTransition reports whether next is reachable from current in one step.
func IsValidTransition(current, next RequestState) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition can leave the state.
func (s RequestState) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// IsKnown reports whether the state is part of the lifecycle graph.
func (s RequestState) IsKnown() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// HasTicket reports whether a request in this state must carry a ticket reference.
func (s RequestState) HasTicket() bool {
	switch s {
	case StateCreated, StateTicketCreationFailed, "":
		return false
	default:
		return true
	}
}

// EntersFeedback reports whether the state auto-advances to FeedbackPending.
func (s RequestState) EntersFeedback() bool {
	return s == StateSucceeded || s == StateFailed
}
