package domain

import "testing"

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to RequestState
		want     bool
	}{
		{StateCreated, StatePendingApproval, true},
		{StateCreated, StateTicketCreationFailed, true},
		{StateCreated, StateApproved, false},
		{StatePendingApproval, StateApproved, true},
		{StatePendingApproval, StateRejected, true},
		{StatePendingApproval, StateRunning, false},
		{StateApproved, StateRunning, true},
		{StateApproved, StateTriggerFailed, true},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateRunning, false},
		{StateSucceeded, StateFeedbackPending, true},
		{StateFailed, StateFeedbackPending, true},
		{StateTriggerFailed, StateFeedbackPending, false},
		{StateRejected, StateFeedbackPending, false},
		{StateFeedbackPending, StateClosed, true},
		{StateClosed, StateCreated, false},
	}
	for _, tc := range cases {
		if got := IsValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := map[RequestState]bool{
		StateTicketCreationFailed: true,
		StateRejected:             true,
		StateTriggerFailed:        true,
		StateClosed:               true,
	}
	for state := range allowedTransitions {
		if got := state.IsTerminal(); got != terminal[state] {
			t.Errorf("%s.IsTerminal() = %v, want %v", state, got, terminal[state])
		}
	}
	if RequestState("bogus").IsTerminal() {
		t.Errorf("unknown states are not terminal")
	}
}

func TestHasTicket(t *testing.T) {
	for state := range allowedTransitions {
		want := state != StateCreated && state != StateTicketCreationFailed
		if got := state.HasTicket(); got != want {
			t.Errorf("%s.HasTicket() = %v, want %v", state, got, want)
		}
	}
}

func TestReplayState(t *testing.T) {
	trail := []AuditRecord{
		{Event: EventSubmitted, PriorState: "", NewState: StateCreated},
		{Event: EventTicketCreated, PriorState: StateCreated, NewState: StatePendingApproval},
		{Event: EventApproved, PriorState: StatePendingApproval, NewState: StateApproved},
		{Event: EventJobTriggered, PriorState: StateApproved, NewState: StateRunning},
		{Event: EventJobSucceeded, PriorState: StateRunning, NewState: StateSucceeded},
		{Event: EventFeedbackRequested, PriorState: StateSucceeded, NewState: StateFeedbackPending},
		{Event: EventFeedbackSkipped, PriorState: StateFeedbackPending, NewState: StateClosed},
	}
	got, err := ReplayState(trail)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got != StateClosed {
		t.Fatalf("replayed state = %s, want %s", got, StateClosed)
	}

	t.Run("gap in trail", func(t *testing.T) {
		broken := append([]AuditRecord{}, trail[:2]...)
		broken = append(broken, trail[3])
		if _, err := ReplayState(broken); err == nil {
			t.Fatalf("expected mismatch error")
		}
	})

	t.Run("illegal edge", func(t *testing.T) {
		bad := []AuditRecord{
			{Event: EventSubmitted, NewState: StateCreated},
			{Event: EventApproved, PriorState: StateCreated, NewState: StateApproved},
		}
		if _, err := ReplayState(bad); err == nil {
			t.Fatalf("expected invalid transition error")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := ReplayState(nil); err == nil {
			t.Fatalf("expected error for empty trail")
		}
	})
}

func TestCloneIsDeep(t *testing.T) {
	ref := "INC0010001"
	req := &InstallationRequest{ID: "r1", TicketRef: &ref, Feedback: &Feedback{Rating: 4}}
	cp := req.Clone()
	*cp.TicketRef = "changed"
	cp.Feedback.Rating = 1
	if req.TicketRefValue() != "INC0010001" || req.Feedback.Rating != 4 {
		t.Fatalf("clone shares memory with original")
	}
}
