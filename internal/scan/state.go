package scan

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event is not legal in the current phase.
var ErrInvalidTransition = errors.New("invalid state transition")

// Phase is the lifecycle position of one scan channel.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseBusy    Phase = "busy"
	PhaseSettled Phase = "settled"
)

// Phases returns every phase of the state machine.
func Phases() []Phase {
	return []Phase{PhaseIdle, PhaseBusy, PhaseSettled}
}

// UIState is the state of one scan channel.
type UIState struct {
	Kind      Kind     `json:"kind"`
	Phase     Phase    `json:"phase"`
	RequestID string   `json:"request_id,omitempty"`
	Outcome   *Outcome `json:"outcome,omitempty"`
}

// NewState returns the initial idle state for a channel.
func NewState(kind Kind) UIState {
	return UIState{Kind: kind, Phase: PhaseIdle}
}

// EventType enumerates the inputs of the state machine.
type EventType string

const (
	// EventDispatched is raised when a request leaves for the scan service.
	EventDispatched EventType = "dispatched"
	// EventSettled is raised when the in-flight request produced an outcome.
	EventSettled EventType = "settled"
	// EventRejected is raised when a precondition failed locally.
	EventRejected EventType = "rejected"
)

// Event drives a Transition.
type Event struct {
	Type      EventType
	RequestID string
	Outcome   Outcome
}

// Dispatched builds the event for a request that has been sent.
func Dispatched(requestID string) Event {
	return Event{Type: EventDispatched, RequestID: requestID}
}

// Settled builds the event for a request that produced an outcome.
func Settled(requestID string, outcome Outcome) Event {
	return Event{Type: EventSettled, RequestID: requestID, Outcome: outcome}
}

// Rejected builds the event for a scan refused by a local precondition.
func Rejected(outcome Outcome) Event {
	return Event{Type: EventRejected, Outcome: outcome}
}

// Transition computes the next state. It never mutates s.
func Transition(s UIState, ev Event) (UIState, error) {
	switch ev.Type {
	case EventDispatched:
		if s.Phase == PhaseBusy {
			return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Type, s.Phase)
		}
		return UIState{Kind: s.Kind, Phase: PhaseBusy, RequestID: ev.RequestID}, nil

	case EventSettled:
		if s.Phase != PhaseBusy {
			return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Type, s.Phase)
		}
		if ev.RequestID != s.RequestID {
			return s, fmt.Errorf("%w: settlement for %q while %q is in flight",
				ErrInvalidTransition, ev.RequestID, s.RequestID)
		}
		out := ev.Outcome
		return UIState{Kind: s.Kind, Phase: PhaseSettled, RequestID: ev.RequestID, Outcome: &out}, nil

	case EventRejected:
		if s.Phase == PhaseBusy {
			return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Type, s.Phase)
		}
		out := ev.Outcome
		return UIState{Kind: s.Kind, Phase: PhaseSettled, Outcome: &out}, nil

	default:
		return s, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev.Type)
	}
}

// Affordance is the control that triggers a scan of one kind.
type Affordance struct {
	Kind    Kind   `json:"kind"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// BusyLabel is shown on an affordance while its request is in flight.
const BusyLabel = "Scanning..."

// RestingLabel returns the idle label for an affordance.
func RestingLabel(kind Kind) string {
	switch kind {
	case KindFile:
		return "Scan File"
	case KindText:
		return "Scan Text"
	default:
		return "Scan"
	}
}
