package pingpong

import "fmt"

/*
Protocol state machine (Misra's ping-pong mutual exclusion)

Two tokens circulate a unidirectional ring. A node holding a token may enter
the protected region. The marker m (LastForwarded) remembers the signed value
of the last token this node handed to its successor and drives the two
detection rules applied to every arrival:

  value == m        the companion token died somewhere behind us: this value
                    already passed through here once, and under per-link FIFO
                    the companion should have interleaved before it came back.
                    Regenerate the missing companion; the node now holds both
                    tokens and the main loop converges them into a fresh pair
                    of strictly larger generation.

  |value| < |m|     stale duplicate from a retired generation. Discard.

Step is a pure function over Machine; diagnostics come back to the caller,
which owns logging. The runtime in package node drives the four states.
*/

// State is a node's position in the protocol state machine.
type State int

const (
	Idle State = iota
	HoldingPing
	HoldingPong
	HoldingBoth
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case HoldingPing:
		return "HOLDING_PING"
	case HoldingPong:
		return "HOLDING_PONG"
	case HoldingBoth:
		return "HOLDING_BOTH"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Severity classifies a diagnostic emitted by a transition.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

// Diagnostic is an observational record of what a transition did. The
// protocol never consumes these; the caller logs them.
type Diagnostic struct {
	Severity Severity
	Event    Event
	Token    Token
	Message  string
}

// Event tags a diagnostic with the transition path that produced it.
type Event int

const (
	EventAccepted Event = iota
	EventRegenerated
	EventStale
	EventDoubleHold
)

// Machine is the per-node protocol state: the held token slots, the
// last-forwarded marker and the derived State. The zero value is a fresh
// non-initiator node (IDLE, marker 0).
type Machine struct {
	State         State
	HeldPing      *Token
	HeldPong      *Token
	LastForwarded int64
}

// Seeded returns the machine state of the initiator right after it has put
// the first token pair on the ring: the PONG(-1) left last, so the marker
// records its value.
func Seeded() Machine {
	return Machine{State: Idle, LastForwarded: -1}
}

func stateOf(heldPing, heldPong *Token) State {
	switch {
	case heldPing != nil && heldPong != nil:
		return HoldingBoth
	case heldPing != nil:
		return HoldingPing
	case heldPong != nil:
		return HoldingPong
	default:
		return Idle
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Step applies one incoming token to the machine and returns the resulting
// machine plus diagnostics for the caller to log. It performs, in order:
// loss detection (duplicate value regenerates the missing companion),
// staleness rejection, and the slot/state update for the incoming kind.
//
// Double hold — receiving a kind that is already held — has no recovery
// defined by the protocol. The policy here: keep the held token, discard the
// arrival, report a critical diagnostic. Applied symmetrically when a
// regeneration targets an occupied companion slot.
func Step(m Machine, incoming Token) (Machine, []Diagnostic) {
	var diags []Diagnostic

	if incoming.Value == m.LastForwarded {
		// This exact value was already forwarded once; the companion that
		// should have followed it never made it. Self-heal by regenerating
		// the missing kind at the same generation. Convergence to a larger
		// generation happens when the loop sees HOLDING_BOTH.
		//
		// A held companion falsifies the loss hypothesis: the tokens have
		// merely met at this node, so nothing is regenerated.
		missing := incoming.Kind.Companion()
		if !m.Holding(missing) {
			regen := Regenerate(missing, -incoming.Value)
			m, diags = place(m, regen, diags, Diagnostic{
				Severity: Warning,
				Event:    EventRegenerated,
				Token:    regen,
				Message:  fmt.Sprintf("%s token lost, regenerated %s", missing, regen),
			})
		}
	} else if incoming.Magnitude() < abs64(m.LastForwarded) {
		// Obsolete duplicate from a retired generation. No state change.
		diags = append(diags, Diagnostic{
			Severity: Warning,
			Event:    EventStale,
			Token:    incoming,
			Message:  fmt.Sprintf("discarding stale %s (marker %d)", incoming, m.LastForwarded),
		})
		return m, diags
	}

	m, diags = place(m, incoming, diags, Diagnostic{
		Severity: Info,
		Event:    EventAccepted,
		Token:    incoming,
		Message:  fmt.Sprintf("holding %s", incoming),
	})
	return m, diags
}

// place stores tok into its kind's slot, or reports the double-hold anomaly
// if the slot is occupied. ok is appended on success.
func place(m Machine, tok Token, diags []Diagnostic, ok Diagnostic) (Machine, []Diagnostic) {
	slot := &m.HeldPing
	if tok.Kind == Pong {
		slot = &m.HeldPong
	}

	if *slot != nil {
		diags = append(diags, Diagnostic{
			Severity: Critical,
			Event:    EventDoubleHold,
			Token:    tok,
			Message:  fmt.Sprintf("protocol anomaly: %s arrived while already holding %s, dropping arrival", tok, **slot),
		})
		return m, diags
	}

	held := tok
	*slot = &held
	m.State = stateOf(m.HeldPing, m.HeldPong)
	diags = append(diags, ok)
	return m, diags
}

// AfterForward returns the machine state once the held token of the given
// kind has been handed to the successor: the marker takes the forwarded
// value and the slot empties. The marker moves whether or not the transport
// actually delivers the send; a dropped send is precisely what the marker
// later detects.
func (m Machine) AfterForward(kind Kind, forwarded int64) Machine {
	m.LastForwarded = forwarded
	if kind == Ping {
		m.HeldPing = nil
	} else {
		m.HeldPong = nil
	}
	m.State = stateOf(m.HeldPing, m.HeldPong)
	return m
}

// Holding reports whether the machine currently holds a token of the kind.
func (m Machine) Holding(kind Kind) bool {
	if kind == Ping {
		return m.HeldPing != nil
	}
	return m.HeldPong != nil
}

// Held returns the held token of the kind, or false if the slot is empty.
func (m Machine) Held(kind Kind) (Token, bool) {
	if kind == Ping {
		if m.HeldPing == nil {
			return Token{}, false
		}
		return *m.HeldPing, true
	}
	if m.HeldPong == nil {
		return Token{}, false
	}
	return *m.HeldPong, true
}
