// Package transport provides the point-to-point message layer for a ring of
// in-process participants: one FIFO mailbox per rank and a loss-injection
// wrapper used to exercise the protocol's recovery path.
//
// Delivery guarantees: reliable and FIFO per sender→receiver link. Both come
// directly from buffered Go channels; the staleness and duplicate detection
// in package pingpong are unsound without per-link FIFO.
package transport

import (
	"context"
	"fmt"

	"github.com/mescam/misra/pingpong"
	"github.com/mescam/misra/trace"
)

// Sender delivers envelopes to ring members addressed by rank.
type Sender interface {
	Send(from, to int, env pingpong.Envelope) error
}

// Mailbox is a rank's incoming message queue.
type Mailbox struct {
	c chan pingpong.Envelope
}

// Receive blocks until the next envelope arrives or ctx is done.
func (m *Mailbox) Receive(ctx context.Context) (pingpong.Envelope, error) {
	select {
	case env := <-m.c:
		return env, nil
	case <-ctx.Done():
		return pingpong.Envelope{}, ctx.Err()
	}
}

// Poll is the non-blocking probe: it returns a buffered envelope if one is
// already waiting, without suspending.
func (m *Mailbox) Poll() (pingpong.Envelope, bool) {
	select {
	case env := <-m.c:
		return env, true
	default:
		return pingpong.Envelope{}, false
	}
}

// Len reports how many envelopes are currently buffered.
func (m *Mailbox) Len() int {
	return len(m.c)
}

// Network is the in-process ring fabric: a buffered channel per rank.
type Network struct {
	inboxes  []*Mailbox
	recorder *trace.Recorder
}

const defaultBuffer = 16

// NewNetwork creates mailboxes for size ranks. buffer <= 0 selects the
// default. The recorder may be nil.
func NewNetwork(size, buffer int, recorder *trace.Recorder) (*Network, error) {
	if size < 2 {
		return nil, fmt.Errorf("ring needs at least 2 participants, got %d", size)
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	inboxes := make([]*Mailbox, size)
	for i := range inboxes {
		inboxes[i] = &Mailbox{c: make(chan pingpong.Envelope, buffer)}
	}
	return &Network{inboxes: inboxes, recorder: recorder}, nil
}

// Size returns the number of ranks on the fabric.
func (n *Network) Size() int {
	return len(n.inboxes)
}

// Mailbox returns the incoming queue for a rank.
func (n *Network) Mailbox(rank int) *Mailbox {
	return n.inboxes[rank]
}

// Send enqueues env on the destination's mailbox. It blocks if the mailbox
// is full; with two tokens on the ring the buffers never fill in practice.
func (n *Network) Send(from, to int, env pingpong.Envelope) error {
	if to < 0 || to >= len(n.inboxes) {
		return fmt.Errorf("unknown destination rank %d", to)
	}

	n.inboxes[to].c <- env
	if n.recorder != nil {
		n.recorder.Record(trace.Event{
			Kind:    trace.KindDeliver,
			From:    from,
			To:      to,
			Token:   env.Token,
			Lamport: env.Timestamp,
		})
	}
	return nil
}
