package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mescam/misra/lamport"
	"github.com/mescam/misra/logger"
	"github.com/mescam/misra/pingpong"
	"github.com/mescam/misra/trace"
)

// Node is one ring participant: it owns its protocol machine, its Lamport
// clock and its mailbox, and runs the protocol loop on a single goroutine.
// Nodes never share memory; the only cross-node interaction is envelopes
// over the transport.
type Node struct {
	config   *Config
	clock    *lamport.Clock
	mailbox  mailbox
	out      sender
	recorder *trace.Recorder

	mu      sync.RWMutex
	machine pingpong.Machine

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// sender matches transport.Sender without importing it here; the tests
// substitute scripted implementations.
type sender interface {
	Send(from, to int, env pingpong.Envelope) error
}

// mailbox matches transport.Mailbox.
type mailbox interface {
	Receive(ctx context.Context) (pingpong.Envelope, error)
	Poll() (pingpong.Envelope, bool)
}

// New creates a node with the given configuration, wired to its mailbox and
// outgoing sender. The recorder may be nil.
func New(config *Config, mbox mailbox, out sender, recorder *trace.Recorder) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if mbox == nil || out == nil {
		return nil, fmt.Errorf("mailbox and sender are required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		config:   config,
		clock:    lamport.NewClock(),
		mailbox:  mbox,
		out:      out,
		recorder: recorder,
		machine:  pingpong.Machine{},
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the protocol loop. The initiator seeds the first token
// pair before entering the common loop.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true

	n.wg.Add(1)
	go n.run()
	return nil
}

// Stop cancels the loop and waits for it to exit. The protocol itself has
// no termination; stopping is a property of the hosting runtime only.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()
}

// Rank returns the node's ring position.
func (n *Node) Rank() int {
	return n.config.Rank
}

// Config returns the node's configuration.
func (n *Node) Config() *Config {
	return n.config
}

// Snapshot returns a copy of the current protocol machine state, safe to
// read while the loop runs.
func (n *Node) Snapshot() pingpong.Machine {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.machine
}

// LogicalTime returns the node's current Lamport time.
func (n *Node) LogicalTime() int64 {
	return n.clock.Now()
}

func (n *Node) setMachine(m pingpong.Machine) {
	n.mu.Lock()
	n.machine = m
	n.mu.Unlock()
}

func (n *Node) run() {
	defer n.wg.Done()

	n.infof("node initialized, successor is %d", n.config.Successor())

	if n.config.Initiator() {
		n.seed()
	}

	for {
		if n.ctx.Err() != nil {
			return
		}

		switch n.Snapshot().State {
		case pingpong.Idle:
			env, err := n.mailbox.Receive(n.ctx)
			if err != nil {
				return
			}
			n.consume(env)

		case pingpong.HoldingPing:
			if !n.holdAndForward(pingpong.Ping) {
				return
			}

		case pingpong.HoldingPong:
			if !n.holdAndForward(pingpong.Pong) {
				return
			}

		case pingpong.HoldingBoth:
			n.converge()
		}
	}
}

// seed puts the first PING/PONG pair on the ring. The marker is left at the
// pong's value, as if the node had just forwarded it.
func (n *Node) seed() {
	ping := pingpong.NewToken(pingpong.Ping, 1)
	pong := pingpong.NewToken(pingpong.Pong, -1)

	n.warningf("I am the chosen one, generating first tokens")
	n.forward(ping)
	n.forward(pong)
	n.setMachine(pingpong.Seeded())
}

// consume merges the envelope's timestamp into the clock, then applies the
// token to the protocol machine. The clock merge must happen first so the
// diagnostics carry causally consistent timestamps.
func (n *Node) consume(env pingpong.Envelope) {
	n.clock.Observe(env.Timestamp)
	n.infof("received %s", env.Token)

	m, diags := pingpong.Step(n.Snapshot(), env.Token)
	n.setMachine(m)
	n.report(diags)
}

// holdAndForward drives a single-token holding state: simulate the
// protected region, absorb any envelopes that arrived meanwhile, then hand
// the token to the successor. Returns false if the node was stopped during
// the delay.
func (n *Node) holdAndForward(kind pingpong.Kind) bool {
	tok, ok := n.Snapshot().Held(kind)
	if !ok {
		return true
	}

	n.record(trace.KindEnterRegion, tok, -1)
	n.infof("entering protected region with %s", tok)
	if !n.pause(n.config.HoldDelay) {
		return false
	}
	n.infof("leaving protected region")
	n.record(trace.KindExitRegion, tok, -1)

	// Absorb messages that arrived while occupied, without blocking the
	// forwarding step.
	for {
		env, ok := n.mailbox.Poll()
		if !ok {
			break
		}
		n.consume(env)
	}

	// The marker moves whether or not the transport delivers the send;
	// a lost forward is exactly what the marker detects later.
	n.forward(tok)
	n.setMachine(n.Snapshot().AfterForward(kind, tok.Value))
	return true
}

// converge resolves HOLDING_BOTH: incarnate a fresh pair of strictly larger
// generation and forward both tokens. The node must not remain in this
// state across a suspension point.
func (n *Node) converge() {
	m := n.Snapshot()
	held, ok := m.Held(pingpong.Ping)
	if !ok {
		// Unreachable: HOLDING_BOTH implies both slots are filled.
		n.setMachine(m.AfterForward(pingpong.Ping, m.LastForwarded))
		return
	}

	ping, pong := pingpong.Incarnate(held.Value)
	n.warningf("holding both tokens, incarnating generation %d", ping.Value)
	n.record(trace.KindIncarnate, ping, -1)

	n.forward(ping)
	m = m.AfterForward(pingpong.Ping, ping.Value)
	n.forward(pong)
	m = m.AfterForward(pingpong.Pong, pong.Value)
	n.setMachine(m)
}

// forward stamps the token with the next logical timestamp and sends it to
// the successor. Delivery is the transport's decision.
func (n *Node) forward(tok pingpong.Token) {
	env := pingpong.NewEnvelope(n.clock.Tick(), tok)
	n.infof("sending %s to node %d", tok, n.config.Successor())
	n.record(trace.KindSend, tok, n.config.Successor())

	if err := n.out.Send(n.config.Rank, n.config.Successor(), env); err != nil {
		n.criticalf("send to %d failed: %v", n.config.Successor(), err)
	}
}

// pause sleeps for the protected-region delay, abandoning early on stop.
func (n *Node) pause(d time.Duration) bool {
	if d <= 0 {
		return n.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-n.ctx.Done():
		return false
	}
}

// report logs transition diagnostics and mirrors the notable ones into the
// trace.
func (n *Node) report(diags []pingpong.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case pingpong.Warning:
			n.warningf("%s", d.Message)
		case pingpong.Critical:
			n.criticalf("%s", d.Message)
		default:
			n.infof("%s", d.Message)
		}

		switch d.Event {
		case pingpong.EventRegenerated:
			n.record(trace.KindRegenerate, d.Token, -1)
		case pingpong.EventStale:
			n.record(trace.KindStale, d.Token, -1)
		case pingpong.EventDoubleHold:
			n.record(trace.KindAnomaly, d.Token, -1)
		}
	}
}

func (n *Node) record(kind trace.Kind, tok pingpong.Token, to int) {
	if n.recorder == nil {
		return
	}
	n.recorder.Record(trace.Event{
		Kind:    kind,
		From:    n.config.Rank,
		To:      to,
		Token:   tok,
		Lamport: n.clock.Now(),
	})
}

func (n *Node) infof(format string, v ...interface{}) {
	n.logf(logger.LevelInfo, format, v...)
}

func (n *Node) warningf(format string, v ...interface{}) {
	n.logf(logger.LevelWarning, format, v...)
}

func (n *Node) criticalf(format string, v ...interface{}) {
	n.logf(logger.LevelCritical, format, v...)
}

func (n *Node) logf(level logger.Level, format string, v ...interface{}) {
	prefix := fmt.Sprintf("[%02d] t=%d ", n.config.Rank, n.clock.Now())
	logger.Logf(level, prefix+format, v...)
}
