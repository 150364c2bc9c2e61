package transport

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/mescam/misra/pingpong"
	"github.com/mescam/misra/trace"
)

// DropPolicy decides, per forward, whether a send is actually delivered.
// Each token kind carries its own loss probability so a run can starve one
// token while the other keeps circulating.
type DropPolicy struct {
	mu   sync.Mutex
	rng  *rand.Rand
	ping float64
	pong float64
}

// NewDropPolicy validates the probabilities and seeds the policy's own
// random source so runs are reproducible.
func NewDropPolicy(pingProb, pongProb float64, seed int64) (*DropPolicy, error) {
	for _, p := range []float64{pingProb, pongProb} {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("loss probability must be in [0,1], got %v", p)
		}
	}
	return &DropPolicy{
		rng:  rand.New(rand.NewSource(seed)),
		ping: pingProb,
		pong: pongProb,
	}, nil
}

// Deliver answers the yes/no question for one send of the given kind.
func (p *DropPolicy) Deliver(kind pingpong.Kind) bool {
	prob := p.ping
	if kind == pingpong.Pong {
		prob = p.pong
	}
	if prob <= 0 {
		return true
	}
	if prob >= 1 {
		return false
	}

	p.mu.Lock()
	r := p.rng.Float64()
	p.mu.Unlock()
	return r >= prob
}

// Lossy wraps a Sender with simulated channel unreliability: a dropped send
// vanishes silently, exactly like a message lost in transit. The protocol's
// only recovery from this is token regeneration.
type Lossy struct {
	inner    Sender
	policy   *DropPolicy
	recorder *trace.Recorder
}

// NewLossy decorates inner with the drop policy. The recorder may be nil.
func NewLossy(inner Sender, policy *DropPolicy, recorder *trace.Recorder) *Lossy {
	return &Lossy{inner: inner, policy: policy, recorder: recorder}
}

func (l *Lossy) Send(from, to int, env pingpong.Envelope) error {
	if !l.policy.Deliver(env.Token.Kind) {
		if l.recorder != nil {
			l.recorder.Record(trace.Event{
				Kind:    trace.KindDrop,
				From:    from,
				To:      to,
				Token:   env.Token,
				Lamport: env.Timestamp,
			})
		}
		return nil
	}
	return l.inner.Send(from, to, env)
}
