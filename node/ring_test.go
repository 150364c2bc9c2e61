package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mescam/misra/pingpong"
	"github.com/mescam/misra/trace"
	"github.com/mescam/misra/transport"
)

func TestRingConfigValidate(t *testing.T) {
	if err := (&RingConfig{Size: 1}).Validate(); err == nil {
		t.Fatal("expected error for a one-node ring")
	}
	if err := (&RingConfig{Size: 3, HoldDelay: -time.Second}).Validate(); err == nil {
		t.Fatal("expected error for a negative hold delay")
	}
	if err := DefaultRingConfig(4).Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestNewRingRejectsBadLoss(t *testing.T) {
	cfg := &RingConfig{Size: 2, PingLoss: 1.5}
	if _, err := NewRing(cfg, nil); err == nil {
		t.Fatal("expected error for out-of-range loss probability")
	}
}

func waitCount(t *testing.T, rec *trace.Recorder, min int, timeout time.Duration, what string, pred func(trace.Event) bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rec.Count(pred) >= min {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s events, saw %d", min, what, rec.Count(pred))
}

// A lossless ring keeps the first generation alive: both seed tokens come
// back to the initiator, nothing is regenerated and no larger generation
// ever appears.
func TestHealthyRingStaysAtFirstGeneration(t *testing.T) {
	rec := trace.NewRecorder()
	ring, err := NewRing(&RingConfig{Size: 4, HoldDelay: 0, Seed: 1}, rec)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	if err := ring.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	ping := pingpong.NewToken(pingpong.Ping, 1)
	pong := pingpong.NewToken(pingpong.Pong, -1)

	if ev := rec.WaitFor(ctx, 5*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindDeliver && ev.To == 0 && ev.Token == ping
	}); ev == nil {
		t.Fatal("PING(1) never completed a lap")
	}
	if ev := rec.WaitFor(ctx, 5*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindDeliver && ev.To == 0 && ev.Token == pong
	}); ev == nil {
		t.Fatal("PONG(-1) never completed a lap")
	}

	ring.Stop()

	for _, ev := range rec.Snapshot() {
		switch ev.Kind {
		case trace.KindRegenerate, trace.KindIncarnate:
			t.Fatalf("unexpected recovery on a lossless ring: %+v", ev)
		}
		if ev.Token.Magnitude() > 1 {
			t.Fatalf("generation grew without loss: %+v", ev)
		}
	}
}

// With every ping dropped at send time, each pong lap ends in a duplicate
// arrival: the ring regenerates the ping and incarnates a strictly larger
// generation, over and over. The regenerated magnitudes must be strictly
// increasing.
func TestPermanentPingLossKeepsConverging(t *testing.T) {
	rec := trace.NewRecorder()
	ring, err := NewRing(&RingConfig{Size: 4, HoldDelay: 0, PingLoss: 1, Seed: 42}, rec)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	if err := ring.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ev := rec.WaitFor(context.Background(), 10*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindRegenerate && ev.Token.Value >= 3
	}); ev == nil {
		t.Fatal("third regeneration never happened")
	}

	ring.Stop()

	var prev int64
	for _, ev := range rec.Snapshot() {
		switch ev.Kind {
		case trace.KindDeliver:
			if ev.Token.Kind == pingpong.Ping {
				t.Fatalf("a ping survived a lossy link: %+v", ev)
			}
		case trace.KindRegenerate:
			if ev.Token.Kind != pingpong.Ping {
				t.Fatalf("only pings go missing here, got %+v", ev)
			}
			if ev.Token.Value <= prev {
				t.Fatalf("regenerated magnitudes must strictly increase: %d after %d",
					ev.Token.Value, prev)
			}
			prev = ev.Token.Value
		}
	}
}

// dropOncePong suppresses exactly one pong, then delivers everything.
type dropOncePong struct {
	inner transport.Sender
	mu    sync.Mutex
	done  bool
}

func (s *dropOncePong) Send(from, to int, env pingpong.Envelope) error {
	s.mu.Lock()
	if !s.done && env.Token.Kind == pingpong.Pong {
		s.done = true
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.inner.Send(from, to, env)
}

// Losing a single pong must produce exactly one regeneration, at the lost
// token's magnitude, followed by one incarnation, after which the new pair
// circulates normally.
func TestSinglePongLossRecovers(t *testing.T) {
	const size = 3
	rec := trace.NewRecorder()
	network, err := transport.NewNetwork(size, 0, rec)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	out := &dropOncePong{inner: network}

	nodes := make([]*Node, size)
	for rank := 0; rank < size; rank++ {
		n, err := New(&Config{Rank: rank, RingSize: size}, network.Mailbox(rank), out, rec)
		if err != nil {
			t.Fatalf("New(%d): %v", rank, err)
		}
		nodes[rank] = n
	}
	for rank := size - 1; rank >= 0; rank-- {
		if err := nodes[rank].Start(); err != nil {
			t.Fatalf("Start(%d): %v", rank, err)
		}
	}
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	ctx := context.Background()

	// The seed pong is the first pong sent, so it is the one suppressed.
	if ev := rec.WaitFor(ctx, 5*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindRegenerate
	}); ev == nil {
		t.Fatal("the lost pong was never regenerated")
	} else if ev.Token != pingpong.NewToken(pingpong.Pong, -1) {
		t.Fatalf("regeneration must reuse the lost magnitude, got %s", ev.Token)
	}

	if ev := rec.WaitFor(ctx, 5*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindIncarnate
	}); ev == nil {
		t.Fatal("regenerating never led to incarnation")
	} else if ev.Token != pingpong.NewToken(pingpong.Ping, 2) {
		t.Fatalf("incarnation must use the next generation, got %s", ev.Token)
	}

	// The new pair must keep circulating past the initiator.
	if ev := rec.WaitFor(ctx, 5*time.Second, func(ev trace.Event) bool {
		return ev.Kind == trace.KindDeliver && ev.To == 0 &&
			ev.Token == pingpong.NewToken(pingpong.Pong, -2)
	}); ev == nil {
		t.Fatal("the incarnated pong never completed a lap")
	}
}

// Every rank keeps entering the protected region with both token kinds.
func TestEveryRankEntersRegionRepeatedly(t *testing.T) {
	rec := trace.NewRecorder()
	ring, err := NewRing(&RingConfig{Size: 3, HoldDelay: 0, Seed: 7}, rec)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	if err := ring.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ring.Stop()

	for rank := 0; rank < ring.Size(); rank++ {
		for _, kind := range []pingpong.Kind{pingpong.Ping, pingpong.Pong} {
			rank, kind := rank, kind
			waitCount(t, rec, 2, 5*time.Second, "enter_region", func(ev trace.Event) bool {
				return ev.Kind == trace.KindEnterRegion && ev.From == rank &&
					ev.Token.Kind == kind
			})
		}
	}
}
