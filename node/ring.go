package node

import (
	"fmt"
	"time"

	"github.com/mescam/misra/trace"
	"github.com/mescam/misra/transport"
)

// RingConfig describes a whole simulation run: the fixed ring size, the
// protected-region delay, and the per-kind loss probabilities applied at
// send time.
type RingConfig struct {
	Size      int
	HoldDelay time.Duration

	// Simulated transport loss, one probability per token kind in [0,1].
	PingLoss float64
	PongLoss float64

	// Seed for the loss decisions; zero picks a time-based seed.
	Seed int64

	// Mailbox capacity per rank; zero selects the transport default.
	Buffer int
}

// DefaultRingConfig returns a lossless ring of the given size.
func DefaultRingConfig(size int) *RingConfig {
	return &RingConfig{
		Size:      size,
		HoldDelay: DefaultHoldDelay,
		Buffer:    DefaultBuffer,
	}
}

// Validate checks if the config is valid.
func (c *RingConfig) Validate() error {
	if c.Size < 2 {
		return ErrRingTooSmall
	}
	if c.HoldDelay < 0 {
		return ErrNegativeHoldDelay
	}
	return nil
}

// Ring manages the N participants of one run: it owns the network fabric,
// the drop policy and the nodes, and starts and stops them together.
type Ring struct {
	config   *RingConfig
	network  *transport.Network
	nodes    []*Node
	recorder *trace.Recorder
}

// NewRing wires a full ring: one mailbox per rank, a shared loss-injecting
// sender, and one node per rank. The recorder may be nil.
func NewRing(config *RingConfig, recorder *trace.Recorder) (*Ring, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ring config: %w", err)
	}

	network, err := transport.NewNetwork(config.Size, config.Buffer, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	policy, err := transport.NewDropPolicy(config.PingLoss, config.PongLoss, seed)
	if err != nil {
		return nil, fmt.Errorf("invalid loss configuration: %w", err)
	}
	out := transport.NewLossy(network, policy, recorder)

	nodes := make([]*Node, config.Size)
	for rank := 0; rank < config.Size; rank++ {
		cfg := &Config{
			Rank:      rank,
			RingSize:  config.Size,
			HoldDelay: config.HoldDelay,
		}
		n, err := New(cfg, network.Mailbox(rank), out, recorder)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %d: %w", rank, err)
		}
		nodes[rank] = n
	}

	return &Ring{
		config:   config,
		network:  network,
		nodes:    nodes,
		recorder: recorder,
	}, nil
}

// Start launches every participant. Non-initiators start first so the seed
// tokens find live receivers; with buffered mailboxes the order is a
// nicety, not a correctness requirement.
func (r *Ring) Start() error {
	for rank := len(r.nodes) - 1; rank >= 0; rank-- {
		if err := r.nodes[rank].Start(); err != nil {
			return fmt.Errorf("failed to start node %d: %w", rank, err)
		}
	}
	return nil
}

// Stop halts all participants and waits for their loops to exit.
func (r *Ring) Stop() {
	for _, n := range r.nodes {
		n.Stop()
	}
}

// Nodes returns the ring members in rank order.
func (r *Ring) Nodes() []*Node {
	nodes := make([]*Node, len(r.nodes))
	copy(nodes, r.nodes)
	return nodes
}

// Size returns the number of participants.
func (r *Ring) Size() int {
	return r.config.Size
}

// Recorder returns the trace recorder the ring was built with, or nil.
func (r *Ring) Recorder() *trace.Recorder {
	return r.recorder
}
