package node

import "time"

// Default configuration constants
const (
	DefaultHoldDelay = 200 * time.Millisecond
	DefaultBuffer    = 16
)

// Config holds the configuration for a single ring participant.
type Config struct {
	// Node identity, explicit rather than derived from any global
	// communicator state.
	Rank     int
	RingSize int

	// HoldDelay simulates protected-region occupancy while a token is
	// held. Zero is valid and keeps tests deterministic and fast.
	HoldDelay time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(rank, ringSize int) *Config {
	return &Config{
		Rank:      rank,
		RingSize:  ringSize,
		HoldDelay: DefaultHoldDelay,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.RingSize < 2 {
		return ErrRingTooSmall
	}
	if c.Rank < 0 || c.Rank >= c.RingSize {
		return ErrRankOutOfRange
	}
	if c.HoldDelay < 0 {
		return ErrNegativeHoldDelay
	}
	return nil
}

// Successor returns the only destination this node ever sends to.
func (c *Config) Successor() int {
	return (c.Rank + 1) % c.RingSize
}

// Initiator reports whether this rank seeds the first token pair. By
// convention rank 0 is the chosen one.
func (c *Config) Initiator() bool {
	return c.Rank == 0
}
