package node

import "errors"

var (
	ErrRingTooSmall      = errors.New("ring size must be at least 2")
	ErrRankOutOfRange    = errors.New("rank must be in [0, ring size)")
	ErrNegativeHoldDelay = errors.New("hold delay must not be negative")
	ErrAlreadyStarted    = errors.New("node already started")
)
