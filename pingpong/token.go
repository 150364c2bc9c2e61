package pingpong

import "fmt"

// Kind identifies which of the two circulating tokens a value belongs to.
type Kind int

const (
	Ping Kind = iota
	Pong
)

func (k Kind) String() string {
	switch k {
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Companion returns the other token kind of the pair.
func (k Kind) Companion() Kind {
	if k == Ping {
		return Pong
	}
	return Ping
}

// Token is a circulating permission object. Possession grants access to the
// protected region. Tokens are immutable values; the protocol never mutates
// one in place, it constructs replacements.
//
// Sign convention: a PING carries a positive value, its paired PONG carries
// the negation of the same magnitude. The magnitude is the generation counter
// and grows monotonically across regenerations.
type Token struct {
	Kind  Kind
	Value int64
}

// NewToken constructs a token of the given kind and signed value. An
// unrecognized kind is an internal contract violation and panics; it cannot
// be produced from untrusted input.
func NewToken(kind Kind, value int64) Token {
	if kind != Ping && kind != Pong {
		panic(fmt.Sprintf("pingpong: invalid token kind %d", int(kind)))
	}
	return Token{Kind: kind, Value: value}
}

// Magnitude returns the token's generation magnitude |value|.
func (t Token) Magnitude() int64 {
	if t.Value < 0 {
		return -t.Value
	}
	return t.Value
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%d)", t.Kind, t.Value)
}

// Regenerate constructs a replacement token of generation |seed| for the
// given kind, used when the companion of a received token is detected lost.
// The sign follows the pair convention regardless of the seed's sign.
func Regenerate(kind Kind, seed int64) Token {
	mag := seed
	if mag < 0 {
		mag = -mag
	}
	if kind == Pong {
		return NewToken(Pong, -mag)
	}
	return NewToken(Ping, mag)
}

// Incarnate produces a fresh PING/PONG pair of generation |x|+1. The new
// magnitude strictly exceeds the one that triggered convergence, so any
// still-in-flight token of the retired generation fails the staleness check
// downstream and gets discarded.
func Incarnate(x int64) (Token, Token) {
	mag := x
	if mag < 0 {
		mag = -mag
	}
	mag++
	return NewToken(Ping, mag), NewToken(Pong, -mag)
}
