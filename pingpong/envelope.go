package pingpong

import "github.com/google/uuid"

// Tag identifies the message kind on the wire. Token messages are the only
// kind the protocol exchanges.
type Tag int

const TagToken Tag = 0

func (t Tag) String() string {
	if t == TagToken {
		return "TOKEN"
	}
	return "UNKNOWN"
}

// Envelope pairs a Lamport timestamp with a token payload. Envelopes are
// sent and received atomically and are transport-agnostic; the ID exists
// purely for tracing.
type Envelope struct {
	ID        string
	Timestamp int64
	Tag       Tag
	Token     Token
}

// NewEnvelope wraps a token with the send-time logical timestamp.
func NewEnvelope(timestamp int64, token Token) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Timestamp: timestamp,
		Tag:       TagToken,
		Token:     token,
	}
}
