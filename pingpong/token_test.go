package pingpong

import "testing"

func TestCompanion(t *testing.T) {
	if Ping.Companion() != Pong || Pong.Companion() != Ping {
		t.Fatal("companion kinds are a fixed pair")
	}
}

func TestNewTokenInvalidKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid kind")
		}
	}()
	NewToken(Kind(7), 1)
}

func TestMagnitude(t *testing.T) {
	if got := NewToken(Pong, -4).Magnitude(); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := NewToken(Ping, 4).Magnitude(); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestRegenerateSignConvention(t *testing.T) {
	// Seed sign must not matter; the pair convention decides.
	if got := Regenerate(Pong, 3); got != (Token{Pong, -3}) {
		t.Fatalf("expected PONG(-3), got %s", got)
	}
	if got := Regenerate(Pong, -3); got != (Token{Pong, -3}) {
		t.Fatalf("expected PONG(-3), got %s", got)
	}
	if got := Regenerate(Ping, -5); got != (Token{Ping, 5}) {
		t.Fatalf("expected PING(5), got %s", got)
	}
}

func TestIncarnate(t *testing.T) {
	ping, pong := Incarnate(5)
	if ping != (Token{Ping, 6}) || pong != (Token{Pong, -6}) {
		t.Fatalf("incarnate(5) must produce PING(6)/PONG(-6), got %s/%s", ping, pong)
	}
}

func TestIncarnateNegativeInput(t *testing.T) {
	ping, pong := Incarnate(-5)
	if ping.Magnitude() != 6 || pong.Magnitude() != 6 {
		t.Fatalf("new generation must strictly exceed |x|, got %s/%s", ping, pong)
	}
	if pong.Value >= 0 {
		t.Fatalf("pong must carry the negated magnitude, got %s", pong)
	}
}

func TestTokenString(t *testing.T) {
	if got := NewToken(Ping, 2).String(); got != "PING(2)" {
		t.Fatalf("got %q", got)
	}
	if got := NewToken(Pong, -2).String(); got != "PONG(-2)" {
		t.Fatalf("got %q", got)
	}
}
