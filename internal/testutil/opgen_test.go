package testutil

import (
	"bytes"
	"testing"
)

func TestOpGeneratorIsDeterministic(t *testing.T) {
	t.Parallel()

	input := []byte("some fuzz bytes that drive the generator for a while")
	cfg := DefaultOpGenConfig()

	a := NewOpGenerator(input, 8, 3, &cfg)
	b := NewOpGenerator(input, 8, 3, &cfg)

	for a.HasMore() {
		opA, opB := a.NextOp(), b.NextOp()
		if opA.String() != opB.String() {
			t.Fatalf("ops diverged: %s vs %s", opA, opB)
		}
	}
}

func TestOpGeneratorStartsWithWriter(t *testing.T) {
	t.Parallel()

	cfg := DefaultOpGenConfig()
	g := NewOpGenerator(nil, 8, 1, &cfg)

	if got := g.NextOp().Kind; got != OpStartWriter {
		t.Fatalf("first op kind=%d, want OpStartWriter", got)
	}
}

func TestOpGeneratorRespectsRatesAndBounds(t *testing.T) {
	t.Parallel()

	input := make([]byte, 4096)
	for i := range input {
		input[i] = byte(i * 7)
	}

	cfg := OpGenConfig{WriteRate: 100}
	g := NewOpGenerator(input, 6, 2, &cfg)
	g.NextOp()

	for g.HasMore() {
		op := g.NextOp()
		if op.Kind != OpWrite {
			t.Fatalf("got %s, want only writes", op)
		}

		if len(op.Msg) > 5 || bytes.IndexByte(op.Msg, '\n') >= 0 {
			t.Fatalf("write %q should fit and have no newline with zero invalid rates", op.Msg)
		}
	}
}

func TestByteStreamZeroAfterExhausted(t *testing.T) {
	t.Parallel()

	s := NewByteStream([]byte{3})

	if got := s.NextInt(2); got != 1 {
		t.Fatalf("NextInt=%d, want 1", got)
	}

	if s.HasMore() {
		t.Fatal("stream should be exhausted")
	}

	if got := s.NextByte(); got != 0 {
		t.Fatalf("NextByte=%d, want 0", got)
	}

	if got := string(s.NextPayload(2)); got != "aa" {
		t.Fatalf("NextPayload=%q, want %q", got, "aa")
	}
}
