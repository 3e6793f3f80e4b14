package digest

import "testing"

func TestShortIDDeterministic(t *testing.T) {
	a := ShortID("2025-01-01T00:00:00.000000Z", "search", "thread-1")
	b := ShortID("2025-01-01T00:00:00.000000Z", "search", "thread-1")
	if a != b {
		t.Errorf("same parts must yield the same id: %q != %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}

func TestShortIDDistinguishesParts(t *testing.T) {
	a := ShortID("ts", "search", "t1")
	b := ShortID("ts", "search", "t2")
	if a == b {
		t.Error("different parts should yield different ids")
	}
}

func TestHexLength(t *testing.T) {
	if got := Hex([]byte("payload")); len(got) != 64 {
		t.Errorf("expected full sha256 hex digest, got %d chars", len(got))
	}
}
