package status

import "testing"

func TestFaviconProducesValidICOHeader(t *testing.T) {
	b := favicon()
	if len(b) < 6 {
		t.Fatalf("icon too short: %d bytes", len(b))
	}
	if b[0] != 0 || b[1] != 0 {
		t.Fatalf("expected reserved header bytes to be zero, got %d %d", b[0], b[1])
	}
	if b[2] != 1 || b[3] != 0 {
		t.Fatalf("expected ICO type field 1, got %d %d", b[2], b[3])
	}
	if b[4] != 1 || b[5] != 0 {
		t.Fatalf("expected exactly one image entry, got %d %d", b[4], b[5])
	}
}

func TestFaviconIsCachedAcrossCalls(t *testing.T) {
	a := favicon()
	b := favicon()
	if len(a) != len(b) {
		t.Fatalf("expected repeated calls to return the same cached bytes")
	}
}
