package testfixtures

import "testing"

func TestIDGeneratorSequencesPerPrefix(t *testing.T) {
	gen := NewIDGenerator("alloc")

	if got := gen.Next(); got != "alloc-1" {
		t.Fatalf("expected alloc-1, got %q", got)
	}
	if got := gen.NextFor("room"); got != "room-1" {
		t.Fatalf("expected room-1, got %q", got)
	}
	if got := gen.Next(); got != "alloc-2" {
		t.Fatalf("expected alloc-2, got %q", got)
	}

	gen.Reset()
	if got := gen.Next(); got != "alloc-1" {
		t.Fatalf("expected alloc-1 after reset, got %q", got)
	}
}

func TestIDGeneratorDefaultPrefix(t *testing.T) {
	if got := NewIDGenerator("").Next(); got != "id-1" {
		t.Fatalf("expected id-1, got %q", got)
	}
}
