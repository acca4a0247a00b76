package pcc

import "testing"

func TestUUIDGenerator_New(t *testing.T) {
	var gen IDGenerator = UUIDGenerator{}

	first := gen.New()
	second := gen.New()
	if len(first) != 36 {
		t.Errorf("id = %q, want 36-character UUID", first)
	}
	if first == second {
		t.Errorf("consecutive ids collide: %q", first)
	}
}
