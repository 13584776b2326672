package nanoid

import "testing"

func TestString(t *testing.T) {
	id := String()
	if !IsValid(id, NumLowerUpper, defaultSize) {
		t.Errorf("unexpected id %q", id)
	}
	if id == String() {
		t.Error("expected distinct ids")
	}
}

func TestLowerSize(t *testing.T) {
	id := Lower(10)
	if !IsValid(id, NumLower, 10) {
		t.Errorf("unexpected id %q", id)
	}
	if IsValid("ABC", NumLower, 3) {
		t.Error("uppercase must not be valid for lower alphabet")
	}
}
