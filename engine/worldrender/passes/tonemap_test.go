package passes

import "testing"

func TestACESNarkowiczZeroIsZero(t *testing.T) {
	if got := ACESNarkowicz(0); got != 0 {
		t.Fatalf("expected 0 for input 0, got %v", got)
	}
}

func TestACESNarkowiczClampsAboveOne(t *testing.T) {
	got := ACESNarkowicz(100.0)
	if got > 1.0 {
		t.Fatalf("expected output clamped to <= 1.0, got %v", got)
	}
}

func TestACESNarkowiczMonotonicBelowKnee(t *testing.T) {
	a := ACESNarkowicz(0.2)
	b := ACESNarkowicz(0.5)
	if !(a < b) {
		t.Fatalf("expected ACESNarkowicz to be increasing below the shoulder, got a=%v b=%v", a, b)
	}
}

func TestACESNarkowiczNeverNegative(t *testing.T) {
	for _, x := range []float32{0, 0.01, 0.1, 1, 5, 50} {
		if got := ACESNarkowicz(x); got < 0 {
			t.Fatalf("ACESNarkowicz(%v) = %v, expected >= 0", x, got)
		}
	}
}
