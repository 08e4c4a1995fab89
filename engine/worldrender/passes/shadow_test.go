package passes

import "testing"

func TestDefaultCascadeSplitsCoversFullRange(t *testing.T) {
	splits := defaultCascadeSplits(0.1, 100.0)

	if splits[0].near != 0.1 {
		t.Fatalf("expected first cascade near 0.1, got %v", splits[0].near)
	}
	if splits[shadowCascadeCount-1].far != 100.0 {
		t.Fatalf("expected last cascade far 100.0, got %v", splits[shadowCascadeCount-1].far)
	}
}

func TestDefaultCascadeSplitsAreContiguous(t *testing.T) {
	splits := defaultCascadeSplits(1.0, 1000.0)

	for i := 1; i < shadowCascadeCount; i++ {
		if splits[i].near != splits[i-1].far {
			t.Fatalf("cascade %d near (%v) does not match cascade %d far (%v)", i, splits[i].near, i-1, splits[i-1].far)
		}
	}
}

func TestDefaultCascadeSplitsGrowHalfExtent(t *testing.T) {
	splits := defaultCascadeSplits(1.0, 1000.0)

	for i := 1; i < shadowCascadeCount; i++ {
		if splits[i].halfExtent <= splits[i-1].halfExtent {
			t.Fatalf("expected increasing half-extent per cascade, got %v then %v", splits[i-1].halfExtent, splits[i].halfExtent)
		}
	}
}
