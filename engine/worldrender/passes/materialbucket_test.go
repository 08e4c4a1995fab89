package passes

import "testing"

func TestPrefixSumMaterialOffsetsEmpty(t *testing.T) {
	offsets, total := PrefixSumMaterialOffsets(nil)
	if len(offsets) != 0 {
		t.Fatalf("expected no offsets, got %d", len(offsets))
	}
	if total != 0 {
		t.Fatalf("expected total 0, got %d", total)
	}
}

func TestPrefixSumMaterialOffsetsExclusive(t *testing.T) {
	counts := []uint32{3, 0, 5, 2}
	offsets, total := PrefixSumMaterialOffsets(counts)

	want := []uint32{0, 3, 3, 8}
	for i, w := range want {
		if offsets[i] != w {
			t.Fatalf("offset[%d] = %d, want %d", i, offsets[i], w)
		}
	}
	if total != 10 {
		t.Fatalf("expected total 10, got %d", total)
	}
}

func TestPrefixSumMaterialOffsetsSingleMaterial(t *testing.T) {
	offsets, total := PrefixSumMaterialOffsets([]uint32{42})
	if len(offsets) != 1 || offsets[0] != 0 {
		t.Fatalf("expected single offset 0, got %v", offsets)
	}
	if total != 42 {
		t.Fatalf("expected total 42, got %d", total)
	}
}

func TestPrefixSumMaterialOffsetsAllZero(t *testing.T) {
	offsets, total := PrefixSumMaterialOffsets([]uint32{0, 0, 0})
	for i, o := range offsets {
		if o != 0 {
			t.Fatalf("offset[%d] = %d, want 0", i, o)
		}
	}
	if total != 0 {
		t.Fatalf("expected total 0, got %d", total)
	}
}
