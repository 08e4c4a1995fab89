package recorder

import "testing"

func TestConsumeStartsNewBatchOnStageChange(t *testing.T) {
	r := New()

	firstNew, err := r.Consume("visbuffer", TransitionState{Stage: StageRaster, Access: AccessWrite, Layout: LayoutRenderTarget})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !firstNew {
		t.Fatal("expected the first Consume call to start a new batch")
	}

	sameStage, err := r.Consume("visbuffer", TransitionState{Stage: StageRaster, Access: AccessRead, Layout: LayoutRenderTarget})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sameStage {
		t.Fatal("expected same-stage Consume call to not start a new batch")
	}

	switched, err := r.Consume("visbuffer", TransitionState{Stage: StageCompute, Access: AccessRead, Layout: LayoutShaderReadOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !switched {
		t.Fatal("expected stage change to start a new batch")
	}

	if len(r.Batches()) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(r.Batches()))
	}
}

func TestConsumeRejectsReadBeforeWrite(t *testing.T) {
	r := New()

	_, err := r.Consume("materialCounts", TransitionState{Stage: StageCompute, Access: AccessRead, Layout: LayoutNone})
	if err == nil {
		t.Fatal("expected error reading a resource before it was ever written")
	}
}

func TestConsumeAllowsReadAfterWrite(t *testing.T) {
	r := New()

	if _, err := r.Consume("materialCounts", TransitionState{Stage: StageCompute, Access: AccessWrite}); err != nil {
		t.Fatalf("unexpected error on write: %v", err)
	}
	if _, err := r.Consume("materialCounts", TransitionState{Stage: StageCompute, Access: AccessRead}); err != nil {
		t.Fatalf("unexpected error on read-after-write: %v", err)
	}
}

func TestLastStateReportsMostRecentDeclaration(t *testing.T) {
	r := New()
	r.Consume("visbuffer", TransitionState{Stage: StageRaster, Access: AccessWrite, Layout: LayoutRenderTarget})
	r.Consume("visbuffer", TransitionState{Stage: StageCompute, Access: AccessRead, Layout: LayoutShaderReadOnly})

	state, ok := r.LastState("visbuffer")
	if !ok {
		t.Fatal("expected visbuffer to have a recorded state")
	}
	if state.Layout != LayoutShaderReadOnly {
		t.Fatalf("expected LayoutShaderReadOnly, got %v", state.Layout)
	}
}

func TestLastStateUnknownHandle(t *testing.T) {
	r := New()
	_, ok := r.LastState("nonexistent")
	if ok {
		t.Fatal("expected ok=false for a handle never consumed")
	}
}

func TestResetClearsState(t *testing.T) {
	r := New()
	r.Consume("visbuffer", TransitionState{Stage: StageRaster, Access: AccessWrite})
	r.Reset()

	if len(r.Batches()) != 0 {
		t.Fatalf("expected no batches after Reset, got %d", len(r.Batches()))
	}
	if _, err := r.Consume("visbuffer", TransitionState{Stage: StageRaster, Access: AccessRead}); err == nil {
		t.Fatal("expected read-before-write error after Reset cleared write history")
	}
}
