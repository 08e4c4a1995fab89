// Package recorder tracks, in pure Go, which GPU resources a visibility-buffer
// frame's passes have written and read, and decides when the pass sequence must be
// split across a new encoder batch before a later pass can safely consume an
// earlier pass's output.
//
// WebGPU itself never exposes an explicit barrier or image-layout-transition API —
// the browser/native implementation inserts hazard tracking automatically within a
// single command encoder. What it does NOT do is let more than one pass kind be
// open at once: engine/renderer's backend holds at most one of frameEncoder,
// computeFrameEncoder, or shadowFrameEncoder active at a time (see
// BeginComputeFrame/EndComputeFrame, BeginFrame/EndFrame, BeginShadowFrame/
// EndShadowFrame in wgpu_renderer_backend.go). A pass sequence that alternates
// compute and render work — exactly what the visibility-buffer pipeline does
// (render-pass shadow cascades, then the visibility raster, then compute material
// bucketing, material evaluation and tonemap, then the render-pass swapchain
// blit) — must therefore be
// split into distinct encoder batches at each kind boundary. Recorder is the CPU
// bookkeeping that works out where those boundaries fall and flags read-before-write
// ordering bugs during development, mirroring the explicit state-tracking command
// recorders used by lower-level GPU APIs even though WebGPU itself stays implicit.
package recorder

import "fmt"

// ResourceHandle identifies one GPU resource (buffer or texture) tracked across a
// frame's pass sequence. Callers mint handles from their own resource tables (e.g.
// a worldrender.SceneTables buffer or a pass's intermediate storage texture); the
// Recorder treats the value as an opaque key.
type ResourceHandle string

// Stage identifies which kind of GPU work a pass performs, matching the three
// mutually exclusive encoder kinds the renderer backend supports.
type Stage int

const (
	StageCompute Stage = iota
	StageRaster
	StageShadow
)

func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageRaster:
		return "raster"
	case StageShadow:
		return "shadow"
	default:
		return "unknown"
	}
}

// Access describes how a pass touches a resource.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

// Layout describes the GPU-side interpretation a texture resource is currently
// bound under. Buffers are always LayoutNone; textures move between render-target
// and shader-read-only layouts across the visibility-buffer pipeline (e.g. the
// visibility targets are a render-target during raster, then shader-read during
// material evaluation).
type Layout int

const (
	LayoutNone Layout = iota
	LayoutRenderTarget
	LayoutShaderReadOnly
	LayoutDepthStencil
)

// TransitionState is the (stage, access, layout) a resource is declared under for
// one pass's Consume call.
type TransitionState struct {
	Stage  Stage
	Access Access
	Layout Layout
}

// resourceState is what the Recorder remembers about a resource after its most
// recent Consume call.
type resourceState struct {
	lastState     TransitionState
	lastBatch     int
	everWritten   bool
}

// Batch is one contiguous run of Consume calls that share a Stage; a new Batch
// starts whenever the declared Stage changes from the previous Consume call,
// mirroring the renderer backend's single-active-encoder-kind constraint.
type Batch struct {
	Index int
	Stage Stage
}

// Recorder tracks per-resource transition history across a frame's declared pass
// sequence and reports where encoder batch boundaries fall. It holds no GPU
// handles and issues no GPU calls; New/Reset/Consume are pure
// bookkeeping, called once per resource-touching step as the caller builds its
// list of passes for the frame.
type Recorder struct {
	resources    map[ResourceHandle]*resourceState
	batches      []Batch
	currentStage Stage
	haveBatch    bool
}

// New returns a Recorder ready to track one frame's pass sequence.
func New() *Recorder {
	return &Recorder{
		resources: make(map[ResourceHandle]*resourceState),
	}
}

// Reset clears all tracked state so the Recorder can be reused for the next frame.
func (r *Recorder) Reset() {
	r.resources = make(map[ResourceHandle]*resourceState)
	r.batches = nil
	r.haveBatch = false
}

// Consume declares that the pass currently being recorded touches handle under the
// given TransitionState. It returns true if this declaration starts a new encoder
// batch (the Stage differs from the previous Consume call in this frame), and
// an error if the declaration violates read-before-write ordering: a resource
// read or read-written before any pass has written it.
//
// Parameters:
//   - handle: the resource being touched
//   - declared: the stage/access/layout the current pass touches it under
//
// Returns:
//   - bool: true if a new encoder batch must begin before this pass records
//   - error: non-nil if handle is read before any prior Consume call wrote it
func (r *Recorder) Consume(handle ResourceHandle, declared TransitionState) (bool, error) {
	newBatch := !r.haveBatch || declared.Stage != r.currentStage
	if newBatch {
		r.haveBatch = true
		r.currentStage = declared.Stage
		r.batches = append(r.batches, Batch{Index: len(r.batches), Stage: declared.Stage})
	}

	state, exists := r.resources[handle]
	if !exists {
		state = &resourceState{}
		r.resources[handle] = state
	}

	if (declared.Access == AccessRead || declared.Access == AccessReadWrite) && !state.everWritten {
		return newBatch, fmt.Errorf("recorder: resource %q read in %s stage before any pass wrote it", handle, declared.Stage)
	}

	if declared.Access == AccessWrite || declared.Access == AccessReadWrite {
		state.everWritten = true
	}

	state.lastState = declared
	state.lastBatch = len(r.batches) - 1

	return newBatch, nil
}

// Batches returns the encoder batch sequence accumulated so far this frame, one
// entry per contiguous run of same-stage Consume calls, in declaration order.
func (r *Recorder) Batches() []Batch {
	return r.batches
}

// LastState returns the most recently declared TransitionState for handle and
// whether it has been declared at all this frame.
func (r *Recorder) LastState(handle ResourceHandle) (TransitionState, bool) {
	state, exists := r.resources[handle]
	if !exists {
		return TransitionState{}, false
	}
	return state.lastState, true
}
