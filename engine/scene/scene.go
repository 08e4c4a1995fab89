// Package scene defines Scene, the per-view collaborator the engine's tick/
// render loop drives once per frame. The teacher's original Scene owned a
// full entity/component registry (GameObject, Model, Animator) and issued one
// instanced draw call per registered Animator group — that orchestrator is
// one of the named, out-of-scope collaborators this renderer treats as an
// external interface rather than a component to implement (see
// engine/worldrender/frame.Renderer for the actual per-frame render path).
// Scene here is kept just deep enough for engine.go's render loop to stay
// valid: a concrete Scene resolves a Camera and Renderer and exposes the
// tick/render hooks the engine calls, while the real work of driving a
// visibility-buffer frame happens in whatever owns the Renderer, outside
// these hooks entirely.
package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-go/engine/camera"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
)

// Scene is the named collaborator engine.go's render loop drives each frame.
// Scenes can be hot-swapped via the Active flag to switch between different
// views or levels. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// SetRenderer replaces the scene's renderer.
	//
	// Parameters:
	//   - r: the new renderer
	SetRenderer(r renderer.Renderer)

	// PrepareCompute is called by the engine within a BeginComputeFrame/
	// EndComputeFrame bracket, once per frame per active scene. The entity/
	// component orchestrator this hook drove in the teacher is an
	// out-of-scope collaborator here; a concrete render path is expected to
	// be driven directly by its owner, not through this hook.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	PrepareCompute(deltaTime float32)

	// PrepareShadows is called by the engine once per frame per active
	// scene, outside any frame bracket.
	PrepareShadows()

	// PrepareLightCulling is called by the engine once per frame per active
	// scene, outside any frame bracket.
	PrepareLightCulling()

	// DrawCalls is called by the engine within a BeginFrame/EndFrame
	// bracket, once per frame per active scene.
	//
	// Returns:
	//   - error: non-nil if the scene's draw calls could not be issued
	DrawCalls() error
}

// scene is the default Scene implementation: a named Camera/Renderer pair
// with no-op tick/render hooks. Construct one with New and configure it with
// SceneBuilderOptions.
type scene struct {
	mu sync.RWMutex

	name   string
	active bool

	cam camera.Camera
	r   renderer.Renderer
}

// New constructs a Scene collaborator shell, active by default.
//
// Parameters:
//   - options: functional options for scene configuration
//
// Returns:
//   - Scene: the newly created scene
func New(options ...SceneBuilderOption) Scene {
	s := &scene{active: true}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) SetRenderer(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r = r
}

func (s *scene) PrepareCompute(deltaTime float32) {}

func (s *scene) PrepareShadows() {}

func (s *scene) PrepareLightCulling() {}

func (s *scene) DrawCalls() error { return nil }
