package resource

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

// Manager bundles the mesh/material/variant/texture loaders over one shared
// SceneTables and dispatches load requests onto the teacher's worker pool
// (automation/tools/worker) instead of the calling goroutine, so a frame in flight on the render
// tick never blocks on disk or image decode.
type Manager struct {
	Mesh     *MeshLoader
	Material *MaterialLoader
	Variant  *VariantLoader
	Texture  *TextureLoader

	pool worker.DynamicWorkerPool

	taskID int
}

// NewManager constructs a Manager whose loaders read from source and write into
// tables/r, running load tasks across workers background goroutines.
func NewManager(source StreamSource, r renderer.Renderer, tables *worldrender.SceneTables, workers int) *Manager {
	materialLoader := NewMaterialLoader(source)
	return &Manager{
		Mesh:     NewMeshLoader(source, tables),
		Material: materialLoader,
		Variant:  NewVariantLoader(materialLoader),
		Texture:  NewTextureLoader(source, r, &tables.Textures),
		pool:     worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
	}
}

// LoadMeshAsync submits a mesh load to the worker pool and returns a channel that
// receives exactly one (MeshData, error) result once the load completes.
func (m *Manager) LoadMeshAsync(url string) <-chan meshResult {
	out := make(chan meshResult, 1)
	id := m.nextTaskID()
	m.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			data, err := m.Mesh.Load(url)
			out <- meshResult{data: data, err: err}
			close(out)
			return data, err
		},
	})
	return out
}

// LoadTextureAsync submits a texture load to the worker pool and returns a
// channel that receives exactly one (bindless index, error) result once the load
// completes.
func (m *Manager) LoadTextureAsync(url string) <-chan textureResult {
	out := make(chan textureResult, 1)
	id := m.nextTaskID()
	m.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			idx, err := m.Texture.Load(url)
			out <- textureResult{index: idx, err: err}
			close(out)
			return idx, err
		},
	})
	return out
}

func (m *Manager) nextTaskID() int {
	m.taskID++
	return m.taskID
}

type meshResult struct {
	data MeshData
	err  error
}

type textureResult struct {
	index uint32
	err   error
}
