package resource

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
)

// MaterialLoader builds and caches a compute pipeline.Pipeline per material URL,
// coalescing concurrent requests for the same material behind an Once[T] cell —
// grounded on engine/loader's per-path model cache, generalized from "whole
// model" caching to "one pipeline per material" caching, since the
// visibility-buffer pipeline evaluates materials independently of mesh identity.
type MaterialLoader struct {
	source StreamSource

	cells sync.Map // url string -> *Once[pipeline.Pipeline]
}

// NewMaterialLoader constructs a MaterialLoader that checks each material URL
// against source before building its pipeline.
func NewMaterialLoader(source StreamSource) *MaterialLoader {
	return &MaterialLoader{source: source}
}

// Load builds a compute pipeline from the WGSL compute shader at file path url and
// caches it keyed by url, or returns the cached pipeline if url was already loaded.
// source is opened only to confirm that url resolves; the shader itself is read
// from url directly. The pipeline is not registered with a renderer here.
func (l *MaterialLoader) Load(url string) (pipeline.Pipeline, error) {
	cellAny, _ := l.cells.LoadOrStore(url, &Once[pipeline.Pipeline]{})
	cell := cellAny.(*Once[pipeline.Pipeline])

	return cell.Get(func() (pipeline.Pipeline, error) {
		r, err := l.source.Open(url)
		if err != nil {
			return nil, err
		}
		r.Close()

		s := shader.NewShader(url, shader.ShaderTypeCompute, url)
		p := pipeline.NewPipeline(url, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
		return p, nil
	})
}

// VariantLoader caches one pipeline per (url, variantKey) pair on top of a
// MaterialLoader, modeling §4.8's "specialization-constant blocks" at the
// cache-key level. shader.NewShader only loads WGSL from a source path, with
// no override-constant injection point, so Load does not yet substitute
// constants into the compiled shader — every variantKey for a given url
// currently resolves to that url's one base pipeline. The cache-key plumbing
// is real and ready for a substitution step once the shader package grows a
// from-source (rather than from-path) constructor; noted as a deliberate
// simplification rather than threading ad hoc text substitution through a
// temp file.
type VariantLoader struct {
	base *MaterialLoader

	mu    sync.Mutex
	cells map[string]*Once[pipeline.Pipeline]
}

// NewVariantLoader constructs a VariantLoader layered over base.
func NewVariantLoader(base *MaterialLoader) *VariantLoader {
	return &VariantLoader{base: base, cells: make(map[string]*Once[pipeline.Pipeline])}
}

// Load returns the pipeline cached under url plus variantKey, creating the entry on
// first use from the base MaterialLoader's pipeline for url. constants is not
// applied: every variantKey for a url resolves to that url's base pipeline.
//
// Parameters:
//   - url: the base material's URL
//   - variantKey: a caller-assigned identity for this constants combination (e.g.
//     a sorted "name=value" join); two calls with the same url and variantKey
//     return the same cached pipeline regardless of whether constants differs
//   - constants: the pipeline-overridable constant entries for this variant
func (l *VariantLoader) Load(url, variantKey string, constants map[string]float64) (pipeline.Pipeline, error) {
	cacheKey := url + "#" + variantKey

	l.mu.Lock()
	cell, ok := l.cells[cacheKey]
	if !ok {
		cell = &Once[pipeline.Pipeline]{}
		l.cells[cacheKey] = cell
	}
	l.mu.Unlock()

	return cell.Get(func() (pipeline.Pipeline, error) {
		base, err := l.base.Load(url)
		if err != nil {
			return nil, fmt.Errorf("resource: failed to load base material %q for variant %q: %w", url, variantKey, err)
		}
		return base, nil
	})
}
