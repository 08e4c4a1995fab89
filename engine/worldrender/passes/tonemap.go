package passes

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const tonemapPipelineKey = "worldrender_tonemap"

// tonemapTileSize matches tonemap.wgsl's @workgroup_size(8,8,1).
const tonemapTileSize = 8

// TonemapPass applies ACES (Narkowicz fit) tone mapping and gamma correction to the
// material evaluation pass's HDR albedo target, producing the RGBA8Unorm result
// that BlitPass draws onto the swapchain image.
type TonemapPass struct {
	r        renderer.Renderer
	provider bind_group_provider.BindGroupProvider
}

// NewTonemapPass registers the tone map compute pipeline and binds it to the given
// HDR source and LDR destination texture views.
//
// Parameters:
//   - r: the renderer to register the pipeline and bind group against
//   - hdrAlbedo: the material evaluation pass's RGBA16Float accumulation target view
//   - result: the RGBA8Unorm storage texture view tone-mapped output is written to
//
// Returns:
//   - *TonemapPass: the constructed pass, ready to Run
//   - error: an error if pipeline registration or bind group initialization fails
func NewTonemapPass(r renderer.Renderer, hdrAlbedo, result *wgpu.TextureView) (*TonemapPass, error) {
	tonemapShader := shader.NewShader(tonemapPipelineKey, shader.ShaderTypeCompute, "engine/worldrender/passes/assets/tonemap.wgsl")
	p := pipeline.NewPipeline(tonemapPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(tonemapShader))

	if err := r.RegisterPipelines(p); err != nil {
		return nil, fmt.Errorf("passes: failed to register tonemap pipeline: %w", err)
	}

	provider := bind_group_provider.NewBindGroupProvider("tonemap")
	provider.SetTextureView(0, hdrAlbedo)
	provider.SetTextureView(1, result)
	if err := r.InitBindGroup(provider, tonemapShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return nil, fmt.Errorf("passes: failed to init tonemap bind group: %w", err)
	}

	return &TonemapPass{r: r, provider: provider}, nil
}

// Run dispatches the tone map compute pass over the full width x height target.
// Must be called within a BeginComputeFrame/EndComputeFrame block on the renderer.
func (p *TonemapPass) Run(width, height int) {
	groupsX := uint32((width + tonemapTileSize - 1) / tonemapTileSize)
	groupsY := uint32((height + tonemapTileSize - 1) / tonemapTileSize)
	p.r.DispatchCompute(tonemapPipelineKey, p.provider, [3]uint32{groupsX, groupsY, 1})
}

// acesA, acesB, acesC, acesD, acesE are the Narkowicz 2015 ACES filmic fit
// coefficients, matching tonemap.wgsl's aces_narkowicz function exactly.
const (
	acesA = 2.51
	acesB = 0.03
	acesC = 2.43
	acesD = 0.59
	acesE = 0.14
)

// ACESNarkowicz is the pure-Go, GPU-free mirror of tonemap.wgsl's aces_narkowicz
// function: the Narkowicz 2015 fit to the ACES filmic tone curve. Exists so the
// tone map pass's core formula has a unit test that does not require a GPU to run.
//
// Parameters:
//   - x: an HDR linear color channel value
//
// Returns:
//   - float32: the tone-mapped value, clamped to [0, 1]
func ACESNarkowicz(x float32) float32 {
	mapped := (x * (acesA*x + acesB)) / (x*(acesC*x+acesD) + acesE)
	if mapped < 0 {
		return 0
	}
	if mapped > 1 {
		return 1
	}
	return mapped
}
