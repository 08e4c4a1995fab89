package passes

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/common"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const blitPipelineKey = "worldrender_blit"

// BlitPass copies the tone map pass's RGBA8Unorm result onto the acquired swapchain
// surface with a fullscreen-triangle draw, standing in for the teacher's per-model
// forward draw as the last step before Present. The draw carries a throwaway 3-vertex,
// 3-index mesh since DrawCall always binds a vertex and index buffer, even though the
// blit vertex shader computes its position from vertex_index alone.
type BlitPass struct {
	r        renderer.Renderer
	mesh     bind_group_provider.BindGroupProvider
	bindings bind_group_provider.BindGroupProvider
}

// NewBlitPass registers the fullscreen-triangle blit pipeline and binds it to the
// tone map pass's result texture.
//
// Parameters:
//   - r: the renderer to register the pipeline, build the sampler, and init the bind group against
//   - result: the tone map pass's RGBA8Unorm output view
//
// Returns:
//   - *BlitPass: the constructed pass, ready to Run inside a BeginFrame/EndFrame bracket
//   - error: an error if pipeline registration, sampler creation, or bind group init fails
func NewBlitPass(r renderer.Renderer, result *wgpu.TextureView) (*BlitPass, error) {
	vertShader := shader.NewShader(blitPipelineKey+"_vs", shader.ShaderTypeVertex, "engine/worldrender/passes/assets/blit_vert.wgsl")
	fragShader := shader.NewShader(blitPipelineKey+"_fs", shader.ShaderTypeFragment, "engine/worldrender/passes/assets/blit_frag.wgsl")

	p := pipeline.NewPipeline(blitPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vertShader),
		pipeline.WithFragmentShader(fragShader),
	)
	if err := r.RegisterPipelines(p); err != nil {
		return nil, fmt.Errorf("passes: failed to register blit pipeline: %w", err)
	}

	bindings := bind_group_provider.NewBindGroupProvider("blit")
	samplerScratch := bind_group_provider.NewBindGroupProvider("blit_sampler")
	if err := r.InitSampler(samplerScratch, 0, common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
		LodMinClamp:  0,
		LodMaxClamp:  1,
	}); err != nil {
		return nil, fmt.Errorf("passes: failed to create blit sampler: %w", err)
	}
	bindings.SetTextureView(0, result)
	bindings.SetSampler(1, samplerScratch.Sampler(0))
	if err := r.InitBindGroup(bindings, fragShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return nil, fmt.Errorf("passes: failed to init blit bind group: %w", err)
	}

	mesh := bind_group_provider.NewBindGroupProvider("blit_mesh")
	vertexData := make([]byte, 4)
	indexData := make([]byte, 12)
	binary.LittleEndian.PutUint32(indexData[0:4], 0)
	binary.LittleEndian.PutUint32(indexData[4:8], 1)
	binary.LittleEndian.PutUint32(indexData[8:12], 2)
	if err := r.InitMeshBuffers(mesh, vertexData, indexData, 3); err != nil {
		return nil, fmt.Errorf("passes: failed to init blit mesh buffers: %w", err)
	}

	return &BlitPass{r: r, mesh: mesh, bindings: bindings}, nil
}

// Run issues the fullscreen-triangle draw. Must be called within the caller's
// BeginFrame/EndFrame bracket, after the swapchain surface has been acquired.
func (p *BlitPass) Run() error {
	return p.r.DrawCall(blitPipelineKey, p.mesh, 1, []bind_group_provider.BindGroupProvider{p.bindings})
}
