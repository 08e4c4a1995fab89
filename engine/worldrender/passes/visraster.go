package passes

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
	"github.com/cogentcore/webgpu/wgpu"
)

const visRasterPipelineKey = "worldrender_visibility_raster"

// VisibilityRasterPass rasterizes every meshlet in the scene into two R32Uint
// color targets (primitive_index, instance_id) and a depth target, using a single
// vertex-pulling instanced draw with no vertex or index buffer bound. This replaces
// the teacher's forward-shaded pipeline's one draw-per-mesh-instance approach with a
// single scene-wide draw whose instance count is the total meshlet count.
type VisibilityRasterPass struct {
	r renderer.Renderer

	primitiveIDView *wgpu.TextureView
	primitiveIDTex  *wgpu.Texture
	instanceIDView  *wgpu.TextureView
	instanceIDTex   *wgpu.Texture
	depthView       *wgpu.TextureView
	depthTex        *wgpu.Texture

	provider bind_group_provider.BindGroupProvider

	width, height int
}

// NewVisibilityRasterPass allocates the visibility buffer's two R32Uint color
// targets and a Depth32Float reverse-Z depth target, and registers the
// vertex-pulling raster pipeline shared by the whole scene.
//
// Parameters:
//   - r: the renderer to allocate textures, register the pipeline, and init the bind group against
//   - width, height: the visibility buffer's resolution, normally the swapchain's
//   - cameraUniform, vertexPositions, vertexIndices, primitiveIndices, meshlets, meshInstances:
//     the scene's GPU buffers, bound identically for every meshlet draw this frame
//
// Returns:
//   - *VisibilityRasterPass: the constructed pass, ready to Render
//   - error: an error if texture allocation, pipeline registration, or bind group init fails
func NewVisibilityRasterPass(
	r renderer.Renderer,
	width, height int,
	cameraUniform, vertexPositions, vertexIndices, primitiveIndices, meshletsBuf, meshInstances *wgpu.Buffer,
) (*VisibilityRasterPass, error) {
	primitiveIDView, primitiveIDTex, err := r.CreateStorageTexture(width, height, wgpu.TextureFormatR32Uint, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return nil, fmt.Errorf("passes: failed to create visibility primitive-id target: %w", err)
	}

	instanceIDView, instanceIDTex, err := r.CreateStorageTexture(width, height, wgpu.TextureFormatR32Uint, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return nil, fmt.Errorf("passes: failed to create visibility instance-id target: %w", err)
	}

	depthView, depthTex, err := r.CreateShadowDepthTexture(width, height)
	if err != nil {
		return nil, fmt.Errorf("passes: failed to create visibility depth target: %w", err)
	}

	vertShader := shader.NewShader(visRasterPipelineKey+"_vs", shader.ShaderTypeVertex, "engine/worldrender/passes/assets/visraster_vert.wgsl")
	fragShader := shader.NewShader(visRasterPipelineKey+"_fs", shader.ShaderTypeFragment, "engine/worldrender/passes/assets/visraster_frag.wgsl")

	p := pipeline.NewPipeline(visRasterPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vertShader),
		pipeline.WithFragmentShader(fragShader),
		pipeline.WithColorTargetFormats(wgpu.TextureFormatR32Uint, wgpu.TextureFormatR32Uint),
		pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
		pipeline.WithDepthCompare(wgpu.CompareFunctionGreaterEqual),
		pipeline.WithDepthTestEnabled(true),
		pipeline.WithDepthWriteEnabled(true),
	)
	if err := r.RegisterPipelines(p); err != nil {
		return nil, fmt.Errorf("passes: failed to register visibility raster pipeline: %w", err)
	}

	provider := bind_group_provider.NewBindGroupProvider("visibility_raster")
	provider.SetBuffer(0, cameraUniform)
	provider.SetBuffer(1, vertexPositions)
	provider.SetBuffer(2, vertexIndices)
	provider.SetBuffer(3, primitiveIndices)
	provider.SetBuffer(4, meshletsBuf)
	provider.SetBuffer(5, meshInstances)
	if err := r.InitBindGroup(provider, vertShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return nil, fmt.Errorf("passes: failed to init visibility raster bind group: %w", err)
	}

	return &VisibilityRasterPass{
		r:               r,
		primitiveIDView: primitiveIDView,
		primitiveIDTex:  primitiveIDTex,
		instanceIDView:  instanceIDView,
		instanceIDTex:   instanceIDTex,
		depthView:       depthView,
		depthTex:        depthTex,
		provider:        provider,
		width:           width,
		height:          height,
	}, nil
}

// Render issues the scene-wide vertex-pulling draw: one instance per meshlet, each
// instance drawing a fixed MaxTrianglesPerMeshlet*3 vertices (with degenerate
// triangles past a meshlet's real count discarded in the vertex shader). Brackets
// its own BeginVisibilityFrame/EndVisibilityFrame rather than expecting the caller
// to bracket it, unlike the compute passes. In frame.Render it runs after the
// shadow pass.
//
// Parameters:
//   - totalMeshletDraws: the scene-wide meshlet instance count (SceneTables.TotalMeshletDraws)
//
// Returns:
//   - error: an error if beginning the frame or the draw call fails
func (p *VisibilityRasterPass) Render(totalMeshletDraws uint32) error {
	if err := p.r.BeginVisibilityFrame(); err != nil {
		return fmt.Errorf("passes: failed to begin visibility frame: %w", err)
	}
	defer p.r.EndVisibilityFrame()

	p.r.BeginVisibilityPass([]*wgpu.TextureView{p.primitiveIDView, p.instanceIDView}, p.depthView)
	vertexCount := uint32(worldrender.MaxTrianglesPerMeshlet * 3)
	if err := p.r.VisibilityDrawCall(visRasterPipelineKey, p.provider, vertexCount, totalMeshletDraws); err != nil {
		p.r.EndVisibilityPass()
		return fmt.Errorf("passes: visibility raster draw failed: %w", err)
	}
	p.r.EndVisibilityPass()
	return nil
}

// PrimitiveIDView returns the R32Uint color target packing, per covered pixel, the
// global primitive (triangle) index of the nearest surface.
func (p *VisibilityRasterPass) PrimitiveIDView() *wgpu.TextureView {
	return p.primitiveIDView
}

// InstanceIDView returns the R32Uint color target packing, per covered pixel, the
// mesh instance index of the nearest surface — read by the material bucketing pass
// to resolve each pixel's material.
func (p *VisibilityRasterPass) InstanceIDView() *wgpu.TextureView {
	return p.instanceIDView
}

// DepthView returns the reverse-Z depth target populated by the raster pass.
func (p *VisibilityRasterPass) DepthView() *wgpu.TextureView {
	return p.depthView
}

// Resize releases the current visibility buffer targets; the caller must construct
// a new VisibilityRasterPass at the new resolution, since the underlying textures
// are fixed-size on allocation.
func (p *VisibilityRasterPass) Resize() {
	p.primitiveIDTex.Release()
	p.instanceIDTex.Release()
	p.depthTex.Release()
}
