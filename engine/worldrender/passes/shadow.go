package passes

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/engine/light"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
	"github.com/cogentcore/webgpu/wgpu"
)

const shadowCascadeCount = 4

const shadowPipelineKey = "worldrender_shadow_cascade"

// shadowResolution is the per-cascade shadow map resolution (width == height).
const shadowResolution = 4096

// cascadeSplit is one cascade's near/far range and the scene-space half-extent its
// orthographic projection must cover.
type cascadeSplit struct {
	near, far  float32
	halfExtent float32
}

// defaultCascadeSplits divides [near, far] into four contiguous ranges at the fixed
// ratios 0, 0.07, 0.2, 0.5 and 1.0 of the span (each cascade's near equals the
// previous cascade's far), scaling halfExtent with the split's far distance so each
// cascade covers roughly the view frustum slice it is responsible for.
func defaultCascadeSplits(near, far float32) [shadowCascadeCount]cascadeSplit {
	ratios := [shadowCascadeCount + 1]float32{0.0, 0.07, 0.2, 0.5, 1.0}
	var splits [shadowCascadeCount]cascadeSplit
	for i := 0; i < shadowCascadeCount; i++ {
		splitNear := near + ratios[i]*(far-near)
		splitFar := near + ratios[i+1]*(far-near)
		splits[i] = cascadeSplit{
			near:       splitNear,
			far:        splitFar,
			halfExtent: splitFar * 0.5,
		}
	}
	return splits
}

// ShadowPass renders the four cascaded shadow map splits for the scene's single
// shadow-casting directional light into a shared Depth32Float texture array, and
// writes the first cascade's view-projection matrix and the cascade layer indices
// into the light entry so the material evaluation pass can sample them.
type ShadowPass struct {
	r renderer.Renderer

	layerViews []*wgpu.TextureView
	arrayView  *wgpu.TextureView
	texture    *wgpu.Texture

	cascadeProviders [shadowCascadeCount]bind_group_provider.BindGroupProvider
}

// NewShadowPass allocates the cascaded shadow array texture and registers the
// vertex-pulling shadow depth pipeline shared by all four cascades.
//
// Parameters:
//   - r: the renderer to allocate textures and register the pipeline against
//   - vertexPositions, vertexIndices, primitiveIndices, meshlets, meshInstances:
//     the scene tables' GPU buffers, bound identically to the visibility raster pass
//
// Returns:
//   - *ShadowPass: the constructed pass, ready to RenderCascades
//   - error: an error if texture or pipeline creation fails
func NewShadowPass(
	r renderer.Renderer,
	vertexPositions, vertexIndices, primitiveIndices, meshletsBuf, meshInstances *wgpu.Buffer,
) (*ShadowPass, error) {
	layerViews, arrayView, texture, err := r.CreateShadowArrayTexture(shadowResolution, shadowResolution, shadowCascadeCount)
	if err != nil {
		return nil, fmt.Errorf("passes: failed to create shadow cascade array: %w", err)
	}

	shadowShader := shader.NewShader(shadowPipelineKey, shader.ShaderTypeVertex, "engine/worldrender/passes/assets/shadow_vert.wgsl")
	p := pipeline.NewPipeline(shadowPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shadowShader),
		pipeline.WithDepthTestEnabled(true),
		pipeline.WithDepthWriteEnabled(true),
		pipeline.WithCullMode(wgpu.CullModeFront),
	)
	if err := r.RegisterShadowPipeline(p); err != nil {
		return nil, fmt.Errorf("passes: failed to register shadow cascade pipeline: %w", err)
	}

	pass := &ShadowPass{
		r:          r,
		layerViews: layerViews,
		arrayView:  arrayView,
		texture:    texture,
	}

	for i := 0; i < shadowCascadeCount; i++ {
		provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("shadow_cascade_%d", i))
		provider.SetBuffer(1, vertexPositions)
		provider.SetBuffer(2, vertexIndices)
		provider.SetBuffer(3, primitiveIndices)
		provider.SetBuffer(4, meshletsBuf)
		provider.SetBuffer(5, meshInstances)
		if err := r.InitBindGroup(provider, shadowShader.BindGroupLayoutDescriptor(0), nil, map[int]uint64{0: 64}); err != nil {
			return nil, fmt.Errorf("passes: failed to init shadow cascade %d bind group: %w", i, err)
		}
		pass.cascadeProviders[i] = provider
	}

	return pass, nil
}

// RenderCascades computes the four cascade view-projection matrices for the given
// directional light and draws every meshlet into each cascade's depth layer in
// turn. Writes cascade 0's view-projection matrix into l.VP and the 1-based cascade
// layer indices into l.Cascades; l.View and l.Projection are not written. If lightDir
// is the zero vector (no shadow-casting directional light), the cascade array is
// left untouched and l.Cascades is zeroed, signaling "no shadows" downstream.
//
// Parameters:
//   - l: the scene's directional light entry to update in place
//   - lightDir: the light's normalized direction
//   - sceneCenter: the world-space point shadow cascades should be centered on
//   - near, far: the camera's near/far planes, split into four cascades
//   - totalMeshletDraws: the instance count for the scene-wide instanced draw
//
// Returns:
//   - error: an error if a shadow draw call fails
func (p *ShadowPass) RenderCascades(l *worldrender.GPUWorldLight, lightDir, sceneCenter [3]float32, near, far float32, totalMeshletDraws uint32) error {
	if lightDir == ([3]float32{}) {
		l.Cascades = [8]uint32{}
		return nil
	}

	splits := defaultCascadeSplits(near, far)

	if err := p.r.BeginShadowFrame(); err != nil {
		return fmt.Errorf("passes: failed to begin shadow frame: %w", err)
	}
	defer p.r.EndShadowFrame()

	for i, split := range splits {
		var shadowData light.GPUShadowData
		shadowData.ComputeDirectionalLightVP(lightDir, sceneCenter[0], sceneCenter[1], sceneCenter[2], split.halfExtent, split.near, split.far)
		if i == 0 {
			l.VP = shadowData.LightVP
		}

		p.r.WriteBuffers([]bind_group_provider.BufferWrite{
			{Provider: p.cascadeProviders[i], Binding: 0, Offset: 0, Data: shadowData.Marshal()[:64]},
		})

		p.r.BeginShadowPass(p.layerViews[i])
		vertexCount := uint32(worldrender.MaxTrianglesPerMeshlet * 3)
		if err := p.r.ShadowDrawCallPulled(shadowPipelineKey, p.cascadeProviders[i], vertexCount, totalMeshletDraws); err != nil {
			p.r.EndShadowPass()
			return fmt.Errorf("passes: shadow cascade %d draw failed: %w", i, err)
		}
		p.r.EndShadowPass()

		l.Cascades[i] = uint32(i + 1)
	}
	for i := shadowCascadeCount; i < len(l.Cascades); i++ {
		l.Cascades[i] = 0
	}

	return nil
}

// ArrayView returns the whole-array texture view used by the material evaluation
// pass's texture_depth_2d_array binding.
func (p *ShadowPass) ArrayView() *wgpu.TextureView {
	return p.arrayView
}
