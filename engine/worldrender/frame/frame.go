// Package frame wires the bindless scene tables and the visibility-buffer pass
// pipeline (engine/worldrender, engine/worldrender/passes, engine/worldrender/
// resource) together into a single per-frame entry point, mirroring the way
// engine/scene owns and sequences the teacher's forward-lit pass set. Lives in its
// own package since engine/worldrender/resource already imports engine/worldrender
// for SceneTables — a Renderer here would create an import cycle.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-go/common"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender/passes"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// sceneTablesShaderKey names the reflection-only shader Build uses to allocate
// every scene table's backing GPU buffer from one bind group layout.
const sceneTablesShaderKey = "worldrender_scene_tables"

// Renderer sequences one frame of the visibility-buffer pipeline: cascaded shadow
// rendering, the scene-wide visibility raster, the material bucketing and
// per-material evaluation compute passes, tone mapping, and the swapchain blit —
// in the order the compute passes' storage-buffer read-after-write dependencies
// require. Owns the bindless scene tables and the async resource manager that
// populate them.
type Renderer struct {
	r      renderer.Renderer
	Tables *worldrender.SceneTables
	Assets *resource.Manager

	width, height int

	buffers       sceneBuffers
	sceneProvider bind_group_provider.BindGroupProvider

	shadow       *passes.ShadowPass
	visibility   *passes.VisibilityRasterPass
	bucket       *passes.MaterialBucketPass
	eval         *passes.MaterialEvalPass
	tonemap      *passes.TonemapPass
	blit         *passes.BlitPass
	hdrAlbedoTex *wgpu.Texture
	resultTex    *wgpu.Texture
}

// sceneBuffers holds the GPU buffers backing the scene tables, allocated once by
// Build and shared read-only by every pass for the remainder of the scene's
// lifetime. A scene change (new meshes, materials, or lights inserted into Tables)
// requires a new Renderer built from the grown tables, mirroring the fixed-capacity
// contract every other pass buffer in this package already has.
type sceneBuffers struct {
	camera           *wgpu.Buffer
	vertexPositions  *wgpu.Buffer
	vertexIndices    *wgpu.Buffer
	primitiveIndices *wgpu.Buffer
	meshlets         *wgpu.Buffer
	meshInstances    *wgpu.Buffer
	materials        *wgpu.Buffer
	lights           *wgpu.Buffer
	lightCount       *wgpu.Buffer
}

// New constructs a Renderer over an empty scene — call Assets' loaders to
// populate Tables, then Build once loading settles to stand up the GPU-side
// pipeline.
//
// Parameters:
//   - r: the renderer backing every pass's pipelines, textures, and buffers
//   - source: the streaming source the resource manager's loaders read mesh/material/texture assets from
//   - workers: the async loader worker pool's goroutine count
//
// Returns:
//   - *Renderer: the constructed frame domain, not yet GPU-ready until Build succeeds
func New(r renderer.Renderer, source resource.StreamSource, workers int) *Renderer {
	tables := worldrender.NewSceneTables()
	return &Renderer{
		r:      r,
		Tables: tables,
		Assets: resource.NewManager(source, r, tables, workers),
	}
}

// Build uploads the current contents of Tables to the GPU and constructs every
// pass, sized for the given visibility buffer resolution (normally the swapchain's).
// Call once after asset loading has populated Tables; call again (on a fresh
// Renderer) if the scene's tables grow afterward, since every pass's buffers are
// fixed-size at construction.
//
// Parameters:
//   - width, height: the visibility buffer's resolution
//
// Returns:
//   - error: an error if buffer upload, texture allocation, or pipeline registration fails
func (f *Renderer) Build(width, height int) error {
	f.width, f.height = width, height

	if err := f.uploadSceneTables(); err != nil {
		return fmt.Errorf("frame: failed to upload scene tables: %w", err)
	}

	bindlessSampler, err := f.buildBindlessSampler()
	if err != nil {
		return fmt.Errorf("frame: failed to build bindless sampler: %w", err)
	}
	f.Tables.Textures.Sampler = bindlessSampler

	shadowSampler, err := f.r.CreateComparisonSampler()
	if err != nil {
		return fmt.Errorf("frame: failed to build shadow comparison sampler: %w", err)
	}

	f.shadow, err = passes.NewShadowPass(f.r, f.buffers.vertexPositions, f.buffers.vertexIndices, f.buffers.primitiveIndices, f.buffers.meshlets, f.buffers.meshInstances)
	if err != nil {
		return fmt.Errorf("frame: failed to build shadow pass: %w", err)
	}

	f.visibility, err = passes.NewVisibilityRasterPass(f.r, width, height, f.buffers.camera, f.buffers.vertexPositions, f.buffers.vertexIndices, f.buffers.primitiveIndices, f.buffers.meshlets, f.buffers.meshInstances)
	if err != nil {
		return fmt.Errorf("frame: failed to build visibility raster pass: %w", err)
	}

	maxPixels := width * height
	f.bucket, err = passes.NewMaterialBucketPass(f.r, f.visibility.InstanceIDView(), f.buffers.meshInstances, worldrender.MaxMaterials, maxPixels)
	if err != nil {
		return fmt.Errorf("frame: failed to build material bucket pass: %w", err)
	}

	hdrAlbedoView, hdrAlbedoTex, err := f.r.CreateStorageTexture(width, height, wgpu.TextureFormatRGBA16Float, wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return fmt.Errorf("frame: failed to create HDR accumulation target: %w", err)
	}
	f.hdrAlbedoTex = hdrAlbedoTex

	f.eval, err = passes.NewMaterialEvalPass(
		f.r,
		f.buffers.camera, f.buffers.meshInstances, f.buffers.materials, f.buffers.lights, f.buffers.lightCount,
		f.bucket,
		f.visibility.PrimitiveIDView(), f.visibility.InstanceIDView(),
		f.Tables.Textures.Views,
		bindlessSampler,
		f.shadow.ArrayView(),
		shadowSampler,
		hdrAlbedoView,
		worldrender.MaxMaterials, maxPixels,
	)
	if err != nil {
		return fmt.Errorf("frame: failed to build material eval pass: %w", err)
	}

	resultView, resultTex, err := f.r.CreateStorageTexture(width, height, wgpu.TextureFormatRGBA8Unorm, wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return fmt.Errorf("frame: failed to create tone map result target: %w", err)
	}
	f.resultTex = resultTex

	f.tonemap, err = passes.NewTonemapPass(f.r, hdrAlbedoView, resultView)
	if err != nil {
		return fmt.Errorf("frame: failed to build tonemap pass: %w", err)
	}

	f.blit, err = passes.NewBlitPass(f.r, resultView)
	if err != nil {
		return fmt.Errorf("frame: failed to build blit pass: %w", err)
	}

	return nil
}

// Render executes one full visibility-buffer frame: cascaded shadows, the
// scene-wide visibility raster, the bucket/eval/tonemap compute chain, and the
// fullscreen blit onto the acquired swapchain image, in that order — each stage
// after the first reads a GPU resource the previous stage wrote, so none may be
// reordered.
//
// Parameters:
//   - light: the scene's shadow-casting directional light entry, updated in place with this frame's cascade layer indices and first-cascade view-projection matrix
//   - lightDir, sceneCenter: the directional light's direction and the point its cascades should center on
//   - near, far: the camera's near/far planes, split into the four cascades
//
// Returns:
//   - error: an error if any stage's frame bracket or draw call fails
func (f *Renderer) Render(light *worldrender.GPUWorldLight, lightDir, sceneCenter [3]float32, near, far float32) error {
	totalMeshletDraws := f.Tables.TotalMeshletDraws()

	if err := f.shadow.RenderCascades(light, lightDir, sceneCenter, near, far, totalMeshletDraws); err != nil {
		return fmt.Errorf("frame: shadow pass failed: %w", err)
	}

	if err := f.writeLight(light); err != nil {
		return fmt.Errorf("frame: failed to write updated light table: %w", err)
	}

	if err := f.visibility.Render(totalMeshletDraws); err != nil {
		return fmt.Errorf("frame: visibility raster pass failed: %w", err)
	}

	if err := f.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("frame: failed to begin compute frame: %w", err)
	}
	f.bucket.Run(f.width, f.height)
	f.eval.Run(f.bucket)
	f.tonemap.Run(f.width, f.height)
	f.r.EndComputeFrame()

	if err := f.r.BeginFrame(); err != nil {
		return fmt.Errorf("frame: failed to begin swapchain frame: %w", err)
	}
	if err := f.blit.Run(); err != nil {
		f.r.EndFrame()
		return fmt.Errorf("frame: blit draw failed: %w", err)
	}
	f.r.EndFrame()
	f.r.Present()

	return nil
}

// Resize releases the current visibility-dependent targets; the caller must call
// Build again at the new resolution before the next Render, since every GPU
// texture this package allocates is fixed-size.
func (f *Renderer) Resize() {
	f.visibility.Resize()
	f.hdrAlbedoTex.Release()
	f.resultTex.Release()
}

// uploadSceneTables allocates one GPU buffer per scene table, sized to the table's
// current length, and writes its marshaled contents. Uses a single reflection-only
// shader (scene_tables.wgsl) so every buffer's binding number lines up with the
// vertex-pulling pass shaders that read it (visraster_vert.wgsl's 0..5,
// shadow_vert.wgsl's 1..5), even though this shader itself is never registered as a
// pipeline. material_eval.wgsl uses its own binding numbers.
func (f *Renderer) uploadSceneTables() error {
	refl := shader.NewShader(sceneTablesShaderKey, shader.ShaderTypeCompute, "engine/worldrender/frame/assets/scene_tables.wgsl")

	t := f.Tables
	sizeOverrides := map[int]uint64{
		0: 224,
		1: uint64(max(len(t.VertexPositions), 1)) * 4,
		2: uint64(max(len(t.VertexIndices), 1)) * 4,
		3: uint64(max(len(t.PrimitiveIndices), 1)) * 4,
		4: uint64(max(len(t.Meshlets), 1)) * 16,
		5: uint64(max(len(t.Meshes), 1)) * 96,
		6: uint64(max(len(t.Materials), 1)) * 64,
		7: uint64(max(len(t.Lights), 1)) * 288,
		8: 4,
	}

	provider := bind_group_provider.NewBindGroupProvider("scene_tables")
	if err := f.r.InitBindGroup(provider, refl.BindGroupLayoutDescriptor(0), nil, sizeOverrides); err != nil {
		return err
	}
	f.sceneProvider = provider

	f.buffers = sceneBuffers{
		camera:           provider.Buffer(0),
		vertexPositions:  provider.Buffer(1),
		vertexIndices:    provider.Buffer(2),
		primitiveIndices: provider.Buffer(3),
		meshlets:         provider.Buffer(4),
		meshInstances:    provider.Buffer(5),
		materials:        provider.Buffer(6),
		lights:           provider.Buffer(7),
		lightCount:       provider.Buffer(8),
	}

	writes := []bind_group_provider.BufferWrite{
		{Provider: provider, Binding: 0, Offset: 0, Data: t.Camera.Marshal()},
		{Provider: provider, Binding: 1, Offset: 0, Data: float32SliceToBytes(t.VertexPositions)},
		{Provider: provider, Binding: 2, Offset: 0, Data: widenUint16(t.VertexIndices)},
		{Provider: provider, Binding: 3, Offset: 0, Data: widenUint8(t.PrimitiveIndices)},
		{Provider: provider, Binding: 4, Offset: 0, Data: marshalMeshlets(t.Meshlets)},
		{Provider: provider, Binding: 5, Offset: 0, Data: marshalMeshInstances(t.Meshes)},
		{Provider: provider, Binding: 6, Offset: 0, Data: marshalMaterials(t.Materials)},
		{Provider: provider, Binding: 7, Offset: 0, Data: marshalLights(t.Lights)},
		{Provider: provider, Binding: 8, Offset: 0, Data: uint32ToBytes(t.LightCount)},
	}
	f.r.WriteBuffers(writes)

	return nil
}

// buildBindlessSampler creates the shared linear-filtering, clamp-to-edge sampler
// every bindless texture read uses. Per-material glTF sampler settings are not
// applied to bindless reads.
func (f *Renderer) buildBindlessSampler() (*wgpu.Sampler, error) {
	scratch := bind_group_provider.NewBindGroupProvider("bindless_sampler")
	if err := f.r.InitSampler(scratch, 0, common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}); err != nil {
		return nil, err
	}
	return scratch.Sampler(0), nil
}

// writeLight writes the shadow pass's updated cascade data for light back into the
// uploaded light table at its index. Assumes light is the scene's single
// shadow-casting directional light and lives at table index 0, matching how every
// scene this package builds registers its directional light first.
func (f *Renderer) writeLight(light *worldrender.GPUWorldLight) error {
	if len(f.Tables.Lights) == 0 {
		return nil
	}
	f.Tables.Lights[0] = *light
	f.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: f.sceneProvider, Binding: 7, Offset: 0, Data: light.Marshal()},
	})
	return nil
}

func float32SliceToBytes(vals []float32) []byte {
	buf := make([]byte, max(len(vals), 1)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func widenUint16(vals []uint16) []byte {
	buf := make([]byte, max(len(vals), 1)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func widenUint8(vals []uint8) []byte {
	buf := make([]byte, max(len(vals), 1)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func uint32ToBytes(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func marshalMeshlets(vals []worldrender.Meshlet) []byte {
	buf := make([]byte, 0, max(len(vals), 1)*16)
	for i := range vals {
		buf = append(buf, vals[i].Marshal()...)
	}
	if len(buf) == 0 {
		buf = make([]byte, 16)
	}
	return buf
}

func marshalMeshInstances(vals []worldrender.MeshInstance) []byte {
	buf := make([]byte, 0, max(len(vals), 1)*96)
	for i := range vals {
		buf = append(buf, vals[i].Marshal()...)
	}
	if len(buf) == 0 {
		buf = make([]byte, 96)
	}
	return buf
}

func marshalMaterials(vals []worldrender.MaterialSlot) []byte {
	buf := make([]byte, 0, max(len(vals), 1)*64)
	for i := range vals {
		buf = append(buf, vals[i].Marshal()...)
	}
	if len(buf) == 0 {
		buf = make([]byte, 64)
	}
	return buf
}

func marshalLights(vals []worldrender.GPUWorldLight) []byte {
	buf := make([]byte, 0, max(len(vals), 1)*288)
	for i := range vals {
		buf = append(buf, vals[i].Marshal()...)
	}
	if len(buf) == 0 {
		buf = make([]byte, 288)
	}
	return buf
}
