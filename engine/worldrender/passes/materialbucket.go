// Package passes implements the visibility-buffer pipeline's per-frame stages:
// visibility raster, material bucketing, per-material evaluation, cascaded shadow
// rendering, and tone mapping.
package passes

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// materialBucketTileSize matches the @workgroup_size(32,32,1) declared by
// material_count.wgsl and material_pixelmap.wgsl.
const materialBucketTileSize = 32

const (
	materialCountPipelineKey    = "worldrender_material_count"
	materialOffsetPipelineKey   = "worldrender_material_offset"
	materialPixelMapPipelineKey = "worldrender_material_pixelmap"
)

// MaterialBucketPass runs the count/offset/pixel-mapping compute passes that turn a
// rasterized visibility buffer into, for every material, a contiguous run of pixel
// coordinates the per-material evaluation pass can dispatch exactly enough threads
// over.
type MaterialBucketPass struct {
	r renderer.Renderer

	countProvider    bind_group_provider.BindGroupProvider
	offsetProvider   bind_group_provider.BindGroupProvider
	pixelMapProvider bind_group_provider.BindGroupProvider

	maxMaterials int
	maxPixels    int
}

// NewMaterialBucketPass registers the three material-bucketing compute pipelines
// and allocates their storage buffers, sized for up to maxMaterials materials and
// maxPixels covered pixels (width*height of the visibility buffer).
//
// Parameters:
//   - r: the renderer to register pipelines and bind groups against
//   - visibilityInstanceID: the visibility raster pass's instance-id R32Uint texture view
//   - meshInstances: the scene's mesh instance storage buffer
//   - maxMaterials: the scene's material table capacity
//   - maxPixels: the visibility buffer's pixel count (width * height)
//
// Returns:
//   - *MaterialBucketPass: the constructed pass, ready to Run
//   - error: an error if pipeline registration or bind group initialization fails
func NewMaterialBucketPass(
	r renderer.Renderer,
	visibilityInstanceID *wgpu.TextureView,
	meshInstances *wgpu.Buffer,
	maxMaterials int,
	maxPixels int,
) (*MaterialBucketPass, error) {
	countShader := shader.NewShader(materialCountPipelineKey, shader.ShaderTypeCompute, "engine/worldrender/passes/assets/material_count.wgsl")
	offsetShader := shader.NewShader(materialOffsetPipelineKey, shader.ShaderTypeCompute, "engine/worldrender/passes/assets/material_offset.wgsl")
	pixelMapShader := shader.NewShader(materialPixelMapPipelineKey, shader.ShaderTypeCompute, "engine/worldrender/passes/assets/material_pixelmap.wgsl")

	countPipeline := pipeline.NewPipeline(materialCountPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(countShader))
	offsetPipeline := pipeline.NewPipeline(materialOffsetPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(offsetShader))
	pixelMapPipeline := pipeline.NewPipeline(materialPixelMapPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(pixelMapShader))

	if err := r.RegisterPipelines(countPipeline, offsetPipeline, pixelMapPipeline); err != nil {
		return nil, fmt.Errorf("passes: failed to register material bucket pipelines: %w", err)
	}

	countProvider := bind_group_provider.NewBindGroupProvider("material_count")
	countProvider.SetBuffer(1, meshInstances)
	countProvider.SetTextureView(0, visibilityInstanceID)
	countSizes := map[int]uint64{2: uint64(maxMaterials) * 4}
	if err := r.InitBindGroup(countProvider, countShader.BindGroupLayoutDescriptor(0), nil, countSizes); err != nil {
		return nil, fmt.Errorf("passes: failed to init material count bind group: %w", err)
	}

	offsetProvider := bind_group_provider.NewBindGroupProvider("material_offset")
	offsetProvider.SetBuffer(0, countProvider.Buffer(2))
	offsetSizes := map[int]uint64{
		1: uint64(maxMaterials) * 4,
		2: uint64(maxMaterials) * 4,
		3: uint64(maxMaterials) * 12,
	}
	if err := r.InitBindGroup(offsetProvider, offsetShader.BindGroupLayoutDescriptor(0), nil, offsetSizes); err != nil {
		return nil, fmt.Errorf("passes: failed to init material offset bind group: %w", err)
	}

	pixelMapProvider := bind_group_provider.NewBindGroupProvider("material_pixelmap")
	pixelMapProvider.SetBuffer(1, meshInstances)
	pixelMapProvider.SetTextureView(0, visibilityInstanceID)
	pixelMapProvider.SetBuffer(2, offsetProvider.Buffer(2))
	pixelMapSizes := map[int]uint64{3: uint64(maxPixels) * 8}
	if err := r.InitBindGroup(pixelMapProvider, pixelMapShader.BindGroupLayoutDescriptor(0), nil, pixelMapSizes); err != nil {
		return nil, fmt.Errorf("passes: failed to init material pixelmap bind group: %w", err)
	}

	return &MaterialBucketPass{
		r:                r,
		countProvider:    countProvider,
		offsetProvider:   offsetProvider,
		pixelMapProvider: pixelMapProvider,
		maxMaterials:     maxMaterials,
		maxPixels:        maxPixels,
	}, nil
}

// Run dispatches the count, offset, and pixel-mapping passes in order. Must be
// called within a BeginComputeFrame/EndComputeFrame block on the renderer; the
// three dispatches are ordered storage-buffer read-after-write dependencies (offset
// reads what count wrote, pixel-mapping reads what offset wrote), so no two of them
// may be reordered or parallelized within the batch.
//
// Parameters:
//   - width: visibility buffer width in pixels
//   - height: visibility buffer height in pixels
func (p *MaterialBucketPass) Run(width, height int) {
	groupsX := uint32((width + materialBucketTileSize - 1) / materialBucketTileSize)
	groupsY := uint32((height + materialBucketTileSize - 1) / materialBucketTileSize)

	p.r.DispatchCompute(materialCountPipelineKey, p.countProvider, [3]uint32{groupsX, groupsY, 1})
	p.r.DispatchCompute(materialOffsetPipelineKey, p.offsetProvider, [3]uint32{1, 1, 1})
	p.r.DispatchCompute(materialPixelMapPipelineKey, p.pixelMapProvider, [3]uint32{groupsX, groupsY, 1})
}

// DispatchArgsBuffer returns the GPU buffer holding each material's indirect
// compute dispatch workgroup counts, written by the offset pass, for use with
// Renderer.DispatchComputeIndirect in the per-material evaluation pass.
func (p *MaterialBucketPass) DispatchArgsBuffer() *wgpu.Buffer {
	return p.offsetProvider.Buffer(3)
}

// OffsetBuffer returns the GPU buffer holding each material's base offset into
// pixel_xy, written by the offset pass.
func (p *MaterialBucketPass) OffsetBuffer() *wgpu.Buffer {
	return p.offsetProvider.Buffer(1)
}

// PixelXYBuffer returns the GPU buffer holding the scattered per-material pixel
// coordinate runs, written by the pixel-mapping pass.
func (p *MaterialBucketPass) PixelXYBuffer() *wgpu.Buffer {
	return p.pixelMapProvider.Buffer(3)
}

// PrefixSumMaterialOffsets is the pure-Go, GPU-free mirror of material_offset.wgsl's
// exclusive prefix sum: given each material's pixel count, it returns each
// material's base offset into a combined pixel array and the total pixel count
// across all materials. Exists so the offset pass's core algorithm has a unit test
// that does not require a GPU to run.
//
// Parameters:
//   - counts: the number of covered pixels counted for each material, by material index
//
// Returns:
//   - []uint32: each material's base offset, same length as counts
//   - uint32: the total pixel count across all materials
func PrefixSumMaterialOffsets(counts []uint32) ([]uint32, uint32) {
	offsets := make([]uint32, len(counts))
	var running uint32
	for i, count := range counts {
		offsets[i] = running
		running += count
	}
	return offsets, running
}
