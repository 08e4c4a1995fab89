package passes

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const materialEvalPipelineKey = "worldrender_material_eval"

// materialEvalTileSize matches material_eval.wgsl's @workgroup_size(128,1,1).
const materialEvalTileSize = 128

// maxBindlessTextures matches material_eval.wgsl's MAX_BINDLESS_TEXTURES constant.
const maxBindlessTextures = 16

// MaterialEvalPass runs one indirect compute dispatch per material slot (slots with
// no covered pixels dispatch zero workgroups), sized by MaterialBucketPass's dispatch_args, evaluating every pixel a material
// covers in one contiguous thread range instead of one dispatch per triangle or
// per draw call.
type MaterialEvalPass struct {
	r        renderer.Renderer
	provider bind_group_provider.BindGroupProvider

	maxMaterials int
	maxPixels    int
}

// NewMaterialEvalPass registers the per-material evaluation compute pipeline and
// binds every resource the pass's shader needs: camera, scene tables, the
// material-bucketing pass's pixel/offset/dispatch-args buffers, the visibility
// buffer's two R32Uint targets, the bindless texture array, and the cascaded
// shadow array.
//
// Parameters:
//   - r: the renderer to register the pipeline and bind group against
//   - cameraUniform, meshInstances, materials, lights, lightCount: the scene's GPU buffers
//   - bucket: the MaterialBucketPass supplying pixel_xy/dispatch_args
//   - visPrimitiveID, visInstanceID: the visibility raster pass's color target views
//   - bindlessTextures: the bindless texture array's views, in index order
//   - bindlessSampler: the sampler used for all bindless texture reads
//   - shadowCascades: the cascaded shadow pass's whole-array depth view
//   - shadowSampler: the comparison sampler used for PCF shadow sampling
//   - resultAlbedo: the HDR accumulation target the tonemap pass reads from
//   - maxMaterials: the scene's material table capacity
//   - maxPixels: the visibility buffer's pixel count (width * height), the same
//     bound MaterialBucketPass was constructed with
//
// Returns:
//   - *MaterialEvalPass: the constructed pass, ready to Run
//   - error: an error if pipeline registration or bind group initialization fails
func NewMaterialEvalPass(
	r renderer.Renderer,
	cameraUniform, meshInstances, materials, lights, lightCount *wgpu.Buffer,
	bucket *MaterialBucketPass,
	visPrimitiveID, visInstanceID *wgpu.TextureView,
	bindlessTextures []*wgpu.TextureView,
	bindlessSampler *wgpu.Sampler,
	shadowCascades *wgpu.TextureView,
	shadowSampler *wgpu.Sampler,
	resultAlbedo *wgpu.TextureView,
	maxMaterials, maxPixels int,
) (*MaterialEvalPass, error) {
	evalShader := shader.NewShader(materialEvalPipelineKey, shader.ShaderTypeCompute, "engine/worldrender/passes/assets/material_eval.wgsl")
	p := pipeline.NewPipeline(materialEvalPipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(evalShader))
	if err := r.RegisterPipelines(p); err != nil {
		return nil, fmt.Errorf("passes: failed to register material eval pipeline: %w", err)
	}

	provider := bind_group_provider.NewBindGroupProvider("material_eval")
	provider.SetBuffer(0, cameraUniform)
	provider.SetBuffer(1, meshInstances)
	provider.SetBuffer(2, materials)
	provider.SetBuffer(3, lights)
	provider.SetBuffer(4, lightCount)
	provider.SetBuffer(5, bucket.PixelXYBuffer())
	provider.SetTextureView(7, visPrimitiveID)
	provider.SetTextureView(8, visInstanceID)
	provider.SetSampler(10, bindlessSampler)
	provider.SetTextureView(11, shadowCascades)
	provider.SetSampler(12, shadowSampler)
	provider.SetTextureView(13, resultAlbedo)
	provider.SetBuffer(14, bucket.OffsetBuffer())

	// material_eval.wgsl models its bindless texture table as maxBindlessTextures
	// fixed individual bindings (20..20+maxBindlessTextures-1) rather than a
	// dynamically-indexed binding_array, since bind_group_provider binds one GPU
	// resource per binding slot. Slots beyond len(bindlessTextures) are filled with
	// the first view, and left unset only when bindlessTextures is empty (material
	// albedo indices are clamped shader-side).
	for i := 0; i < maxBindlessTextures; i++ {
		if i < len(bindlessTextures) {
			provider.SetTextureView(20+i, bindlessTextures[i])
		} else if len(bindlessTextures) > 0 {
			provider.SetTextureView(20+i, bindlessTextures[0])
		}
	}

	sizeOverrides := map[int]uint64{6: 8}
	if err := r.InitBindGroup(provider, evalShader.BindGroupLayoutDescriptor(0), nil, sizeOverrides); err != nil {
		return nil, fmt.Errorf("passes: failed to init material eval bind group: %w", err)
	}

	return &MaterialEvalPass{r: r, provider: provider, maxMaterials: maxMaterials, maxPixels: maxPixels}, nil
}

// Run indirectly dispatches the evaluation shader once per material slot, reading
// each material's workgroup count from bucket.DispatchArgsBuffer(). Before each
// dispatch, writes the small per-dispatch DispatchInfo uniform (material_index and
// the scene-wide pixel total) — the CPU knows which material it is about to
// dispatch but not how many pixels it covers, since that count is GPU-computed;
// the shader derives its own pixel_base/pixel_count from the offset table this
// uniform lets it index into. Must be called within a BeginComputeFrame/
// EndComputeFrame block, after MaterialBucketPass.Run has populated this frame's
// pixel_xy/offset/dispatch_args. A material with zero covered pixels dispatches
// zero workgroups — the indirect buffer already encodes that, so no CPU-side skip
// check is needed here.
//
// Parameters:
//   - bucket: the same MaterialBucketPass this pass's bind group was built against
func (p *MaterialEvalPass) Run(bucket *MaterialBucketPass) {
	for material := 0; material < p.maxMaterials; material++ {
		info := make([]byte, 8)
		binary.LittleEndian.PutUint32(info[0:4], uint32(material))
		binary.LittleEndian.PutUint32(info[4:8], uint32(p.maxPixels))
		p.r.WriteBuffers([]bind_group_provider.BufferWrite{
			{Provider: p.provider, Binding: 6, Offset: 0, Data: info},
		})

		indirectOffset := uint64(material) * 12 // sizeof(vec3<u32>) dispatch_args entry
		p.r.DispatchComputeIndirect(materialEvalPipelineKey, p.provider, bucket.DispatchArgsBuffer(), indirectOffset)
	}
}
