// Package worldrender implements the GPU-driven visibility-buffer renderer: bindless
// scene tables, the per-frame pass pipeline, and the async resource manager that
// populates them. See the pass subpackages for the raster/material/shadow/tonemap
// stages and the resource subpackage for the mesh/material/texture loaders.
package worldrender

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// Capacity limits for the bindless scene tables. Insert methods panic when a table
// would grow past its cap.
const (
	MaxVertices           = 1 << 20 // 1,048,576 vertices
	MaxTriangles          = 1 << 20 // 1,048,576 output triangles (vertex index triples)
	MaxPrimitiveTriangles = 1 << 18 // 262,144 meshlet-local primitive triangles (u8 triples)
	MaxMeshlets           = 1 << 16 // 65,536 meshlets
	MaxInstances          = 1 << 16 // 65,536 mesh instances
	MaxMaterials          = 4096
	MaxLights             = 256

	// MaxTrianglesPerMeshlet bounds a single Meshlet's PrimitiveCount. The visibility
	// raster and shadow passes issue a fixed-size vertex-pulling draw of
	// MaxTrianglesPerMeshlet*3 vertices per meshlet instance (padding every meshlet to
	// the worst case, since WebGPU instanced draws share one vertex count across all
	// instances); the vertex shader discards any triangle_local beyond a meshlet's
	// real PrimitiveCount.
	MaxTrianglesPerMeshlet = 124
)

// UnsetTextureSlot is the sentinel value for an unused bindless texture slot in a
// MaterialSlot.
const UnsetTextureSlot = 0xFFFFFFFF

// LightKindDirectional and LightKindPoint identify a GPUWorldLight's Kind field.
// Stored as the ASCII byte value of 'D'/'P' widened to a u32 for 4-byte alignment.
const (
	LightKindDirectional = uint32('D')
	LightKindPoint       = uint32('P')
)

// Meshlet describes one GPU-driven draw unit: a small, bounded slice of a mesh
// with its own local vertex list and local triangle list, the unit the visibility
// raster pass instances one vertex-pulling draw over. VertexOffset/VertexCount
// index this meshlet's run within the scene's VertexIndices table (each entry a
// full-mesh vertex index — the meshlet's "unique vertex list"); PrimitiveOffset/
// PrimitiveCount index its run within the scene's PrimitiveIndices table (each
// entry a triple of local, 0-based indices into that vertex list — the meshlet's
// triangle list). The vertex shader resolves a draw corner to a world vertex by
// reading one PrimitiveIndices byte for the local vertex slot, then one
// VertexIndices entry at VertexOffset+local for the actual vertex index.
// Size: 8 bytes (std430 aligned).
type Meshlet struct {
	PrimitiveOffset uint16 // offset into the scene's PrimitiveIndices table
	VertexOffset    uint16 // offset into the scene's VertexIndices table
	PrimitiveCount  uint8  // number of primitive-index triples (triangles) in this meshlet
	VertexCount     uint8  // number of entries in this meshlet's local vertex list
	_pad            uint16
}

// Marshal serializes the Meshlet into a 16-byte little-endian buffer for GPU
// upload, widening each field to a full u32 — the WGSL side (see
// visraster_vert.wgsl's Meshlet struct) has no u16/u8 types, so every field takes
// a whole 4-byte slot despite the tightly-packed 8-byte in-memory representation.
func (m *Meshlet) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.PrimitiveOffset))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.VertexOffset))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.PrimitiveCount))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(m.VertexCount))
	return buf
}

// MeshInstance is a single placed instance of a mesh in the scene: its model
// transform, assigned material, and the base offsets into the scene's flat vertex/
// primitive/triangle/meshlet tables that every meshlet belonging to this instance
// indexes relative to.
// Size: 96 bytes (std430 aligned, padded from 84 to a 16-byte multiple).
type MeshInstance struct {
	Model              [16]float32 // offset  0: column-major model-to-world matrix
	MaterialIndex      uint32      // offset 64: index into the Materials table
	BaseVertexIndex    uint32      // offset 68: first vertex belonging to this instance
	BasePrimitiveIndex uint32      // offset 72: first primitive-index triple belonging to this instance
	BaseTriangleIndex  uint32      // offset 76: first decoded vertex-index triple belonging to this instance
	BaseMeshletIndex   uint32      // offset 80: first meshlet belonging to this instance
	_pad               [3]uint32  // offset 84: padding to 96 bytes
}

// Marshal serializes the MeshInstance into a 96-byte little-endian buffer for GPU upload.
func (m *MeshInstance) Marshal() []byte {
	buf := make([]byte, 96)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m.Model[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:], m.MaterialIndex)
	binary.LittleEndian.PutUint32(buf[68:], m.BaseVertexIndex)
	binary.LittleEndian.PutUint32(buf[72:], m.BasePrimitiveIndex)
	binary.LittleEndian.PutUint32(buf[76:], m.BaseTriangleIndex)
	binary.LittleEndian.PutUint32(buf[80:], m.BaseMeshletIndex)
	return buf
}

// MaterialSlot holds the bindless texture-array indices a material's shader samples
// from, keyed by a fixed per-material texture role (albedo, normal, metallic-roughness,
// etc.). Unused slots hold UnsetTextureSlot.
// Size: 64 bytes.
type MaterialSlot struct {
	Textures [16]uint32
}

// Marshal serializes the MaterialSlot into a 64-byte little-endian buffer for GPU upload.
func (m *MaterialSlot) Marshal() []byte {
	buf := make([]byte, 64)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], m.Textures[i])
	}
	return buf
}

// NewMaterialSlot returns a MaterialSlot with every texture slot unset.
func NewMaterialSlot() MaterialSlot {
	var slot MaterialSlot
	for i := range slot.Textures {
		slot.Textures[i] = UnsetTextureSlot
	}
	return slot
}

// GPUWorldLight is the GPU-aligned light entry evaluated by the material-evaluation
// pass and the shadow pass. It carries both the forward-style light parameters
// (position, color, cone angles — matching engine/light.GPULight's field order) and
// the view/projection/VP matrices and cascade split indices needed for cascaded
// shadow sampling, since a deferred material pass samples shadows per-light rather
// than via a single shared shadow uniform.
// Size: 288 bytes (std430 aligned).
type GPUWorldLight struct {
	Position     [3]float32  // offset   0
	LightType    uint32      // offset  12: 0 = directional, 1 = point, 2 = spot
	Color        [3]float32  // offset  16
	Intensity    float32     // offset  28
	Direction    [3]float32  // offset  32
	LightRange   float32     // offset  44
	InnerCone    float32     // offset  48
	OuterCone    float32     // offset  52
	CastsShadows uint32      // offset  56
	Kind         uint32      // offset  60: LightKindDirectional or LightKindPoint
	View         [16]float32 // offset  64: light-space view matrix
	Projection   [16]float32 // offset 128: light-space projection matrix
	VP           [16]float32 // offset 192: combined view-projection matrix
	Cascades     [8]uint32   // offset 256: cascade shadow-map layer indices, 1-based, 0 = unused
}

// Marshal serializes the GPUWorldLight into a 288-byte little-endian buffer for GPU upload.
func (l *GPUWorldLight) Marshal() []byte {
	buf := make([]byte, 288)
	off := 0
	putVec3 := func(v [3]float32) {
		for i := range 3 {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v[i]))
			off += 4
		}
	}
	putMat4 := func(v [16]float32) {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v[i]))
			off += 4
		}
	}
	putVec3(l.Position)
	binary.LittleEndian.PutUint32(buf[off:], l.LightType)
	off += 4
	putVec3(l.Color)
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l.Intensity))
	off += 4
	putVec3(l.Direction)
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l.LightRange))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l.InnerCone))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l.OuterCone))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], l.CastsShadows)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], l.Kind)
	off += 4
	putMat4(l.View)
	putMat4(l.Projection)
	putMat4(l.VP)
	for i := range 8 {
		binary.LittleEndian.PutUint32(buf[off:], l.Cascades[i])
		off += 4
	}
	return buf
}

// GPUWorldCamera is the GPU-aligned camera uniform consumed by every world-render
// pass. It extends engine/camera.GPUCameraUniform (ViewProj + CameraPosition) with
// fields for the inverse view/projection matrices and the camera's horizontal/
// vertical field of view; no pass shader reads these three fields.
// Size: 224 bytes (std430 aligned).
type GPUWorldCamera struct {
	ViewProj       [16]float32 // offset   0
	CameraPosition [3]float32  // offset  64
	_pad0          float32     // offset  76
	InvView        [16]float32 // offset  80
	InvProj        [16]float32 // offset 144
	FovXY          [2]float32  // offset 208
	_pad1          [2]float32  // offset 216
}

// Marshal serializes the GPUWorldCamera into a 224-byte little-endian buffer for GPU upload.
func (c *GPUWorldCamera) Marshal() []byte {
	buf := make([]byte, 224)
	off := 0
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c.ViewProj[i]))
		off += 4
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c.CameraPosition[i]))
		off += 4
	}
	off += 4 // _pad0
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c.InvView[i]))
		off += 4
	}
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c.InvProj[i]))
		off += 4
	}
	for i := range 2 {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c.FovXY[i]))
		off += 4
	}
	return buf
}

// BindlessTextures is the append-only bindless combined-image-sampler array backing
// every material's texture references. All textures share one sampler. The
// material-evaluation shader binds the first 16 views as individual texture
// bindings, not as a binding_array.
type BindlessTextures struct {
	Views   []*wgpu.TextureView
	Sampler *wgpu.Sampler
}

// Insert appends a texture view to the bindless array and returns its assigned index.
func (t *BindlessTextures) Insert(view *wgpu.TextureView) uint32 {
	idx := uint32(len(t.Views))
	t.Views = append(t.Views, view)
	return idx
}

// SceneTables holds the flat, append-only, GPU-uploadable scene description that the
// visibility-buffer pipeline's passes read: every vertex/primitive/meshlet/instance/
// material/light referenced by any frame lives here, indexed by the base offsets
// recorded on each MeshInstance. One SceneTables is shared by an entire running
// scene; the resource manager (engine/worldrender/resource) is the only writer.
type SceneTables struct {
	VertexPositions []float32
	VertexNormals   []float32
	VertexUVs       []float32

	VertexIndices    []uint16
	PrimitiveIndices []uint8

	Meshlets []Meshlet
	Meshes   []MeshInstance
	Materials []MaterialSlot

	Lights     []GPUWorldLight
	LightCount uint32

	Camera GPUWorldCamera

	Textures BindlessTextures
}

// NewSceneTables returns an empty SceneTables ready for incremental population by
// the resource manager.
func NewSceneTables() *SceneTables {
	return &SceneTables{}
}

// InsertVertex appends one vertex's position/normal/uv triple and returns its index
// within the table. Panics if the vertex table would exceed MaxVertices.
func (t *SceneTables) InsertVertex(position, normal [3]float32, uv [2]float32) uint32 {
	idx := len(t.VertexPositions) / 3
	if idx >= MaxVertices {
		panic(fmt.Sprintf("worldrender: vertex table overflow: attempted to exceed MaxVertices (%d)", MaxVertices))
	}
	t.VertexPositions = append(t.VertexPositions, position[0], position[1], position[2])
	t.VertexNormals = append(t.VertexNormals, normal[0], normal[1], normal[2])
	t.VertexUVs = append(t.VertexUVs, uv[0], uv[1])
	return uint32(idx)
}

// InsertVertexIndices appends a batch of full-triangle vertex indices (one uint16
// per decoded triangle corner) and returns the base offset they were written at.
// Panics if the table would exceed MaxTriangles*3 entries.
func (t *SceneTables) InsertVertexIndices(indices []uint16) uint32 {
	base := uint32(len(t.VertexIndices))
	if len(t.VertexIndices)+len(indices) > MaxTriangles*3 {
		panic(fmt.Sprintf("worldrender: vertex index table overflow: attempted to exceed MaxTriangles (%d)", MaxTriangles))
	}
	t.VertexIndices = append(t.VertexIndices, indices...)
	return base
}

// InsertPrimitiveIndices appends a batch of meshlet-local primitive-index triples
// (one uint8 per corner) and returns the base offset they were written at. Panics if
// the table would exceed MaxPrimitiveTriangles*3 entries.
func (t *SceneTables) InsertPrimitiveIndices(indices []uint8) uint32 {
	base := uint32(len(t.PrimitiveIndices))
	if len(t.PrimitiveIndices)+len(indices) > MaxPrimitiveTriangles*3 {
		panic(fmt.Sprintf("worldrender: primitive index table overflow: attempted to exceed MaxPrimitiveTriangles (%d)", MaxPrimitiveTriangles))
	}
	t.PrimitiveIndices = append(t.PrimitiveIndices, indices...)
	return base
}

// InsertMeshlet appends a meshlet descriptor and returns its index. Panics if the
// meshlet table would exceed MaxMeshlets.
func (t *SceneTables) InsertMeshlet(m Meshlet) uint32 {
	idx := uint32(len(t.Meshlets))
	if idx >= MaxMeshlets {
		panic(fmt.Sprintf("worldrender: meshlet table overflow: attempted to exceed MaxMeshlets (%d)", MaxMeshlets))
	}
	if m.PrimitiveCount > MaxTrianglesPerMeshlet {
		panic(fmt.Sprintf("worldrender: meshlet primitive count %d exceeds MaxTrianglesPerMeshlet (%d)", m.PrimitiveCount, MaxTrianglesPerMeshlet))
	}
	t.Meshlets = append(t.Meshlets, m)
	return idx
}

// InsertMeshInstance appends a placed mesh instance and returns its index. Panics if
// the instance table would exceed MaxInstances.
func (t *SceneTables) InsertMeshInstance(m MeshInstance) uint32 {
	idx := uint32(len(t.Meshes))
	if idx >= MaxInstances {
		panic(fmt.Sprintf("worldrender: mesh instance table overflow: attempted to exceed MaxInstances (%d)", MaxInstances))
	}
	t.Meshes = append(t.Meshes, m)
	return idx
}

// InsertMaterial appends a material's bindless texture slot assignment and returns
// its index. Panics if the material table would exceed MaxMaterials.
func (t *SceneTables) InsertMaterial(m MaterialSlot) uint32 {
	idx := uint32(len(t.Materials))
	if idx >= MaxMaterials {
		panic(fmt.Sprintf("worldrender: material table overflow: attempted to exceed MaxMaterials (%d)", MaxMaterials))
	}
	t.Materials = append(t.Materials, m)
	return idx
}

// InsertLight appends a light and returns its index. Panics if the light table would
// exceed MaxLights. Updates LightCount to match len(Lights).
func (t *SceneTables) InsertLight(l GPUWorldLight) uint32 {
	idx := uint32(len(t.Lights))
	if idx >= MaxLights {
		panic(fmt.Sprintf("worldrender: light table overflow: attempted to exceed MaxLights (%d)", MaxLights))
	}
	t.Lights = append(t.Lights, l)
	t.LightCount = uint32(len(t.Lights))
	return idx
}

// TotalMeshletDraws reports the total number of meshlets currently in the scene, which is
// the instance count the visibility raster pass's vertex-pulling draw call issues
// (one instance per meshlet across every mesh instance that references it).
func (t *SceneTables) TotalMeshletDraws() uint32 {
	total := uint32(0)
	for i := range t.Meshes {
		total += meshInstanceMeshletCount(t, uint32(i))
	}
	return total
}

// meshInstanceMeshletCount returns how many of the scene's meshlets belong to the
// given mesh instance, derived from the next instance's BaseMeshletIndex (or the end
// of the meshlet table for the last instance).
func meshInstanceMeshletCount(t *SceneTables, instanceIndex uint32) uint32 {
	inst := t.Meshes[instanceIndex]
	var end uint32
	if int(instanceIndex)+1 < len(t.Meshes) {
		end = t.Meshes[instanceIndex+1].BaseMeshletIndex
	} else {
		end = uint32(len(t.Meshlets))
	}
	if end < inst.BaseMeshletIndex {
		return 0
	}
	return end - inst.BaseMeshletIndex
}
