package loader

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

// extractedVertex is a single position/normal/uv vertex, the only per-vertex data
// the visibility-buffer scene tables carry (see worldrender.SceneTables). Color,
// tangent, and skinning attributes from the glTF source are not retained.
type extractedVertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// extractedMesh is one glTF primitive flattened into mesh-local geometry plus its
// own meshlet partition, ready to be encoded into the mesh-record wire format
// resource.MeshLoader reads. VertexIndices/PrimitiveIndices/Meshlets all use
// mesh-local addressing (see worldrender.Meshlet's doc comment) — a MeshInstance's
// base offsets translate them into the shared scene tables at load time.
type extractedMesh struct {
	Name     string
	Vertices []extractedVertex

	// VertexIndices is the mesh's flattened "unique vertex list": each entry is a
	// mesh-local vertex id (an index into Vertices), addressed by a meshlet's
	// VertexOffset+local slot.
	VertexIndices []uint16

	// PrimitiveIndices is the mesh's triangle list, three tightly packed bytes per
	// triangle, each byte a local slot (0-254) into the owning meshlet's own
	// VertexIndices run (not a direct vertex id).
	PrimitiveIndices []uint8

	Meshlets []worldrender.Meshlet

	MaterialIndex int
	BoundingMin   [3]float32
	BoundingMax   [3]float32
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor defines the interface for extracting mesh data from a parsed glTF document.
// It converts raw glTF accessor data into mesh-local geometry plus a meshlet partition.
type gltfMeshExtractor interface {
	// ExtractMesh extracts a single mesh by index.
	// Returns one extractedMesh per primitive (glTF meshes can have multiple primitives).
	ExtractMesh(meshIndex int) ([]extractedMesh, error)

	// ExtractAllMeshes extracts all meshes from the document.
	// Returns a flattened slice with one extractedMesh per primitive across all meshes.
	ExtractAllMeshes() ([]extractedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a new mesh extractor for a parsed document.
func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(meshIndex int) ([]extractedMesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}

	mesh := &doc.Meshes[meshIndex]
	var result []extractedMesh

	for primIdx := range mesh.Primitives {
		prim := &mesh.Primitives[primIdx]
		extracted, err := e.extractPrimitive(prim, mesh.Name, primIdx)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, primIdx, err)
		}
		result = append(result, *extracted)
	}

	return result, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([]extractedMesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var all []extractedMesh
	for i := range doc.Meshes {
		meshes, err := e.ExtractMesh(i)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		all = append(all, meshes...)
	}

	return all, nil
}

// extractPrimitive extracts a single primitive's geometry and partitions it into
// meshlets.
func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, meshName string, primIndex int) (*extractedMesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return nil, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}

	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	vertexCount := len(positions)
	if vertexCount > math.MaxUint16+1 {
		return nil, fmt.Errorf("primitive has %d vertices, exceeds mesh-local uint16 vertex id range", vertexCount)
	}
	vertices := make([]extractedVertex, vertexCount)
	for i, pos := range positions {
		vertices[i].Position = pos
	}

	hasNormals := false
	if normalAccessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3Accessor(normalAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read normals: %w", err)
		}
		for i := range normals {
			if i < vertexCount {
				vertices[i].Normal = normals[i]
			}
		}
		hasNormals = true
	}

	if texCoordAccessor, ok := prim.Attributes["TEXCOORD_0"]; ok {
		texCoords, err := e.parser.ReadVec2Accessor(texCoordAccessor)
		if err != nil {
			return nil, fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := range texCoords {
			if i < vertexCount {
				vertices[i].TexCoord = texCoords[i]
			}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if !hasNormals && len(indices) >= 3 {
		generateNormals(vertices, indices)
	}

	bmin, bmax := gltfCalculateBoundingBox(positions)

	materialIndex := 0
	if prim.Material != nil {
		materialIndex = *prim.Material
	}

	name := meshName
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIndex)
	}
	if len(prim.Attributes) > 0 && primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}

	vertexIndices, primitiveIndices, meshlets, err := buildMeshlets(indices)
	if err != nil {
		return nil, fmt.Errorf("mesh %q: %w", name, err)
	}

	return &extractedMesh{
		Name:             name,
		Vertices:         vertices,
		VertexIndices:    vertexIndices,
		PrimitiveIndices: primitiveIndices,
		Meshlets:         meshlets,
		MaterialIndex:    materialIndex,
		BoundingMin:      bmin,
		BoundingMax:      bmax,
	}, nil
}

// buildMeshlets greedily packs a triangle-list index buffer into mesh-local
// meshlets. Each meshlet owns a private "unique vertex list" segment of
// vertexIndices (mesh-local vertex ids, up to 255 per meshlet since
// worldrender.Meshlet.VertexCount is a uint8) and a run of primitiveIndices
// (three tightly packed local-slot bytes per triangle, up to
// worldrender.MaxTrianglesPerMeshlet triangles). A new meshlet starts whenever
// the next triangle would introduce a 256th unique vertex or exceed the
// per-meshlet triangle cap.
func buildMeshlets(indices []uint32) ([]uint16, []uint8, []worldrender.Meshlet, error) {
	if len(indices)%3 != 0 {
		return nil, nil, nil, fmt.Errorf("triangle index count %d is not a multiple of 3", len(indices))
	}

	var vertexIndices []uint16
	var primitiveIndices []uint8
	var meshlets []worldrender.Meshlet

	localMap := make(map[uint32]uint8)
	var localVertices []uint16
	var localPrimitives []uint8

	flush := func() {
		if len(localPrimitives) == 0 {
			return
		}
		meshlets = append(meshlets, worldrender.Meshlet{
			PrimitiveOffset: uint16(len(primitiveIndices) / 3),
			VertexOffset:    uint16(len(vertexIndices)),
			PrimitiveCount:  uint8(len(localPrimitives) / 3),
			VertexCount:     uint8(len(localVertices)),
		})
		vertexIndices = append(vertexIndices, localVertices...)
		primitiveIndices = append(primitiveIndices, localPrimitives...)

		localMap = make(map[uint32]uint8)
		localVertices = nil
		localPrimitives = nil
	}

	for i := 0; i+2 < len(indices); i += 3 {
		tri := [3]uint32{indices[i], indices[i+1], indices[i+2]}

		newVertexCount := 0
		for _, v := range tri {
			if _, ok := localMap[v]; !ok {
				newVertexCount++
			}
		}

		exceedsVertices := len(localVertices)+newVertexCount > 255
		exceedsTriangles := len(localPrimitives)/3 >= worldrender.MaxTrianglesPerMeshlet
		if (exceedsVertices || exceedsTriangles) && len(localPrimitives) > 0 {
			flush()
		}

		for _, v := range tri {
			slot, ok := localMap[v]
			if !ok {
				slot = uint8(len(localVertices))
				localMap[v] = slot
				localVertices = append(localVertices, uint16(v))
			}
			localPrimitives = append(localPrimitives, slot)
		}
	}
	flush()

	return vertexIndices, primitiveIndices, meshlets, nil
}

// gltfCalculateBoundingBox computes the axis-aligned bounding box for positions.
func gltfCalculateBoundingBox(positions [][3]float32) ([3]float32, [3]float32) {
	if len(positions) == 0 {
		return [3]float32{}, [3]float32{}
	}

	bmin := [3]float32{
		float32(math.MaxFloat32),
		float32(math.MaxFloat32),
		float32(math.MaxFloat32),
	}
	bmax := [3]float32{
		-float32(math.MaxFloat32),
		-float32(math.MaxFloat32),
		-float32(math.MaxFloat32),
	}

	for _, pos := range positions {
		for j := 0; j < 3; j++ {
			if pos[j] < bmin[j] {
				bmin[j] = pos[j]
			}
			if pos[j] > bmax[j] {
				bmax[j] = pos[j]
			}
		}
	}

	return bmin, bmax
}

// generateNormals computes smooth vertex normals from the triangle geometry when the
// glTF file does not provide a NORMAL attribute. For each triangle, the face normal is
// computed as the cross product of its two edges, then accumulated (area-weighted) onto
// every vertex of that triangle. All vertex normals are normalized at the end to produce
// smooth shading across shared vertices.
func generateNormals(vertices []extractedVertex, indices []uint32) {
	n := len(vertices)
	accum := make([][3]float32, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}

		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position

		edge1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		edge2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}

		faceNormal := [3]float32{
			edge1[1]*edge2[2] - edge1[2]*edge2[1],
			edge1[2]*edge2[0] - edge1[0]*edge2[2],
			edge1[0]*edge2[1] - edge1[1]*edge2[0],
		}

		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx][0] += faceNormal[0]
			accum[idx][1] += faceNormal[1]
			accum[idx][2] += faceNormal[2]
		}
	}

	for i := range n {
		length := float32(math.Sqrt(float64(accum[i][0]*accum[i][0] + accum[i][1]*accum[i][1] + accum[i][2]*accum[i][2])))
		if length < 1e-6 {
			vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		invLen := 1.0 / length
		vertices[i].Normal = [3]float32{
			accum[i][0] * invLen,
			accum[i][1] * invLen,
			accum[i][2] * invLen,
		}
	}
}
