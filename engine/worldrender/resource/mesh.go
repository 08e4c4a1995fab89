package resource

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

// MeshData records where one loaded mesh's geometry lives within the shared
// SceneTables: a base offset into each of the vertex/primitive/meshlet tables,
// plus the meshlet count a MeshInstance referencing this mesh should draw.
type MeshData struct {
	BaseVertex     uint32
	BasePrimitive  uint32
	BaseVertexList uint32
	BaseMeshlet    uint32
	MeshletCount   uint32
}

// meshRecord wire format read from a mesh stream: a small header followed by the
// six flat geometry streams the visibility-buffer pipeline's scene tables expect.
// This is the resource manager's own bump-allocated-region bookkeeping, not a
// general-purpose model file format — glTF/GLB import still goes through the
// teacher's engine/loader, then gets flattened into this shape once at import time.
type meshRecord struct {
	positions        []float32
	normals          []float32
	uvs              []float32
	vertexIndices    []uint16
	primitiveIndices []uint8
	meshlets         []worldrender.Meshlet
}

// MeshLoader imports mesh geometry into a shared SceneTables, caching by URL so
// repeated requests for the same mesh reuse the same scene-table region instead
// of re-appending duplicate geometry. Grounded on engine/loader.loader's
// mutex-guarded modelCache, generalized with Once[T] so concurrent callers
// requesting the same URL coalesce onto a single load instead of racing it.
type MeshLoader struct {
	source StreamSource
	tables *worldrender.SceneTables

	mu    sync.Mutex // serializes SceneTables appends across concurrent loads
	cells sync.Map   // url string -> *Once[MeshData]
}

// NewMeshLoader constructs a MeshLoader that reads mesh streams from source and
// appends their geometry into tables.
func NewMeshLoader(source StreamSource, tables *worldrender.SceneTables) *MeshLoader {
	return &MeshLoader{source: source, tables: tables}
}

// Load imports the mesh at url, or returns the cached MeshData if url was already
// loaded. Safe for concurrent use: concurrent callers for the same url coalesce
// onto one load.
func (l *MeshLoader) Load(url string) (MeshData, error) {
	cellAny, _ := l.cells.LoadOrStore(url, &Once[MeshData]{})
	cell := cellAny.(*Once[MeshData])

	return cell.Get(func() (MeshData, error) {
		r, err := l.source.Open(url)
		if err != nil {
			return MeshData{}, err
		}
		defer r.Close()

		rec, err := readMeshRecord(r)
		if err != nil {
			return MeshData{}, fmt.Errorf("resource: failed to read mesh %q: %w", url, err)
		}

		return l.bumpAllocate(rec), nil
	})
}

// bumpAllocate appends rec's geometry into the shared SceneTables and returns the
// base offsets a MeshInstance referencing this mesh should use.
func (l *MeshLoader) bumpAllocate(rec meshRecord) MeshData {
	l.mu.Lock()
	defer l.mu.Unlock()

	baseVertex := uint32(len(l.tables.VertexPositions) / 3)
	vertexCount := len(rec.positions) / 3
	for i := 0; i < vertexCount; i++ {
		position := [3]float32{rec.positions[i*3], rec.positions[i*3+1], rec.positions[i*3+2]}
		normal := [3]float32{rec.normals[i*3], rec.normals[i*3+1], rec.normals[i*3+2]}
		uv := [2]float32{rec.uvs[i*2], rec.uvs[i*2+1]}
		l.tables.InsertVertex(position, normal, uv)
	}

	baseVertexList := l.tables.InsertVertexIndices(rec.vertexIndices)
	basePrimitive := l.tables.InsertPrimitiveIndices(rec.primitiveIndices)

	baseMeshlet := uint32(len(l.tables.Meshlets))
	for _, m := range rec.meshlets {
		l.tables.InsertMeshlet(m)
	}

	return MeshData{
		BaseVertex:     baseVertex,
		BasePrimitive:  basePrimitive,
		BaseVertexList: baseVertexList,
		BaseMeshlet:    baseMeshlet,
		MeshletCount:   uint32(len(rec.meshlets)),
	}
}

// readMeshRecord decodes the fixed little-endian mesh stream layout: four u32
// counts (vertex, vertexIndex, primitiveIndex, meshlet), followed by the
// positions/normals/uvs/vertexIndices/primitiveIndices/meshlets streams in that
// order.
func readMeshRecord(r io.Reader) (meshRecord, error) {
	var counts [4]uint32
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return meshRecord{}, fmt.Errorf("failed to read mesh header: %w", err)
	}
	vertexCount, vertexIndexCount, primitiveIndexCount, meshletCount := counts[0], counts[1], counts[2], counts[3]

	rec := meshRecord{
		positions:        make([]float32, vertexCount*3),
		normals:          make([]float32, vertexCount*3),
		uvs:              make([]float32, vertexCount*2),
		vertexIndices:    make([]uint16, vertexIndexCount),
		primitiveIndices: make([]uint8, primitiveIndexCount),
		meshlets:         make([]worldrender.Meshlet, meshletCount),
	}

	for _, buf := range []any{rec.positions, rec.normals, rec.uvs, rec.vertexIndices, rec.primitiveIndices} {
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return meshRecord{}, fmt.Errorf("failed to read mesh stream: %w", err)
		}
	}

	// Meshlet carries an unexported padding field, so binary.Read (which requires
	// Set access to every struct field via reflection) can't decode it directly;
	// each entry is unpacked from its raw 8-byte stream layout by hand instead (two
	// u16 offsets, two u8 counts, two padding bytes). This is not Meshlet.Marshal's
	// 16-byte GPU layout.
	raw := make([]byte, meshletCount*8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return meshRecord{}, fmt.Errorf("failed to read meshlet stream: %w", err)
	}
	for i := range rec.meshlets {
		b := raw[i*8 : i*8+8]
		rec.meshlets[i] = worldrender.Meshlet{
			PrimitiveOffset: binary.LittleEndian.Uint16(b[0:2]),
			VertexOffset:    binary.LittleEndian.Uint16(b[2:4]),
			PrimitiveCount:  b[4],
			VertexCount:     b[5],
		}
	}

	return rec, nil
}
