package resource

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

// memorySource is a StreamSource backed by an in-memory map, used to build mesh
// fixtures without touching disk.
type memorySource struct {
	files map[string][]byte
}

func (s *memorySource) Open(url string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.files[url])), nil
}

// encodeTestMesh builds a minimal valid mesh stream: one triangle, one meshlet.
func encodeTestMesh() []byte {
	var buf bytes.Buffer
	counts := [4]uint32{1, 3, 3, 1} // 1 vertex, 3 vertex-indices, 3 primitive-indices, 1 meshlet
	binary.Write(&buf, binary.LittleEndian, counts)
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2, 3})    // positions
	binary.Write(&buf, binary.LittleEndian, []float32{0, 1, 0})    // normals
	binary.Write(&buf, binary.LittleEndian, []float32{0.5, 0.5})   // uvs
	binary.Write(&buf, binary.LittleEndian, []uint16{0, 0, 0})     // vertexIndices
	binary.Write(&buf, binary.LittleEndian, []uint8{0, 1, 2})      // primitiveIndices
	binary.Write(&buf, binary.LittleEndian, uint16(0))             // meshlet.PrimitiveOffset
	binary.Write(&buf, binary.LittleEndian, uint16(0))             // meshlet.VertexOffset
	buf.WriteByte(1)                                               // meshlet.PrimitiveCount
	buf.WriteByte(3)                                                // meshlet.VertexCount
	binary.Write(&buf, binary.LittleEndian, uint16(0))             // meshlet padding
	return buf.Bytes()
}

func TestMeshLoaderBumpAllocatesIntoSceneTables(t *testing.T) {
	source := &memorySource{files: map[string][]byte{"mesh.bin": encodeTestMesh()}}
	tables := worldrender.NewSceneTables()
	loader := NewMeshLoader(source, tables)

	data, err := loader.Load("mesh.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.BaseVertex != 0 {
		t.Fatalf("BaseVertex = %d, want 0", data.BaseVertex)
	}
	if data.MeshletCount != 1 {
		t.Fatalf("MeshletCount = %d, want 1", data.MeshletCount)
	}
	if len(tables.VertexPositions) != 3 {
		t.Fatalf("expected one vertex appended, got %d floats", len(tables.VertexPositions))
	}
	if len(tables.Meshlets) != 1 {
		t.Fatalf("expected one meshlet appended, got %d", len(tables.Meshlets))
	}
	if tables.Meshlets[0].PrimitiveCount != 1 {
		t.Fatalf("PrimitiveCount = %d, want 1", tables.Meshlets[0].PrimitiveCount)
	}
}

func TestMeshLoaderCachesRepeatedURL(t *testing.T) {
	source := &memorySource{files: map[string][]byte{"mesh.bin": encodeTestMesh()}}
	tables := worldrender.NewSceneTables()
	loader := NewMeshLoader(source, tables)

	first, err := loader.Load("mesh.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := loader.Load("mesh.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Fatalf("expected cached MeshData to be identical, got %+v vs %+v", first, second)
	}
	if len(tables.Meshlets) != 1 {
		t.Fatalf("expected re-loading the same URL not to re-append geometry, meshlet count = %d", len(tables.Meshlets))
	}
}

func TestMeshLoaderConcurrentLoadsCoalesce(t *testing.T) {
	source := &memorySource{files: map[string][]byte{"mesh.bin": encodeTestMesh()}}
	tables := worldrender.NewSceneTables()
	loader := NewMeshLoader(source, tables)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.Load("mesh.bin"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(tables.Meshlets) != 1 {
		t.Fatalf("expected concurrent loads of the same URL to coalesce into one append, got %d meshlets", len(tables.Meshlets))
	}
}
