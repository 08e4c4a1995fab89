package worldrender

import (
	"encoding/binary"
	"testing"
)

func TestInsertVertexAssignsSequentialIndices(t *testing.T) {
	tables := NewSceneTables()

	first := tables.InsertVertex([3]float32{0, 0, 0}, [3]float32{0, 1, 0}, [2]float32{0, 0})
	second := tables.InsertVertex([3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [2]float32{1, 0})

	if first != 0 || second != 1 {
		t.Fatalf("expected sequential indices 0,1, got %d,%d", first, second)
	}
	if len(tables.VertexPositions) != 6 {
		t.Fatalf("expected 6 floats (2 vertices x 3), got %d", len(tables.VertexPositions))
	}
}

func TestInsertMeshInstanceOverflowPanics(t *testing.T) {
	tables := NewSceneTables()
	tables.Meshes = make([]MeshInstance, MaxInstances)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on mesh instance table overflow")
		}
	}()
	tables.InsertMeshInstance(MeshInstance{})
}

func TestInsertMaterialOverflowPanics(t *testing.T) {
	tables := NewSceneTables()
	tables.Materials = make([]MaterialSlot, MaxMaterials)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on material table overflow")
		}
	}()
	tables.InsertMaterial(NewMaterialSlot())
}

func TestInsertLightUpdatesLightCount(t *testing.T) {
	tables := NewSceneTables()

	tables.InsertLight(GPUWorldLight{Kind: LightKindDirectional})
	tables.InsertLight(GPUWorldLight{Kind: LightKindPoint})

	if tables.LightCount != 2 {
		t.Fatalf("expected LightCount 2, got %d", tables.LightCount)
	}
	if len(tables.Lights) != 2 {
		t.Fatalf("expected 2 lights, got %d", len(tables.Lights))
	}
}

func TestInsertLightOverflowPanics(t *testing.T) {
	tables := NewSceneTables()
	tables.Lights = make([]GPUWorldLight, MaxLights)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on light table overflow")
		}
	}()
	tables.InsertLight(GPUWorldLight{})
}

func TestNewMaterialSlotAllSlotsUnset(t *testing.T) {
	slot := NewMaterialSlot()
	for i, tex := range slot.Textures {
		if tex != UnsetTextureSlot {
			t.Fatalf("texture slot %d: expected UnsetTextureSlot, got %d", i, tex)
		}
	}
}

func TestMeshletMarshalRoundTripsFields(t *testing.T) {
	m := Meshlet{PrimitiveOffset: 10, VertexOffset: 20, PrimitiveCount: 30, VertexCount: 40}
	buf := m.Marshal()

	if len(buf) != 16 {
		t.Fatalf("expected 16-byte Meshlet, got %d", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != 30 || binary.LittleEndian.Uint32(buf[12:16]) != 40 {
		t.Fatalf("expected PrimitiveCount=30 VertexCount=40, got %d,%d", buf[8:12], buf[12:16])
	}
}

func TestGPUWorldCameraMarshalLength(t *testing.T) {
	c := GPUWorldCamera{}
	buf := c.Marshal()
	if len(buf) != 224 {
		t.Fatalf("expected 224-byte GPUWorldCamera, got %d", len(buf))
	}
}

func TestGPUWorldLightMarshalLength(t *testing.T) {
	l := GPUWorldLight{}
	buf := l.Marshal()
	if len(buf) != 288 {
		t.Fatalf("expected 288-byte GPUWorldLight, got %d", len(buf))
	}
}

func TestTotalMeshletDrawsSumsPerInstanceCounts(t *testing.T) {
	tables := NewSceneTables()
	tables.Meshlets = make([]Meshlet, 7)
	tables.Meshes = []MeshInstance{
		{BaseMeshletIndex: 0},
		{BaseMeshletIndex: 3},
		{BaseMeshletIndex: 5},
	}

	total := tables.TotalMeshletDraws()
	if total != 7 {
		t.Fatalf("expected 7 total meshlet draws, got %d", total)
	}
}

func TestBindlessTexturesInsertAssignsIndices(t *testing.T) {
	var textures BindlessTextures

	first := textures.Insert(nil)
	second := textures.Insert(nil)

	if first != 0 || second != 1 {
		t.Fatalf("expected sequential texture indices 0,1, got %d,%d", first, second)
	}
}
