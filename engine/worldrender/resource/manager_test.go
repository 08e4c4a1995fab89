package resource

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

func TestManagerLoadMeshAsyncDeliversResult(t *testing.T) {
	source := &memorySource{files: map[string][]byte{"mesh.bin": encodeTestMesh()}}
	tables := worldrender.NewSceneTables()
	mgr := NewManager(source, nil, tables, 2)

	select {
	case res := <-mgr.LoadMeshAsync("mesh.bin"):
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.data.MeshletCount != 1 {
			t.Fatalf("MeshletCount = %d, want 1", res.data.MeshletCount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async mesh load")
	}
}

func TestManagerLoadTextureAsyncPropagatesError(t *testing.T) {
	source := &memorySource{files: map[string][]byte{}}
	tables := worldrender.NewSceneTables()
	mgr := NewManager(source, nil, tables, 2)

	select {
	case res := <-mgr.LoadTextureAsync("missing.png"):
		if res.err == nil {
			t.Fatal("expected an error loading a texture with no backing bytes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async texture load")
	}
}
