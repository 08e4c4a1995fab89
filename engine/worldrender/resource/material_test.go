package resource

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// absoluteFileSource is a permissive StreamSource that opens the url as a literal
// filesystem path, used so a test shader's path can double as both the
// StreamSource URL and the real path shader.NewShader reads from.
type absoluteFileSource struct{}

func (absoluteFileSource) Open(url string) (io.ReadCloser, error) {
	return os.Open(url)
}

func writeTestShader(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	src := "@compute @workgroup_size(1) fn cs_main() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("failed to write test shader: %v", err)
	}
	return path
}

func TestMaterialLoaderCachesByURL(t *testing.T) {
	path := writeTestShader(t, t.TempDir(), "mat.wgsl")
	loader := NewMaterialLoader(absoluteFileSource{})

	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached pipeline to be identical across calls")
	}
}

func TestMaterialLoaderConcurrentLoadsCoalesce(t *testing.T) {
	path := writeTestShader(t, t.TempDir(), "mat.wgsl")
	loader := NewMaterialLoader(absoluteFileSource{})

	results := make([]interface{}, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p, err := loader.Load(path)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[idx] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("expected all concurrent loads to coalesce onto one pipeline")
		}
	}
}

func TestVariantLoaderCachesByURLAndVariantKey(t *testing.T) {
	path := writeTestShader(t, t.TempDir(), "mat.wgsl")

	base := NewMaterialLoader(absoluteFileSource{})
	variants := NewVariantLoader(base)

	a, err := variants.Load(path, "red", map[string]float64{"tint": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aAgain, err := variants.Load(path, "red", map[string]float64{"tint": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != aAgain {
		t.Fatalf("expected repeated load of the same variant key to return the cached pipeline")
	}

	if _, err := variants.Load(path, "blue", map[string]float64{"tint": 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
