package resource

import (
	"fmt"
	"io"
	"sync"

	"github.com/Carmen-Shannon/oxy-go/common"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer"
	"github.com/Carmen-Shannon/oxy-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

// TextureLoader decodes images via the teacher's existing
// common.ImportedTexture.Decode path and uploads them into the shared
// BindlessTextures array, caching by URL so repeated requests for the same
// texture return the same bindless index instead of uploading duplicate GPU
// memory. Grounded on the teacher's image-decode path in common/types.go and its
// InitTextureView staging-data upload convention, generalized from "one texture
// per material binding" to "append into one shared bindless array, return the
// assigned index."
type TextureLoader struct {
	source   StreamSource
	r        renderer.Renderer
	textures *worldrender.BindlessTextures

	mu    sync.Mutex // serializes BindlessTextures appends
	cells sync.Map   // url string -> *Once[uint32]
}

// NewTextureLoader constructs a TextureLoader that reads image bytes from source
// and uploads them through r into textures.
func NewTextureLoader(source StreamSource, r renderer.Renderer, textures *worldrender.BindlessTextures) *TextureLoader {
	return &TextureLoader{source: source, r: r, textures: textures}
}

// Load decodes and uploads the texture at url, or returns the cached bindless
// index if url was already loaded.
func (l *TextureLoader) Load(url string) (uint32, error) {
	cellAny, _ := l.cells.LoadOrStore(url, &Once[uint32]{})
	cell := cellAny.(*Once[uint32])

	return cell.Get(func() (uint32, error) {
		rc, err := l.source.Open(url)
		if err != nil {
			return 0, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return 0, fmt.Errorf("resource: failed to read texture %q: %w", url, err)
		}

		imported := &common.ImportedTexture{Name: url, Data: data}
		pixels, width, height, err := imported.Decode()
		if err != nil {
			return 0, fmt.Errorf("resource: failed to decode texture %q: %w", url, err)
		}

		staging := common.TextureStagingData{Pixels: pixels, Width: width, Height: height}

		// InitTextureView creates and stores the GPU texture view on a
		// BindGroupProvider rather than returning it directly; a scratch provider
		// used only to receive the one view this load needs, then discarded.
		scratch := bind_group_provider.NewBindGroupProvider("texture_load_" + url)
		if err := l.r.InitTextureView(scratch, 0, staging); err != nil {
			return 0, fmt.Errorf("resource: failed to upload texture %q: %w", url, err)
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		return l.textures.Insert(scratch.TextureView(0)), nil
	})
}
