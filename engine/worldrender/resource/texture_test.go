package resource

import (
	"bytes"
	"io"
	"testing"

	"github.com/Carmen-Shannon/oxy-go/engine/worldrender"
)

type missingFileSource struct{}

func (missingFileSource) Open(url string) (io.ReadCloser, error) {
	return nil, errSentinel{}
}

type countingMissingSource struct{ opens int }

func (s *countingMissingSource) Open(url string) (io.ReadCloser, error) {
	s.opens++
	return nil, errSentinel{}
}

type badImageSource struct{}

func (badImageSource) Open(url string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("not an image"))), nil
}

func TestTextureLoaderPropagatesOpenError(t *testing.T) {
	var textures worldrender.BindlessTextures
	loader := NewTextureLoader(missingFileSource{}, nil, &textures)

	if _, err := loader.Load("missing.png"); err == nil {
		t.Fatal("expected an error when the source fails to open the url")
	}
}

func TestTextureLoaderPropagatesDecodeError(t *testing.T) {
	var textures worldrender.BindlessTextures
	loader := NewTextureLoader(badImageSource{}, nil, &textures)

	if _, err := loader.Load("bad.png"); err == nil {
		t.Fatal("expected an error decoding non-image data")
	}
}

func TestTextureLoaderCachesByURL(t *testing.T) {
	var textures worldrender.BindlessTextures
	source := &countingMissingSource{}
	loader := NewTextureLoader(source, nil, &textures)

	_, err1 := loader.Load("missing.png")
	_, err2 := loader.Load("missing.png")
	if err1 == nil || err2 == nil {
		t.Fatal("expected both loads to fail the same way")
	}
	if source.opens != 1 {
		t.Fatalf("expected the second load of the same url to reuse the cached result, source opened %d times", source.opens)
	}
}
