package gbuffer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutOfMemory = errors.New("out of memory")

// flakyBackend fails CreateTexture once the budget of successful allocations is spent.
type flakyBackend struct {
	backend.Backend
	budget  int
	created []backend.Texture
}

func (b *flakyBackend) CreateTexture(desc *backend.TextureDescriptor) (backend.Texture, error) {
	if b.budget == 0 {
		return nil, errOutOfMemory
	}
	b.budget--
	tex, err := b.Backend.CreateTexture(desc)
	if err == nil {
		tex = &trackedTexture{Texture: tex}
		b.created = append(b.created, tex)
	}
	return tex, err
}

type trackedTexture struct {
	backend.Texture
	released bool
}

func (t *trackedTexture) Release() {
	t.released = true
	t.Texture.Release()
}

func TestNewSurface_Defaults(t *testing.T) {
	s, err := NewSurface(backend.NewSoftwareBackend(), 8, 6)
	require.NoError(t, err)

	set := s.Current()
	require.NotNil(t, set)
	assert.Equal(t, uint64(1), set.Generation())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, set.Position().Format())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, set.Normal().Format())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, set.Albedo().Format())
	assert.Equal(t, wgpu.TextureFormatDepth24Plus, set.Depth().Format())
	for r := RolePosition; r <= RoleDepth; r++ {
		assert.Equal(t, uint32(8), set.Target(r).Width(), r.String())
		assert.Equal(t, uint32(6), set.Target(r).Height(), r.String())
	}
	assert.Zero(t, set.Depth().Texture().Usage()&wgpu.TextureUsageTextureBinding)
	assert.NotZero(t, set.Albedo().Texture().Usage()&wgpu.TextureUsageTextureBinding)
	assert.Len(t, set.ColorViews(), 3)
}

func TestNewSurface_Rejects(t *testing.T) {
	dev := backend.NewSoftwareBackend()

	_, err := NewSurface(dev, 0, 6)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewSurface(dev, 8, 6, WithPositionFormat(wgpu.TextureFormatRGBA32Float))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewSurface(dev, 8, 6, WithDepthFormat(wgpu.TextureFormatRGBA8Unorm))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewSurface(dev, 8, 6, WithAlbedoFormat(wgpu.TextureFormatDepth32Float))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// Position and normal data need float channels.
	_, err = NewSurface(dev, 8, 6, WithNormalFormat(wgpu.TextureFormatRGBA8Unorm))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = NewSurface(dev, 8, 6, WithPositionFormat(wgpu.TextureFormatBGRA8Unorm))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormats_Validate(t *testing.T) {
	require.NoError(t, DefaultFormats().Validate())

	f := DefaultFormats()
	f.Albedo = wgpu.TextureFormatRGBA16Float
	assert.NoError(t, f.Validate())

	f = DefaultFormats()
	f.Normal = wgpu.TextureFormatRGBA8UnormSrgb
	assert.ErrorIs(t, f.Validate(), ErrUnsupportedFormat)
	assert.ErrorContains(t, f.Validate(), "normal")

	f = DefaultFormats()
	f.Position = wgpu.TextureFormatRGBA8Unorm
	assert.ErrorContains(t, f.Validate(), "position")
}

func TestSurface_Resize(t *testing.T) {
	s, err := NewSurface(backend.NewSoftwareBackend(), 800, 600)
	require.NoError(t, err)
	before := s.Current()

	require.NoError(t, s.Resize(1920, 1080))
	after := s.Current()
	assert.NotSame(t, before, after)
	assert.Greater(t, after.Generation(), before.Generation())
	for r := RolePosition; r <= RoleDepth; r++ {
		assert.Equal(t, uint32(1920), after.Target(r).Width())
		assert.Equal(t, uint32(1080), after.Target(r).Height())
	}

	assert.ErrorIs(t, s.Resize(0, 1080), ErrInvalidSize)
	assert.Same(t, after, s.Current())
}

func TestSurface_ResizeFailureKeepsCurrent(t *testing.T) {
	dev := &flakyBackend{Backend: backend.NewSoftwareBackend(), budget: 4}
	s, err := NewSurface(dev, 4, 4)
	require.NoError(t, err)
	current := s.Current()

	// Two more allocations succeed, the third fails mid-build.
	dev.budget = 2
	err = s.Resize(16, 16)
	assert.ErrorIs(t, err, errOutOfMemory)
	assert.Same(t, current, s.Current())

	require.Len(t, dev.created, 6)
	for _, tex := range dev.created[:4] {
		assert.False(t, tex.(*trackedTexture).released)
	}
	for _, tex := range dev.created[4:] {
		assert.True(t, tex.(*trackedTexture).released)
	}
}

func TestSurface_BuildThenSwap(t *testing.T) {
	s, err := NewSurface(backend.NewSoftwareBackend(), 4, 4)
	require.NoError(t, err)
	old := s.Current()

	next, err := s.Build(2, 2)
	require.NoError(t, err)
	assert.Same(t, old, s.Current())
	assert.Zero(t, next.Generation())

	prev := s.Swap(next)
	assert.Same(t, old, prev)
	assert.Same(t, next, s.Current())
	assert.Equal(t, old.Generation()+1, next.Generation())
	assert.Nil(t, s.Swap(nil))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("RGBA16Float")
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, f)

	f, err = ParseFormat("depth32float")
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, f)

	_, err = ParseFormat("r11g11b10")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "rgba8unorm", FormatName(wgpu.TextureFormatRGBA8Unorm))
}
