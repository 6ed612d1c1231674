package binding

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = MustLayout("test", 1,
	Slot{Index: 0, Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment, Kind: KindUniformBuffer, MinBindingSize: 64},
	Slot{Index: 1, Visibility: wgpu.ShaderStageFragment, Kind: KindSampledTexture},
	Slot{Index: 2, Visibility: wgpu.ShaderStageFragment, Kind: KindSampler},
)

type fixture struct {
	dev      backend.Backend
	uniform  backend.Buffer
	small    backend.Buffer
	storage  backend.Buffer
	color    backend.TextureView
	position backend.TextureView
	noBind   backend.TextureView
	sampler  backend.Sampler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	buffer := func(label string, size uint64, usage wgpu.BufferUsage) backend.Buffer {
		buf, err := dev.CreateBuffer(&backend.BufferDescriptor{Label: label, Size: size, Usage: usage})
		require.NoError(t, err)
		return buf
	}
	view := func(label string, format wgpu.TextureFormat, usage wgpu.TextureUsage) backend.TextureView {
		tex, err := dev.CreateTexture(&backend.TextureDescriptor{Label: label, Width: 4, Height: 4, Format: format, Usage: usage})
		require.NoError(t, err)
		v, err := tex.CreateView()
		require.NoError(t, err)
		return v
	}
	sampler, err := dev.CreateSampler("sampler", common.SamplerStagingData{})
	require.NoError(t, err)

	return fixture{
		dev:      dev,
		uniform:  buffer("uniform", 64, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst),
		small:    buffer("small", 16, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst),
		storage:  buffer("storage", 64, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst),
		color:    view("color", wgpu.TextureFormatRGBA8Unorm, wgpu.TextureUsageTextureBinding),
		position: view("position", wgpu.TextureFormatRGBA32Float, wgpu.TextureUsageTextureBinding),
		noBind:   view("attachment", wgpu.TextureFormatRGBA8Unorm, wgpu.TextureUsageRenderAttachment),
		sampler:  sampler,
	}
}

func TestNewLayout_Invalid(t *testing.T) {
	vis := wgpu.ShaderStageFragment
	tests := []struct {
		name    string
		layout  string
		version int
		slots   []Slot
	}{
		{name: "empty name", layout: "", version: 1, slots: []Slot{{Index: 0, Visibility: vis}}},
		{name: "zero version", layout: "x", version: 0, slots: []Slot{{Index: 0, Visibility: vis}}},
		{name: "no slots", layout: "x", version: 1},
		{name: "descending", layout: "x", version: 1, slots: []Slot{{Index: 1, Visibility: vis}, {Index: 0, Visibility: vis}}},
		{name: "duplicate", layout: "x", version: 1, slots: []Slot{{Index: 0, Visibility: vis}, {Index: 0, Visibility: vis}}},
		{name: "unknown kind", layout: "x", version: 1, slots: []Slot{{Index: 0, Visibility: vis, Kind: Kind(42)}}},
		{name: "invisible", layout: "x", version: 1, slots: []Slot{{Index: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLayout(tt.layout, tt.version, tt.slots...)
			assert.ErrorIs(t, err, ErrInvalidLayout)
		})
	}
}

func TestLayout_Descriptor(t *testing.T) {
	desc := testLayout.Descriptor()
	assert.Equal(t, "test@v1", desc.Label)
	require.Len(t, desc.Entries, 3)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(64), desc.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, desc.Entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, desc.Entries[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, desc.Entries[2].Sampler.Type)
}

func TestLayout_Check(t *testing.T) {
	same := MustLayout("test", 1, testLayout.Slots()...)
	v2 := MustLayout("test", 2, testLayout.Slots()...)
	other := MustLayout("other", 1, testLayout.Slots()...)

	assert.NoError(t, testLayout.Check(testLayout))
	assert.NoError(t, testLayout.Check(same))
	assert.ErrorIs(t, testLayout.Check(v2), ErrLayoutVersion)
	assert.ErrorIs(t, testLayout.Check(other), ErrLayoutMismatch)
	assert.ErrorIs(t, testLayout.Check(nil), ErrLayoutMismatch)
	assert.True(t, testLayout.Compatible(same))
	assert.False(t, testLayout.Compatible(v2))
}

func TestNewSet_Valid(t *testing.T) {
	f := newFixture(t)
	set, err := NewSet("material", testLayout,
		UniformBuffer(f.uniform),
		Texture(f.color),
		SamplerResource(f.sampler),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Same(t, testLayout, set.Layout())
	assert.Equal(t, []backend.TextureView{f.color}, set.Views())

	g1, err := set.BindGroup(f.dev)
	require.NoError(t, err)
	g2, err := set.BindGroup(f.dev)
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, "material", g1.Label())
}

func TestNewSet_Rejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name      string
		resources []Resource
		want      error
	}{
		{
			name:      "missing slot",
			resources: []Resource{UniformBuffer(f.uniform), Texture(f.color)},
			want:      ErrSlotCount,
		},
		{
			name:      "extra slot",
			resources: []Resource{UniformBuffer(f.uniform), Texture(f.color), SamplerResource(f.sampler), UniformBuffer(f.uniform)},
			want:      ErrSlotCount,
		},
		{
			name:      "wrong kind",
			resources: []Resource{Storage(f.storage), Texture(f.color), SamplerResource(f.sampler)},
			want:      ErrSlotKind,
		},
		{
			name:      "nil buffer",
			resources: []Resource{UniformBuffer(nil), Texture(f.color), SamplerResource(f.sampler)},
			want:      ErrNilResource,
		},
		{
			name:      "nil view",
			resources: []Resource{UniformBuffer(f.uniform), Texture(nil), SamplerResource(f.sampler)},
			want:      ErrNilResource,
		},
		{
			name:      "buffer usage",
			resources: []Resource{UniformBuffer(f.storage), Texture(f.color), SamplerResource(f.sampler)},
			want:      ErrResourceUsage,
		},
		{
			name:      "texture usage",
			resources: []Resource{UniformBuffer(f.uniform), Texture(f.noBind), SamplerResource(f.sampler)},
			want:      ErrResourceUsage,
		},
		{
			name:      "too small",
			resources: []Resource{UniformBuffer(f.small), Texture(f.color), SamplerResource(f.sampler)},
			want:      ErrBufferTooSmall,
		},
		{
			name:      "sample type",
			resources: []Resource{UniformBuffer(f.uniform), Texture(f.position), SamplerResource(f.sampler)},
			want:      ErrSampleType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewSet("bad", testLayout, tt.resources...)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, set)
		})
	}

	_, err := NewSet("nil layout", nil)
	assert.ErrorIs(t, err, ErrNilResource)
}

func TestSampleTypeFor(t *testing.T) {
	assert.Equal(t, wgpu.TextureSampleTypeDepth, SampleTypeFor(wgpu.TextureFormatDepth24Plus))
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, SampleTypeFor(wgpu.TextureFormatRGBA32Float))
	assert.Equal(t, wgpu.TextureSampleTypeFloat, SampleTypeFor(wgpu.TextureFormatRGBA16Float))
	assert.Equal(t, wgpu.TextureSampleTypeFloat, SampleTypeFor(wgpu.TextureFormatRGBA8Unorm))
}
