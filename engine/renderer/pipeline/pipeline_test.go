package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVertex = `//@oxy:layout 0 frame@v1
struct Frame {
    transform: mat4x4<f32>,
}
@group(0) @binding(0) var<uniform> frame: Frame;

struct VertexInput {
    @location(0) position: vec3<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return frame.transform * vec4<f32>(in.position, 1.0);
}
`

const testFragment = `@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

var frameLayout = binding.MustLayout("frame", 1,
	binding.Slot{Index: 0, Visibility: wgpu.ShaderStageVertex, Kind: binding.KindUniformBuffer, MinBindingSize: 64},
)

func newDevice() backend.SoftwareBackend {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	dev.RegisterVertexProgram("test.vert", func(_ *backend.Bindings, in backend.VertexInput) backend.VertexOutput {
		p := in.Attributes[0]
		return backend.VertexOutput{Position: [4]float32{p[0], p[1], p[2], 1}}
	})
	dev.RegisterFragmentProgram("test.frag", func(_ *backend.Bindings, _ backend.FragmentInput, out [][4]float32) bool {
		out[0] = [4]float32{1, 1, 1, 1}
		return false
	})
	return dev
}

func newShaders(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	vs, err := shader.NewShader("test.vert", shader.ShaderTypeVertex, testVertex, shader.WithValidation(false))
	require.NoError(t, err)
	fs, err := shader.NewShader("test.frag", shader.ShaderTypeFragment, testFragment, shader.WithValidation(false))
	require.NoError(t, err)
	return vs, fs
}

func newTestPipeline(t *testing.T, opts ...PipelineBuilderOption) Pipeline {
	t.Helper()
	vs, fs := newShaders(t)
	base := []PipelineBuilderOption{
		WithVertexShader(vs),
		WithFragmentShader(fs),
		WithBindingLayouts(frameLayout),
		WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
		WithDepthFormat(wgpu.TextureFormatDepth24Plus),
	}
	return NewPipeline("test", PipelineTypeRender, append(base, opts...)...)
}

func TestDescribe_Idempotent(t *testing.T) {
	a := newTestPipeline(t)
	b := newTestPipeline(t)
	assert.Equal(t, a.Describe(), b.Describe())
	assert.True(t, a.Describe() == b.Describe())

	d := a.Describe()
	assert.Equal(t, "frame@v1", d.Layouts[0])
	assert.Equal(t, 1, d.LayoutCount)
	assert.Equal(t, 1, d.TargetCount)
	assert.Equal(t, "vs_main", d.VertexEntry)
	assert.Equal(t, "12/", d.VertexLayout[:3])

	culled := newTestPipeline(t, WithCullMode(wgpu.CullModeBack))
	assert.NotEqual(t, a.Describe(), culled.Describe())
}

func TestVertexLayouts_Reflected(t *testing.T) {
	p := newTestPipeline(t)
	layouts := p.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(12), layouts[0].ArrayStride)

	explicit := wgpu.VertexBufferLayout{ArrayStride: 32, StepMode: wgpu.VertexStepModeVertex}
	p = newTestPipeline(t, WithVertexLayouts(explicit))
	assert.Equal(t, []wgpu.VertexBufferLayout{explicit}, p.VertexLayouts())
}

func TestBuild_Once(t *testing.T) {
	dev := newDevice()
	p := newTestPipeline(t)
	assert.Nil(t, p.RenderPipeline())

	require.NoError(t, p.Build(dev))
	first := p.RenderPipeline()
	require.NotNil(t, first)
	require.NoError(t, p.Build(dev))
	assert.Same(t, first, p.RenderPipeline())

	assert.ErrorIs(t, p.Build(newDevice()), ErrForeignDevice)

	p.Release()
	assert.Nil(t, p.RenderPipeline())
	require.NoError(t, p.Build(newDevice()))
}

func TestBuild_Rejects(t *testing.T) {
	dev := newDevice()
	vs, _ := newShaders(t)

	missing := NewPipeline("missing", PipelineTypeRender, WithVertexShader(vs), WithBindingLayouts(frameLayout))
	assert.ErrorIs(t, missing.Build(dev), ErrMissingShader)

	wrong := binding.MustLayout("frame", 2,
		binding.Slot{Index: 0, Visibility: wgpu.ShaderStageVertex, Kind: binding.KindUniformBuffer, MinBindingSize: 64},
	)
	p := newTestPipeline(t, WithBindingLayouts(wrong))
	assert.ErrorIs(t, p.Build(dev), shader.ErrLayoutDisagreement)
	assert.Nil(t, p.RenderPipeline())

	compute := NewPipeline("compute", PipelineTypeCompute)
	assert.ErrorIs(t, compute.Build(dev), ErrMissingShader)
}
