package shader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCameraStruct = `struct Camera {
    view_proj: mat4x4<f32>,
    view: mat4x4<f32>,
    inv_proj: mat4x4<f32>,
    position: vec3<f32>,
    near: f32,
    resolution: vec2<f32>,
    far: f32,
    _pad: f32,
}`

const testFragment = `//@oxy:include test_camera
//@oxy:layout 0 test@v1

struct LightSet {
    ambient: vec3<f32>,
    count: u32,
    lights: array<vec4<f32>>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<storage, read> lights: LightSet;
@group(0) @binding(2) var albedo: texture_2d<f32>;
@group(0) @binding(3) var albedo_sampler: sampler;

/* a /* nested */ comment with @group(9) @binding(9) var<uniform> ghost: f32; */

@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(albedo, albedo_sampler, frag.xy) * vec4<f32>(camera.near);
}
`

var testIncludes = map[string]string{"test_camera": testCameraStruct}

func testLayoutFor(stage wgpu.ShaderStage, lightMin uint64) *binding.Layout {
	return binding.MustLayout("test", 1,
		binding.Slot{Index: 0, Visibility: stage, Kind: binding.KindUniformBuffer, MinBindingSize: 224},
		binding.Slot{Index: 1, Visibility: stage, Kind: binding.KindReadOnlyStorageBuffer, MinBindingSize: lightMin},
		binding.Slot{Index: 2, Visibility: stage, Kind: binding.KindSampledTexture},
		binding.Slot{Index: 3, Visibility: stage, Kind: binding.KindSampler},
	)
}

func TestNewShader_Reflects(t *testing.T) {
	s, err := NewShader("test.fs", ShaderTypeFragment, testFragment, WithIncludes(testIncludes), WithValidation(false))
	require.NoError(t, err)

	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Contains(t, s.Source(), "struct Camera")
	assert.NotContains(t, s.Source(), "@oxy:include")

	b := s.Bindings()
	require.Len(t, b, 4)
	assert.Equal(t, binding.KindUniformBuffer, b[0].Kind)
	assert.Equal(t, uint64(224), b[0].MinSize)
	assert.Equal(t, binding.KindReadOnlyStorageBuffer, b[1].Kind)
	assert.Equal(t, uint64(32), b[1].MinSize)
	assert.Equal(t, binding.KindSampledTexture, b[2].Kind)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, b[2].SampleType)
	assert.Equal(t, binding.KindSampler, b[3].Kind)
	for _, decl := range b {
		assert.Equal(t, wgpu.ShaderStageFragment, decl.Stage)
	}

	require.Len(t, s.Layouts(), 1)
	assert.Equal(t, "test@v1", s.Layouts()[0].LayoutKey())
	assert.Equal(t, "test.fs", s.Stage().Key)
}

func TestNewShader_Errors(t *testing.T) {
	_, err := NewShader("missing", ShaderTypeFragment, "//@oxy:include nope\n@fragment fn main() {}", WithValidation(false))
	assert.ErrorContains(t, err, `unknown include "nope"`)

	_, err = NewShader("wrong-stage", ShaderTypeVertex, testFragment, WithIncludes(testIncludes), WithValidation(false))
	assert.ErrorContains(t, err, "no @vertex entry point")

	_, err = NewShader("bad-annotation", ShaderTypeFragment, "//@oxy:layout x test@v1\n", WithValidation(false))
	assert.ErrorContains(t, err, "invalid group")

	cyclic := map[string]string{"a": "//@oxy:include b", "b": "//@oxy:include a"}
	_, err = NewShader("cycle", ShaderTypeFragment, "//@oxy:include a", WithIncludes(cyclic), WithValidation(false))
	assert.ErrorContains(t, err, "include cycle")

	dup := "@group(0) @binding(0) var a: sampler;\n@group(0) @binding(0) var b: sampler;\n@fragment fn main() {}"
	_, err = NewShader("dup", ShaderTypeFragment, dup, WithValidation(false))
	assert.ErrorContains(t, err, "declared by both")
}

func TestPreProcessor_IncludesOnce(t *testing.T) {
	pp := NewPreProcessor(map[string]string{
		"base":  "struct Base { x: f32 }",
		"outer": "//@oxy:include base\nstruct Outer { b: Base }",
	})
	out, err := pp.Process("//@oxy:include base\n//@oxy:include outer\n")
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(out, "struct Base"))
	assert.Equal(t, 1, countOf(out, "struct Outer"))
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestRegisterInclude(t *testing.T) {
	RegisterInclude("shader_test_struct", "struct Registered { v: u32 }")
	assert.Contains(t, Includes(), "shader_test_struct")

	out, err := NewPreProcessor(nil).Process("//@oxy:include shader_test_struct")
	require.NoError(t, err)
	assert.Equal(t, "struct Registered { v: u32 }", out)
}

func TestParseVertexLayoutsAndWorkgroup(t *testing.T) {
	vs := `struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
}
struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
}
@vertex fn vs_main(in: VertexInput) -> VertexOutput { var out: VertexOutput; return out; }`
	s, err := NewShader("vs", ShaderTypeVertex, vs, WithValidation(false))
	require.NoError(t, err)
	require.Len(t, s.VertexLayouts(), 1)
	layout := s.VertexLayouts()[0]
	assert.Equal(t, uint64(32), layout.ArrayStride)
	require.Len(t, layout.Attributes, 3)
	assert.Equal(t, uint64(24), layout.Attributes[2].Offset)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layout.Attributes[2].Format)

	cs, err := NewShader("cs", ShaderTypeCompute, "@compute @workgroup_size(4, 2) fn main() {}", WithValidation(false))
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{4, 2, 1}, cs.WorkgroupSize())
	assert.Equal(t, "main", cs.EntryPoint())
}

func TestCheckLayouts(t *testing.T) {
	s, err := NewShader("test.fs", ShaderTypeFragment, testFragment, WithIncludes(testIncludes), WithValidation(false))
	require.NoError(t, err)

	assert.NoError(t, CheckLayouts([]*binding.Layout{testLayoutFor(wgpu.ShaderStageFragment, 32)}, s))

	tests := []struct {
		name    string
		layouts []*binding.Layout
	}{
		{name: "no groups", layouts: nil},
		{name: "invisible", layouts: []*binding.Layout{testLayoutFor(wgpu.ShaderStageVertex, 32)}},
		{name: "too small", layouts: []*binding.Layout{testLayoutFor(wgpu.ShaderStageFragment, 16)}},
		{name: "other layout", layouts: []*binding.Layout{binding.MustLayout("other", 1, testLayoutFor(wgpu.ShaderStageFragment, 32).Slots()...)}},
		{name: "wrong kind", layouts: []*binding.Layout{binding.MustLayout("test", 1,
			binding.Slot{Index: 0, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindStorageBuffer},
			binding.Slot{Index: 1, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindReadOnlyStorageBuffer},
			binding.Slot{Index: 2, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture},
			binding.Slot{Index: 3, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampler},
		)}},
		{name: "depth texture", layouts: []*binding.Layout{binding.MustLayout("test", 1,
			binding.Slot{Index: 0, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindUniformBuffer},
			binding.Slot{Index: 1, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindReadOnlyStorageBuffer},
			binding.Slot{Index: 2, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture, SampleType: wgpu.TextureSampleTypeDepth},
			binding.Slot{Index: 3, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampler},
		)}},
		{name: "missing slot", layouts: []*binding.Layout{binding.MustLayout("test", 1,
			binding.Slot{Index: 0, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindUniformBuffer},
		)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, CheckLayouts(tt.layouts, s), ErrLayoutDisagreement)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(`@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`))
	assert.Error(t, Validate("fn broken( {"))

	_, err := NewShader("invalid", ShaderTypeFragment, "@fragment fn fs_main( {")
	assert.Error(t, err)
}

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan []string, 4)
	w, err := NewWatcher(dir, 20*time.Millisecond, func(paths []string) { changed <- paths })
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "resolve.frag.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("// v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	select {
	case paths := <-changed:
		assert.Equal(t, []string{path}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.NoError(t, w.Close())
}
