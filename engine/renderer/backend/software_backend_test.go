package backend

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadVertices covers the whole viewport at the given depth with two CCW triangles.
func quadVertices(z float32) []float32 {
	return []float32{
		-1, -1, z,
		1, -1, z,
		1, 1, z,
		-1, -1, z,
		1, 1, z,
		-1, 1, z,
	}
}

func newTestBackend(t *testing.T) SoftwareBackend {
	t.Helper()
	b := NewSoftwareBackend(WithWorkers(2), WithBandHeight(2))
	b.RegisterVertexProgram("test.vs", func(_ *Bindings, in VertexInput) VertexOutput {
		p := in.Attributes[0]
		return VertexOutput{Position: [4]float32{p[0], p[1], p[2], 1}, Varyings: []float32{p[2]}}
	})
	b.RegisterFragmentProgram("test.fs", func(_ *Bindings, in FragmentInput, out [][4]float32) bool {
		out[0] = [4]float32{1, in.Varyings[0], 0, 1}
		return false
	})
	b.RegisterFragmentProgram("discard.fs", func(_ *Bindings, _ FragmentInput, _ [][4]float32) bool {
		return true
	})
	return b
}

func testPipeline(t *testing.T, b SoftwareBackend, fragmentKey string, depth bool) RenderPipeline {
	t.Helper()
	desc := &RenderPipelineDescriptor{
		Label:    "test",
		Vertex:   ShaderStage{Key: "test.vs", EntryPoint: "vs_main"},
		Fragment: ShaderStage{Key: fragmentKey, EntryPoint: "fs_main"},
		VertexBuffers: []wgpu.VertexBufferLayout{{
			ArrayStride: 12,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  []wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0}},
		}},
		Targets:   []wgpu.ColorTargetState{{Format: wgpu.TextureFormatRGBA8Unorm, WriteMask: wgpu.ColorWriteMaskAll}},
		Primitive: wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList, FrontFace: wgpu.FrontFaceCCW, CullMode: wgpu.CullModeNone},
	}
	if depth {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		}
	}
	p, err := b.CreateRenderPipeline(desc)
	require.NoError(t, err)
	return p
}

func testTarget(t *testing.T, b Backend, format wgpu.TextureFormat, w, h uint32) TextureView {
	t.Helper()
	tex, err := b.CreateTexture(&TextureDescriptor{
		Label:  "target",
		Width:  w,
		Height: h,
		Format: format,
		Usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	view, err := tex.CreateView()
	require.NoError(t, err)
	return view
}

func vertexBuffer(t *testing.T, b Backend, data []float32) Buffer {
	t.Helper()
	buf, err := b.CreateBuffer(&BufferDescriptor{Label: "vertices", Size: uint64(len(data) * 4), Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, b.WriteBuffer(buf, 0, common.SliceToBytes(data)))
	return buf
}

func readTexel(t *testing.T, v TextureView, x, y int) [4]float32 {
	t.Helper()
	rb, ok := v.(Readback)
	require.True(t, ok)
	c, err := rb.ReadTexel(x, y)
	require.NoError(t, err)
	return c
}

func TestSoftwareBackend_ClearOnly(t *testing.T) {
	b := newTestBackend(t)
	target := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, 3, 2)

	enc, err := b.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(&RenderPassDescriptor{
		Label: "clear",
		ColorAttachments: []ColorAttachment{{
			View: target, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0.5, B: 1, A: 1},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	b.Submit(cb)

	c := readTexel(t, target, 2, 1)
	assert.Equal(t, float32(0), c[0])
	assert.InDelta(t, 0.5, c[1], 1.0/255)
	assert.Equal(t, float32(1), c[2])

	records := b.LastSubmission()
	require.Len(t, records, 1)
	assert.Equal(t, "clear", records[0].Label)
	assert.Zero(t, records[0].Draws)
}

func TestSoftwareBackend_DrawCoversViewport(t *testing.T) {
	b := newTestBackend(t)
	target := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, 8, 6)
	depth := testTarget(t, b, wgpu.TextureFormatDepth24Plus, 8, 6)
	pipeline := testPipeline(t, b, "test.fs", true)

	// The far quad is drawn second and must lose the depth test everywhere.
	vertices := append(quadVertices(0.25), quadVertices(0.75)...)
	vb := vertexBuffer(t, b, vertices)

	enc, err := b.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(&RenderPassDescriptor{
		Label:                  "geometry",
		ColorAttachments:       []ColorAttachment{{View: target, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}},
		DepthStencilAttachment: &DepthAttachment{View: depth, DepthLoadOp: wgpu.LoadOpClear, DepthStoreOp: wgpu.StoreOpStore, DepthClearValue: 1},
	})
	require.NoError(t, err)
	pass.SetPipeline(pipeline)
	pass.SetVertexBuffer(0, vb)
	pass.Draw(12, 1, 0, 0)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	b.Submit(cb)

	for y := range 6 {
		for x := range 8 {
			c := readTexel(t, target, x, y)
			assert.Equal(t, float32(1), c[0], "pixel (%d, %d)", x, y)
			assert.InDelta(t, 0.25, c[1], 1.0/255, "pixel (%d, %d)", x, y)
			d := readTexel(t, depth, x, y)
			assert.InDelta(t, 0.25, d[0], 1e-6)
		}
	}
	assert.Equal(t, 1, b.LastSubmission()[0].Draws)
}

func TestSoftwareBackend_SharedEdgesShadeOnce(t *testing.T) {
	const w, h = 16, 16
	b := newTestBackend(t)
	var mu sync.Mutex
	hits := make(map[[2]int]int)
	b.RegisterFragmentProgram("count.fs", func(_ *Bindings, in FragmentInput, out [][4]float32) bool {
		mu.Lock()
		hits[[2]int{int(in.Position[0]), int(in.Position[1])}]++
		mu.Unlock()
		out[0] = [4]float32{1, 0, 0, 1}
		return false
	})
	target := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, w, h)
	pipeline := testPipeline(t, b, "count.fs", false)

	// A fan over the viewport. The diagonal spokes pass exactly through pixel centres and
	// the others cut them at arbitrary slopes. Winding alternates.
	center := [2]float32{0.1, -0.05}
	rim := [][2]float32{{-1, -1}, {0.3, -1}, {1, -1}, {1, 0.17}, {1, 1}, {-0.4, 1}, {-1, 1}, {-1, -0.6}}
	var vertices []float32
	for i := range rim {
		a, c := rim[i], rim[(i+1)%len(rim)]
		if i%2 == 1 {
			a, c = c, a
		}
		vertices = append(vertices, center[0], center[1], 0.5, a[0], a[1], 0.5, c[0], c[1], 0.5)
	}
	// Two triangles split along the exact diagonal of the viewport.
	vertices = append(vertices, -1, -1, 0.5, 1, -1, 0.5, 1, 1, 0.5, -1, -1, 0.5, 1, 1, 0.5, -1, 1, 0.5)
	vb := vertexBuffer(t, b, vertices)
	fanVertices := uint32(len(rim) * 3)

	for _, draw := range [][2]uint32{{fanVertices, 0}, {6, fanVertices}} {
		clear(hits)
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		pass, err := enc.BeginRenderPass(&RenderPassDescriptor{
			Label:            "geometry",
			ColorAttachments: []ColorAttachment{{View: target, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}},
		})
		require.NoError(t, err)
		pass.SetPipeline(pipeline)
		pass.SetVertexBuffer(0, vb)
		pass.Draw(draw[0], 1, draw[1], 0)
		require.NoError(t, pass.End())
		cb, err := enc.Finish()
		require.NoError(t, err)
		b.Submit(cb)

		for y := range h {
			for x := range w {
				assert.Equal(t, 1, hits[[2]int{x, y}], "pixel (%d, %d) of draw at %d", x, y, draw[1])
			}
		}
	}
}

func TestEdgeWeight_SharedEdgeIsExactlyOpposite(t *testing.T) {
	a, c := [2]float32{1.3, 7.77}, [2]float32{13.1, 2.05}
	for _, p := range [][2]float32{{5.5, 5.5}, {7.2, 4.9}, {1.3, 7.77}, {10.5, 3.5}} {
		assert.Equal(t, edgeWeight(a[0], a[1], c[0], c[1], p[0], p[1]), -edgeWeight(c[0], c[1], a[0], a[1], p[0], p[1]))
	}
	for _, d := range [][2]float32{{1, 0}, {0, 1}, {-2, 3}, {3, -0.5}} {
		assert.NotEqual(t, ownsEdge(d[0], d[1]), ownsEdge(-d[0], -d[1]))
	}
}

func TestSoftwareBackend_DiscardKeepsClear(t *testing.T) {
	b := newTestBackend(t)
	target := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, 4, 4)
	pipeline := testPipeline(t, b, "discard.fs", false)
	vb := vertexBuffer(t, b, quadVertices(0.5))

	enc, err := b.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(&RenderPassDescriptor{
		ColorAttachments: []ColorAttachment{{View: target, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}},
	})
	require.NoError(t, err)
	pass.SetPipeline(pipeline)
	pass.SetVertexBuffer(0, vb)
	pass.Draw(6, 1, 0, 0)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	b.Submit(cb)

	assert.Equal(t, [4]float32{}, readTexel(t, target, 1, 1))
}

func TestSoftwareBackend_PassMisuse(t *testing.T) {
	b := newTestBackend(t)
	target := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, 4, 4)
	desc := &RenderPassDescriptor{
		ColorAttachments: []ColorAttachment{{View: target, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore}},
	}

	t.Run("draw without pipeline", func(t *testing.T) {
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		pass, err := enc.BeginRenderPass(desc)
		require.NoError(t, err)
		pass.Draw(3, 1, 0, 0)
		assert.ErrorIs(t, pass.End(), ErrInvalidPass)
	})

	t.Run("finish with open pass", func(t *testing.T) {
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		_, err = enc.BeginRenderPass(desc)
		require.NoError(t, err)
		_, err = enc.Finish()
		assert.ErrorIs(t, err, ErrPassNotEnded)
		_, err = enc.BeginComputePass("second")
		assert.ErrorIs(t, err, ErrPassNotEnded)
	})

	t.Run("reuse after finish", func(t *testing.T) {
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		_, err = enc.Finish()
		require.NoError(t, err)
		_, err = enc.BeginRenderPass(desc)
		assert.ErrorIs(t, err, ErrEncoderFinished)
	})

	t.Run("mismatched attachment sizes", func(t *testing.T) {
		other := testTarget(t, b, wgpu.TextureFormatRGBA8Unorm, 5, 4)
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		_, err = enc.BeginRenderPass(&RenderPassDescriptor{
			ColorAttachments: []ColorAttachment{{View: target}, {View: other}},
		})
		assert.ErrorIs(t, err, ErrInvalidPass)
	})

	t.Run("target format mismatch", func(t *testing.T) {
		floatTarget := testTarget(t, b, wgpu.TextureFormatRGBA16Float, 4, 4)
		pipeline := testPipeline(t, b, "test.fs", false)
		enc, err := b.CreateCommandEncoder("frame")
		require.NoError(t, err)
		pass, err := enc.BeginRenderPass(&RenderPassDescriptor{
			ColorAttachments: []ColorAttachment{{View: floatTarget, LoadOp: wgpu.LoadOpClear}},
		})
		require.NoError(t, err)
		pass.SetPipeline(pipeline)
		assert.ErrorIs(t, pass.End(), ErrInvalidPass)
	})
}

func TestSoftwareBackend_UnknownProgram(t *testing.T) {
	b := NewSoftwareBackend()
	_, err := b.CreateRenderPipeline(&RenderPipelineDescriptor{
		Label:     "missing",
		Vertex:    ShaderStage{Key: "nope.vs"},
		Fragment:  ShaderStage{Key: "nope.fs"},
		Primitive: wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
	})
	assert.ErrorIs(t, err, ErrUnknownProgram)

	_, err = b.CreateComputePipeline(&ComputePipelineDescriptor{Label: "missing", Compute: ShaderStage{Key: "nope.cs"}})
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestSoftwareBackend_ComputeWritesStorage(t *testing.T) {
	b := NewSoftwareBackend()
	b.RegisterComputeProgram("fill.cs", func(bind *Bindings, wg [3]uint32) error {
		out := bind.Buffer(0, 0)
		for i := range int(wg[0]) {
			PutUint32(out, i*4, uint32(i+1))
		}
		return nil
	})

	layout, err := b.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "fill",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
		}},
	})
	require.NoError(t, err)
	buf, err := b.CreateBuffer(&BufferDescriptor{Label: "out", Size: 16, Usage: wgpu.BufferUsageStorage})
	require.NoError(t, err)
	group, err := b.CreateBindGroup(&BindGroupDescriptor{Label: "fill", Layout: layout, Entries: []BindGroupEntry{{Binding: 0, Buffer: buf}}})
	require.NoError(t, err)
	pipeline, err := b.CreateComputePipeline(&ComputePipelineDescriptor{
		Label:            "fill",
		BindGroupLayouts: []BindGroupLayout{layout},
		Compute:          ShaderStage{Key: "fill.cs", EntryPoint: "main"},
	})
	require.NoError(t, err)

	enc, err := b.CreateCommandEncoder("compute")
	require.NoError(t, err)
	pass, err := enc.BeginComputePass("fill")
	require.NoError(t, err)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.DispatchWorkgroups(4, 1, 1)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	b.Submit(cb)

	data := buf.(*swBuffer).data
	for i := range 4 {
		assert.Equal(t, uint32(i+1), Uint32At(data, i*4))
	}
	records := b.LastSubmission()
	require.Len(t, records, 1)
	assert.True(t, records[0].Compute)
	assert.Equal(t, 1, records[0].Dispatches)
}

func TestSoftwareBackend_PresentKeepsImage(t *testing.T) {
	b := NewSoftwareBackend()
	require.NoError(t, b.ConfigureOutput(4, 3))

	view, err := b.AcquireOutput()
	require.NoError(t, err)
	_, err = b.AcquireOutput()
	assert.Error(t, err)

	b.Present()
	assert.Equal(t, uint64(1), b.PresentCount())
	require.NotNil(t, b.Presented())
	assert.Equal(t, uint32(4), b.Presented().Width())
	assert.Equal(t, uint32(3), b.Presented().Height())
	assert.Same(t, view, b.Presented())

	next, err := b.AcquireOutput()
	require.NoError(t, err)
	assert.NotSame(t, view.Texture(), next.Texture())
}

func TestRoundHalf(t *testing.T) {
	assert.Equal(t, float32(1), roundHalf(1))
	assert.Equal(t, float32(-2.5), roundHalf(-2.5))
	assert.Equal(t, float32(0.0999755859375), roundHalf(0.1))
	assert.Equal(t, float32(2050), roundHalf(2050.6))
}

func TestParseBackendType(t *testing.T) {
	bt, err := ParseBackendType("Software")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeSoftware, bt)

	bt, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, bt)

	_, err = ParseBackendType("vulkan")
	assert.Error(t, err)
}
