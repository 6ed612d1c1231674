package backend

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// swRenderState is the bound state while replaying a render pass.
type swRenderState struct {
	pass          *swPass
	colors        []*swTexture
	depth         *swTexture
	width, height int

	pipeline      *swRenderPipeline
	groups        []*swBindGroup
	vertexBuffers map[uint32]*swBuffer
	indexBuffer   *swBuffer
	indexFormat   wgpu.IndexFormat
}

type swTriangle struct {
	sx, sy, sz, invW [3]float32
	varyings         [3][]float32
	area             float32
	orient           float32
	owns             [3]bool
	front            bool
	minX, maxX       int
	minY, maxY       int
}

func (b *softwareBackendImpl) executeRenderPass(p *swPass) PassRecord {
	rec := PassRecord{Label: p.label}
	st := &swRenderState{
		pass:          p,
		vertexBuffers: map[uint32]*swBuffer{},
		indexFormat:   wgpu.IndexFormatUint32,
	}

	for _, a := range p.colors {
		t := a.View.(*swTextureView).texture
		st.colors = append(st.colors, t)
		st.width, st.height = int(t.desc.Width), int(t.desc.Height)
		if a.LoadOp == wgpu.LoadOpClear {
			t.fill([4]float32{float32(a.ClearValue.R), float32(a.ClearValue.G), float32(a.ClearValue.B), float32(a.ClearValue.A)})
		}
	}
	if p.depth != nil {
		t := p.depth.View.(*swTextureView).texture
		st.depth = t
		st.width, st.height = int(t.desc.Width), int(t.desc.Height)
		if p.depth.DepthLoadOp == wgpu.LoadOpClear {
			t.fill([4]float32{p.depth.DepthClearValue, 0, 0, 0})
		}
	}

	for _, c := range p.cmds {
		switch c.kind {
		case cmdSetRenderPipeline:
			st.pipeline = c.renderPipeline
		case cmdSetBindGroup:
			st.groups = setGroup(st.groups, c.index, c.group)
		case cmdSetVertexBuffer:
			st.vertexBuffers[c.index] = c.buffer
		case cmdSetIndexBuffer:
			st.indexBuffer = c.buffer
			st.indexFormat = c.indexFormat
		case cmdDraw:
			rec.Draws++
			b.draw(st, c, func(i uint32) uint32 { return c.first + i })
		case cmdDrawIndexed:
			rec.IndexedDraws++
			b.draw(st, c, func(i uint32) uint32 {
				at := c.first + i
				var idx uint32
				if st.indexFormat == wgpu.IndexFormatUint16 {
					data := st.indexBuffer.data[at*2:]
					idx = uint32(data[0]) | uint32(data[1])<<8
				} else {
					idx = Uint32At(st.indexBuffer.data, int(at*4))
				}
				return uint32(int32(idx) + c.baseVertex)
			})
		}
	}
	return rec
}

func (b *softwareBackendImpl) draw(st *swRenderState, c swCmd, vertexAt func(i uint32) uint32) {
	if c.count < 3 || st.width == 0 || st.height == 0 {
		return
	}
	bindings := &Bindings{groups: append([]*swBindGroup(nil), st.groups...)}

	for inst := c.firstInstance; inst < c.firstInstance+c.instances; inst++ {
		cache := make(map[uint32]VertexOutput)
		shade := func(v uint32) VertexOutput {
			if out, ok := cache[v]; ok {
				return out
			}
			out := st.pipeline.vertex(bindings, VertexInput{
				VertexIndex:   v,
				InstanceIndex: inst,
				Attributes:    st.attributes(v, inst),
			})
			cache[v] = out
			return out
		}

		tris := make([]swTriangle, 0, c.count/3)
		for i := uint32(0); i+2 < c.count; i += 3 {
			tri, ok := st.setup(shade(vertexAt(i)), shade(vertexAt(i+1)), shade(vertexAt(i+2)))
			if ok {
				tris = append(tris, tri)
			}
		}
		if len(tris) == 0 {
			continue
		}
		b.rasterize(st, bindings, tris)
	}
}

// attributes decodes the vertex attributes of vertex v from the bound vertex buffers.
func (st *swRenderState) attributes(v, inst uint32) [][]float32 {
	var out [][]float32
	for slot, layout := range st.pipeline.desc.VertexBuffers {
		buf := st.vertexBuffers[uint32(slot)]
		if buf == nil {
			continue
		}
		index := v
		if layout.StepMode == wgpu.VertexStepModeInstance {
			index = inst
		}
		base := uint64(index) * layout.ArrayStride
		for _, a := range layout.Attributes {
			for uint32(len(out)) <= a.ShaderLocation {
				out = append(out, nil)
			}
			out[a.ShaderLocation] = decodeAttribute(a.Format, buf.data, base+a.Offset)
		}
	}
	return out
}

func decodeAttribute(format wgpu.VertexFormat, data []byte, off uint64) []float32 {
	n := 0
	asUint := false
	switch format {
	case wgpu.VertexFormatFloat32:
		n = 1
	case wgpu.VertexFormatFloat32x2:
		n = 2
	case wgpu.VertexFormatFloat32x3:
		n = 3
	case wgpu.VertexFormatFloat32x4:
		n = 4
	case wgpu.VertexFormatUint32:
		n, asUint = 1, true
	case wgpu.VertexFormatUint32x2:
		n, asUint = 2, true
	case wgpu.VertexFormatUint32x3:
		n, asUint = 3, true
	case wgpu.VertexFormatUint32x4:
		n, asUint = 4, true
	}
	out := make([]float32, n)
	if off+uint64(n*4) > uint64(len(data)) {
		return out
	}
	for i := range n {
		if asUint {
			out[i] = float32(Uint32At(data, int(off)+i*4))
		} else {
			out[i] = Float32At(data, int(off)+i*4)
		}
	}
	return out
}

// setup projects a clip-space triangle to the framebuffer. Triangles crossing the w = 0
// plane, degenerate triangles and culled triangles are rejected.
func (st *swRenderState) setup(v0, v1, v2 VertexOutput) (swTriangle, bool) {
	var t swTriangle
	verts := [3]VertexOutput{v0, v1, v2}
	var ndcX, ndcY [3]float32
	for i, v := range verts {
		w := v.Position[3]
		if w <= 1e-6 {
			return t, false
		}
		t.invW[i] = 1 / w
		ndcX[i] = v.Position[0] * t.invW[i]
		ndcY[i] = v.Position[1] * t.invW[i]
		t.sz[i] = v.Position[2] * t.invW[i]
		t.sx[i] = (ndcX[i]*0.5 + 0.5) * float32(st.width)
		t.sy[i] = (0.5 - ndcY[i]*0.5) * float32(st.height)
		t.varyings[i] = v.Varyings
	}

	ndcArea := (ndcX[1]-ndcX[0])*(ndcY[2]-ndcY[0]) - (ndcX[2]-ndcX[0])*(ndcY[1]-ndcY[0])
	if ndcArea == 0 {
		return t, false
	}
	prim := st.pipeline.desc.Primitive
	if prim.FrontFace == wgpu.FrontFaceCW {
		t.front = ndcArea < 0
	} else {
		t.front = ndcArea > 0
	}
	switch prim.CullMode {
	case wgpu.CullModeBack:
		if !t.front {
			return t, false
		}
	case wgpu.CullModeFront:
		if t.front {
			return t, false
		}
	}

	t.area = edge(t.sx[0], t.sy[0], t.sx[1], t.sy[1], t.sx[2], t.sy[2])
	if t.area == 0 {
		return t, false
	}
	t.orient = 1
	if t.area < 0 {
		t.orient = -1
	}
	t.area *= t.orient
	for i := range 3 {
		a, b := (i+1)%3, (i+2)%3
		t.owns[i] = ownsEdge(t.orient*(t.sx[b]-t.sx[a]), t.orient*(t.sy[b]-t.sy[a]))
	}
	minX := math32.Min(t.sx[0], math32.Min(t.sx[1], t.sx[2]))
	maxX := math32.Max(t.sx[0], math32.Max(t.sx[1], t.sx[2]))
	minY := math32.Min(t.sy[0], math32.Min(t.sy[1], t.sy[2]))
	maxY := math32.Max(t.sy[0], math32.Max(t.sy[1], t.sy[2]))
	t.minX = max(int(math32.Floor(minX)), 0)
	t.maxX = min(int(math32.Ceil(maxX)), st.width-1)
	t.minY = max(int(math32.Floor(minY)), 0)
	t.maxY = min(int(math32.Ceil(maxY)), st.height-1)
	if t.minX > t.maxX || t.minY > t.maxY {
		return t, false
	}
	return t, true
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// edgeWeight evaluates the edge function of a to b at p with the endpoints in a fixed
// order, so the two triangles sharing an edge get exactly opposite values.
func edgeWeight(ax, ay, bx, by, px, py float32) float32 {
	if ay > by || (ay == by && ax > bx) {
		return -edge(bx, by, ax, ay, px, py)
	}
	return edge(ax, ay, bx, by, px, py)
}

// ownsEdge reports whether a triangle traversing an edge along (dx, dy) keeps the pixel
// centres lying exactly on it. The opposite direction never does, so a pixel on a shared
// edge is shaded once.
func ownsEdge(dx, dy float32) bool {
	return dy > 0 || (dy == 0 && dx < 0)
}

// weights returns the edge weights of the pixel centre (px, py), scaled by the triangle's
// orientation so that covered pixels have non-negative weights.
func (t *swTriangle) weights(px, py float32) ([3]float32, bool) {
	var w [3]float32
	for i := range 3 {
		a, b := (i+1)%3, (i+2)%3
		w[i] = t.orient * edgeWeight(t.sx[a], t.sy[a], t.sx[b], t.sy[b], px, py)
		if w[i] < 0 || (w[i] == 0 && !t.owns[i]) {
			return w, false
		}
	}
	return w, true
}

func depthPasses(cmp wgpu.CompareFunction, z, stored float32) bool {
	switch cmp {
	case wgpu.CompareFunctionNever:
		return false
	case wgpu.CompareFunctionLess:
		return z < stored
	case wgpu.CompareFunctionLessEqual:
		return z <= stored
	case wgpu.CompareFunctionEqual:
		return z == stored
	case wgpu.CompareFunctionGreater:
		return z > stored
	case wgpu.CompareFunctionGreaterEqual:
		return z >= stored
	case wgpu.CompareFunctionNotEqual:
		return z != stored
	default:
		return true
	}
}

// rasterize shades the triangles of one draw. The framebuffer is split into row bands
// shaded in parallel; within a band triangles are processed in submission order.
func (b *softwareBackendImpl) rasterize(st *swRenderState, bindings *Bindings, tris []swTriangle) {
	var wg sync.WaitGroup
	taskID := 0
	for y0 := 0; y0 < st.height; y0 += b.bandHeight {
		y1 := min(y0+b.bandHeight, st.height)
		covered := false
		for i := range tris {
			if tris[i].maxY >= y0 && tris[i].minY < y1 {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}

		wg.Add(1)
		bandStart, bandEnd := y0, y1
		id := taskID
		taskID++
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				st.shadeBand(bindings, tris, bandStart, bandEnd)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (st *swRenderState) shadeBand(bindings *Bindings, tris []swTriangle, y0, y1 int) {
	pipeline := st.pipeline
	ds := pipeline.desc.DepthStencil
	out := make([][4]float32, len(st.colors))
	var varyings []float32

	for ti := range tris {
		t := &tris[ti]
		if t.maxY < y0 || t.minY >= y1 {
			continue
		}
		nv := min(len(t.varyings[0]), len(t.varyings[1]), len(t.varyings[2]))
		if cap(varyings) < nv {
			varyings = make([]float32, nv)
		}
		varyings = varyings[:nv]

		for y := max(t.minY, y0); y <= min(t.maxY, y1-1); y++ {
			py := float32(y) + 0.5
			for x := t.minX; x <= t.maxX; x++ {
				px := float32(x) + 0.5
				w, inside := t.weights(px, py)
				if !inside {
					continue
				}
				b0, b1, b2 := w[0]/t.area, w[1]/t.area, w[2]/t.area

				z := b0*t.sz[0] + b1*t.sz[1] + b2*t.sz[2]
				if z < 0 || z > 1 {
					continue
				}
				if st.depth != nil && ds != nil {
					if !depthPasses(ds.DepthCompare, z, st.depth.load(x, y)[0]) {
						continue
					}
				}

				p0, p1, p2 := b0*t.invW[0], b1*t.invW[1], b2*t.invW[2]
				sum := p0 + p1 + p2
				p0, p1, p2 = p0/sum, p1/sum, p2/sum
				for k := range varyings {
					varyings[k] = p0*t.varyings[0][k] + p1*t.varyings[1][k] + p2*t.varyings[2][k]
				}

				clear(out)
				if pipeline.fragment(bindings, FragmentInput{
					Position:    [4]float32{px, py, z, sum},
					Varyings:    varyings,
					FrontFacing: t.front,
				}, out) {
					continue
				}

				if st.depth != nil && ds != nil && ds.DepthWriteEnabled {
					st.depth.store(x, y, [4]float32{z, 0, 0, 0})
				}
				for i, target := range st.colors {
					mask := pipeline.desc.Targets[i].WriteMask
					if mask == 0 {
						continue
					}
					v := out[i]
					if mask != wgpu.ColorWriteMaskAll {
						prev := target.load(x, y)
						if mask&wgpu.ColorWriteMaskRed == 0 {
							v[0] = prev[0]
						}
						if mask&wgpu.ColorWriteMaskGreen == 0 {
							v[1] = prev[1]
						}
						if mask&wgpu.ColorWriteMaskBlue == 0 {
							v[2] = prev[2]
						}
						if mask&wgpu.ColorWriteMaskAlpha == 0 {
							v[3] = prev[3]
						}
					}
					target.store(x, y, v)
				}
			}
		}
	}
}
