package backend

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

type swBuffer struct {
	owner *softwareBackendImpl
	desc  BufferDescriptor
	data  []byte
}

func (b *swBuffer) Label() string           { return b.desc.Label }
func (b *swBuffer) Size() uint64            { return b.desc.Size }
func (b *swBuffer) Usage() wgpu.BufferUsage { return b.desc.Usage }

// Release is a no-op beyond bookkeeping; recorded commands keep the storage alive.
func (b *swBuffer) Release() {}

// swTexture stores every format as four float32 channels per texel, already quantized to
// the precision of the format. Depth lives in channel 0.
type swTexture struct {
	owner    *softwareBackendImpl
	desc     TextureDescriptor
	pix      []float32
	released bool
}

func newSWTexture(owner *softwareBackendImpl, desc TextureDescriptor) *swTexture {
	return &swTexture{
		owner: owner,
		desc:  desc,
		pix:   make([]float32, int(desc.Width)*int(desc.Height)*4),
	}
}

func (t *swTexture) Label() string              { return t.desc.Label }
func (t *swTexture) Width() uint32              { return t.desc.Width }
func (t *swTexture) Height() uint32             { return t.desc.Height }
func (t *swTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *swTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }

func (t *swTexture) CreateView() (TextureView, error) {
	if t.released {
		return nil, fmt.Errorf("texture %q is released", t.desc.Label)
	}
	return &swTextureView{texture: t}, nil
}

func (t *swTexture) Release() {
	t.released = true
}

func (t *swTexture) load(x, y int) [4]float32 {
	i := (y*int(t.desc.Width) + x) * 4
	return [4]float32{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

func (t *swTexture) store(x, y int, v [4]float32) {
	v = quantize(t.desc.Format, v)
	i := (y*int(t.desc.Width) + x) * 4
	t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = v[0], v[1], v[2], v[3]
}

func (t *swTexture) fill(v [4]float32) {
	v = quantize(t.desc.Format, v)
	for i := 0; i < len(t.pix); i += 4 {
		t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = v[0], v[1], v[2], v[3]
	}
}

type swTextureView struct {
	texture *swTexture
}

func (v *swTextureView) Texture() Texture           { return v.texture }
func (v *swTextureView) Width() uint32              { return v.texture.desc.Width }
func (v *swTextureView) Height() uint32             { return v.texture.desc.Height }
func (v *swTextureView) Format() wgpu.TextureFormat { return v.texture.desc.Format }
func (v *swTextureView) Release()                   {}

func (v *swTextureView) ReadTexel(x, y int) ([4]float32, error) {
	t := v.texture
	if x < 0 || y < 0 || x >= int(t.desc.Width) || y >= int(t.desc.Height) {
		return [4]float32{}, fmt.Errorf("texel (%d, %d) outside %dx%d texture %q", x, y, t.desc.Width, t.desc.Height, t.desc.Label)
	}
	return t.load(x, y), nil
}

// Image converts the view into an 8-bit image. Float channels are clamped to [0, 1].
func (v *swTextureView) Image() image.Image {
	t := v.texture
	w, h := int(t.desc.Width), int(t.desc.Height)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := t.load(x, y)
			if IsDepthFormat(t.desc.Format) {
				c = [4]float32{c[0], c[0], c[0], 1}
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(roundNearest(common.Clamp(c[0], 0, 1) * 255)),
				G: uint8(roundNearest(common.Clamp(c[1], 0, 1) * 255)),
				B: uint8(roundNearest(common.Clamp(c[2], 0, 1) * 255)),
				A: uint8(roundNearest(common.Clamp(c[3], 0, 1) * 255)),
			})
		}
	}
	return img
}

type swSampler struct {
	label string
	data  common.SamplerStagingData
}

func (s *swSampler) Label() string { return s.label }
func (s *swSampler) Release()      {}

func (s *swSampler) sample(t *swTexture, u, v float32) [4]float32 {
	w, h := int(t.desc.Width), int(t.desc.Height)
	au := common.Coalesce(s.data.AddressModeU, wgpu.AddressModeRepeat)
	av := common.Coalesce(s.data.AddressModeV, wgpu.AddressModeRepeat)
	mag := common.Coalesce(s.data.MagFilter, wgpu.FilterModeLinear)

	fx := u*float32(w) - 0.5
	fy := v*float32(h) - 0.5
	if mag == wgpu.FilterModeNearest {
		x := wrapCoord(int(math32.Floor(fx+0.5)), w, au)
		y := wrapCoord(int(math32.Floor(fy+0.5)), h, av)
		return t.load(x, y)
	}

	x0f, y0f := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := int(x0f), int(y0f)
	xa, xb := wrapCoord(x0, w, au), wrapCoord(x0+1, w, au)
	ya, yb := wrapCoord(y0, h, av), wrapCoord(y0+1, h, av)
	top := lerp4(t.load(xa, ya), t.load(xb, ya), tx)
	bottom := lerp4(t.load(xa, yb), t.load(xb, yb), tx)
	return lerp4(top, bottom, ty)
}

type swBindGroupLayout struct {
	label   string
	entries []wgpu.BindGroupLayoutEntry
}

func (l *swBindGroupLayout) Label() string                        { return l.label }
func (l *swBindGroupLayout) Entries() []wgpu.BindGroupLayoutEntry { return l.entries }
func (l *swBindGroupLayout) Release()                             {}

type swBindGroup struct {
	label   string
	layout  *swBindGroupLayout
	entries map[uint32]BindGroupEntry
}

func (g *swBindGroup) Label() string           { return g.label }
func (g *swBindGroup) Layout() BindGroupLayout { return g.layout }
func (g *swBindGroup) Release()                {}

type swRenderPipeline struct {
	desc     RenderPipelineDescriptor
	vertex   VertexProgram
	fragment FragmentProgram
}

func (p *swRenderPipeline) Label() string                       { return p.desc.Label }
func (p *swRenderPipeline) BindGroupLayouts() []BindGroupLayout { return p.desc.BindGroupLayouts }
func (p *swRenderPipeline) Release()                            {}

type swComputePipeline struct {
	desc    ComputePipelineDescriptor
	program ComputeProgram
}

func (p *swComputePipeline) Label() string                       { return p.desc.Label }
func (p *swComputePipeline) BindGroupLayouts() []BindGroupLayout { return p.desc.BindGroupLayouts }
func (p *swComputePipeline) Release()                            {}

// entriesEqual reports whether two bind group layouts describe the same slots.
func entriesEqual(a, b []wgpu.BindGroupLayoutEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Binding != y.Binding || x.Visibility != y.Visibility ||
			x.Buffer.Type != y.Buffer.Type || x.Buffer.MinBindingSize != y.Buffer.MinBindingSize ||
			x.Texture.SampleType != y.Texture.SampleType || x.Texture.ViewDimension != y.Texture.ViewDimension ||
			x.Sampler.Type != y.Sampler.Type {
			return false
		}
	}
	return true
}

func layoutMatches(group BindGroup, layout BindGroupLayout) bool {
	if group == nil || layout == nil {
		return false
	}
	gl := group.Layout()
	if gl == layout {
		return true
	}
	return gl.Label() == layout.Label() && entriesEqual(gl.Entries(), layout.Entries())
}
