package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	label  string
	size   uint64
	usage  wgpu.BufferUsage
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string           { return b.label }
func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type wgpuTexture struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
}

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Width() uint32              { return t.desc.Width }
func (t *wgpuTexture) Height() uint32             { return t.desc.Height }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }

func (t *wgpuTexture) CreateView() (TextureView, error) {
	if t.texture == nil {
		return nil, fmt.Errorf("texture %q is released", t.desc.Label)
	}
	view, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuTextureView{texture: t, view: view}, nil
}

func (t *wgpuTexture) Release() {
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuTextureView struct {
	texture *wgpuTexture
	view    *wgpu.TextureView
}

func (v *wgpuTextureView) Texture() Texture           { return v.texture }
func (v *wgpuTextureView) Width() uint32              { return v.texture.desc.Width }
func (v *wgpuTextureView) Height() uint32             { return v.texture.desc.Height }
func (v *wgpuTextureView) Format() wgpu.TextureFormat { return v.texture.desc.Format }
func (v *wgpuTextureView) Release() {
	if v.view != nil {
		v.view.Release()
		v.view = nil
	}
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuBindGroupLayout struct {
	label   string
	entries []wgpu.BindGroupLayoutEntry
	layout  *wgpu.BindGroupLayout
}

func (l *wgpuBindGroupLayout) Label() string                        { return l.label }
func (l *wgpuBindGroupLayout) Entries() []wgpu.BindGroupLayoutEntry { return l.entries }
func (l *wgpuBindGroupLayout) Release() {
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

type wgpuBindGroup struct {
	label  string
	layout *wgpuBindGroupLayout
	group  *wgpu.BindGroup
}

func (g *wgpuBindGroup) Label() string           { return g.label }
func (g *wgpuBindGroup) Layout() BindGroupLayout { return g.layout }
func (g *wgpuBindGroup) Release() {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
}

type wgpuRenderPipeline struct {
	label    string
	layouts  []BindGroupLayout
	pipeline *wgpu.RenderPipeline
}

func (p *wgpuRenderPipeline) Label() string                       { return p.label }
func (p *wgpuRenderPipeline) BindGroupLayouts() []BindGroupLayout { return p.layouts }
func (p *wgpuRenderPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

type wgpuComputePipeline struct {
	label    string
	layouts  []BindGroupLayout
	pipeline *wgpu.ComputePipeline
}

func (p *wgpuComputePipeline) Label() string                       { return p.label }
func (p *wgpuComputePipeline) BindGroupLayouts() []BindGroupLayout { return p.layouts }
func (p *wgpuComputePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

type wgpuCommandBuffer struct {
	buffer *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() {
	if c.buffer != nil {
		c.buffer.Release()
		c.buffer = nil
	}
}

// wgpuCommandEncoder tracks the open pass so misuse surfaces as an error instead of a
// wgpu-native validation panic.
type wgpuCommandEncoder struct {
	encoder  *wgpu.CommandEncoder
	open     bool
	finished bool
}

func (e *wgpuCommandEncoder) check() error {
	if e.finished || e.encoder == nil {
		return ErrEncoderFinished
	}
	if e.open {
		return ErrPassNotEnded
	}
	return nil
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	colors := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		view, ok := a.View.(*wgpuTextureView)
		if !ok {
			return nil, ErrForeignResource
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:       view.view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
	}

	rp := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if d := desc.DepthStencilAttachment; d != nil {
		view, ok := d.View.(*wgpuTextureView)
		if !ok {
			return nil, ErrForeignResource
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view.view,
			DepthLoadOp:     d.DepthLoadOp,
			DepthStoreOp:    d.DepthStoreOp,
			DepthClearValue: d.DepthClearValue,
		}
	}

	e.open = true
	return &wgpuRenderPass{owner: e, pass: e.encoder.BeginRenderPass(rp)}, nil
}

func (e *wgpuCommandEncoder) BeginComputePass(label string) (ComputePassEncoder, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.open = true
	return &wgpuComputePass{owner: e, pass: e.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}, nil
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	e.finished = true
	return &wgpuCommandBuffer{buffer: cb}, nil
}

func (e *wgpuCommandEncoder) Release() {
	if e.encoder != nil {
		e.encoder.Release()
		e.encoder = nil
	}
	e.finished = true
}

type wgpuRenderPass struct {
	owner       *wgpuCommandEncoder
	pass        *wgpu.RenderPassEncoder
	hasPipeline bool
	err         error
}

func (p *wgpuRenderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *wgpuRenderPass) SetPipeline(rp RenderPipeline) {
	wp, ok := rp.(*wgpuRenderPipeline)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetPipeline(wp.pipeline)
	p.hasPipeline = true
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	wg, ok := group.(*wgpuBindGroup)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetBindGroup(index, wg.group, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetVertexBuffer(slot, wb.buffer, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetIndexBuffer(wb.buffer, format, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !p.hasPipeline {
		p.fail(fmt.Errorf("%w: draw without pipeline", ErrInvalidPass))
		return
	}
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if !p.hasPipeline {
		p.fail(fmt.Errorf("%w: draw without pipeline", ErrInvalidPass))
		return
	}
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	if !p.owner.open {
		return ErrInvalidPass
	}
	p.pass.End()
	p.pass.Release()
	p.owner.open = false
	return p.err
}

type wgpuComputePass struct {
	owner       *wgpuCommandEncoder
	pass        *wgpu.ComputePassEncoder
	hasPipeline bool
	err         error
}

func (p *wgpuComputePass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *wgpuComputePass) SetPipeline(cp ComputePipeline) {
	wp, ok := cp.(*wgpuComputePipeline)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetPipeline(wp.pipeline)
	p.hasPipeline = true
}

func (p *wgpuComputePass) SetBindGroup(index uint32, group BindGroup) {
	wg, ok := group.(*wgpuBindGroup)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.SetBindGroup(index, wg.group, nil)
}

func (p *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	if !p.hasPipeline {
		p.fail(fmt.Errorf("%w: dispatch without pipeline", ErrInvalidPass))
		return
	}
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	if !p.owner.open {
		return ErrInvalidPass
	}
	p.pass.End()
	p.pass.Release()
	p.owner.open = false
	return p.err
}
