package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

type swCmdKind int

const (
	cmdSetRenderPipeline swCmdKind = iota
	cmdSetComputePipeline
	cmdSetBindGroup
	cmdSetVertexBuffer
	cmdSetIndexBuffer
	cmdDraw
	cmdDrawIndexed
	cmdDispatch
)

type swCmd struct {
	kind            swCmdKind
	renderPipeline  *swRenderPipeline
	computePipeline *swComputePipeline
	index           uint32
	group           *swBindGroup
	buffer          *swBuffer
	indexFormat     wgpu.IndexFormat
	count           uint32
	instances       uint32
	first           uint32
	baseVertex      int32
	firstInstance   uint32
	workgroups      [3]uint32
}

type swPass struct {
	label   string
	compute bool
	colors  []ColorAttachment
	depth   *DepthAttachment
	cmds    []swCmd
}

type swCommandBuffer struct {
	owner    *softwareBackendImpl
	passes   []swPass
	consumed bool
}

func (c *swCommandBuffer) Release() {
	c.passes = nil
}

type swCommandEncoder struct {
	owner    *softwareBackendImpl
	label    string
	passes   []swPass
	open     bool
	finished bool
}

func (e *swCommandEncoder) check() error {
	if e.finished {
		return ErrEncoderFinished
	}
	if e.open {
		return ErrPassNotEnded
	}
	return nil
}

func (e *swCommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthStencilAttachment == nil {
		return nil, fmt.Errorf("%w: pass %q has no attachments", ErrInvalidPass, desc.Label)
	}

	var w, h uint32
	sized := func(v TextureView) error {
		sv, ok := v.(*swTextureView)
		if !ok || sv.texture.owner != e.owner {
			return ErrForeignResource
		}
		if sv.texture.desc.Usage&wgpu.TextureUsageRenderAttachment == 0 {
			return fmt.Errorf("%w: pass %q: %q lacks render attachment usage", ErrInvalidPass, desc.Label, sv.texture.desc.Label)
		}
		if w == 0 {
			w, h = sv.Width(), sv.Height()
			return nil
		}
		if sv.Width() != w || sv.Height() != h {
			return fmt.Errorf("%w: pass %q: attachment %q is %dx%d, expected %dx%d", ErrInvalidPass, desc.Label, sv.texture.desc.Label, sv.Width(), sv.Height(), w, h)
		}
		return nil
	}
	for _, a := range desc.ColorAttachments {
		if err := sized(a.View); err != nil {
			return nil, err
		}
		if IsDepthFormat(a.View.Format()) {
			return nil, fmt.Errorf("%w: pass %q: depth format used as color attachment", ErrInvalidPass, desc.Label)
		}
	}
	var depth *DepthAttachment
	if d := desc.DepthStencilAttachment; d != nil {
		if err := sized(d.View); err != nil {
			return nil, err
		}
		if !IsDepthFormat(d.View.Format()) {
			return nil, fmt.Errorf("%w: pass %q: depth attachment has color format", ErrInvalidPass, desc.Label)
		}
		copied := *d
		depth = &copied
	}

	colors := make([]ColorAttachment, len(desc.ColorAttachments))
	copy(colors, desc.ColorAttachments)
	e.open = true
	return &swRenderPass{owner: e, pass: swPass{label: desc.Label, colors: colors, depth: depth}}, nil
}

func (e *swCommandEncoder) BeginComputePass(label string) (ComputePassEncoder, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.open = true
	return &swComputePass{owner: e, pass: swPass{label: label, compute: true}}, nil
}

func (e *swCommandEncoder) Finish() (CommandBuffer, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.finished = true
	return &swCommandBuffer{owner: e.owner, passes: e.passes}, nil
}

func (e *swCommandEncoder) Release() {
	e.passes = nil
	e.finished = true
}

type swRenderPass struct {
	owner *swCommandEncoder
	pass  swPass
	err   error
}

func (p *swRenderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *swRenderPass) SetPipeline(rp RenderPipeline) {
	sp, ok := rp.(*swRenderPipeline)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetRenderPipeline, renderPipeline: sp})
}

func (p *swRenderPass) SetBindGroup(index uint32, group BindGroup) {
	sg, ok := group.(*swBindGroup)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetBindGroup, index: index, group: sg})
}

func (p *swRenderPass) SetVertexBuffer(slot uint32, buf Buffer) {
	sb, ok := buf.(*swBuffer)
	if !ok || sb.owner != p.owner.owner {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetVertexBuffer, index: slot, buffer: sb})
}

func (p *swRenderPass) SetIndexBuffer(buf Buffer, format wgpu.IndexFormat) {
	sb, ok := buf.(*swBuffer)
	if !ok || sb.owner != p.owner.owner {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetIndexBuffer, buffer: sb, indexFormat: format})
}

func (p *swRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.cmds = append(p.pass.cmds, swCmd{
		kind:          cmdDraw,
		count:         vertexCount,
		instances:     instanceCount,
		first:         firstVertex,
		firstInstance: firstInstance,
	})
}

func (p *swRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.cmds = append(p.pass.cmds, swCmd{
		kind:          cmdDrawIndexed,
		count:         indexCount,
		instances:     instanceCount,
		first:         firstIndex,
		baseVertex:    baseVertex,
		firstInstance: firstInstance,
	})
}

// End validates the recorded commands the way WebGPU validates a render pass, then commits
// the pass to the encoder. An invalid pass is dropped.
func (p *swRenderPass) End() error {
	if !p.owner.open || p.owner.finished {
		return ErrInvalidPass
	}
	p.owner.open = false
	if p.err != nil {
		return p.err
	}
	if err := p.validate(); err != nil {
		return err
	}
	p.owner.passes = append(p.owner.passes, p.pass)
	return nil
}

func (p *swRenderPass) validate() error {
	var pipeline *swRenderPipeline
	var groups []*swBindGroup
	vertexBuffers := map[uint32]*swBuffer{}
	var indexBuffer *swBuffer
	indexFormat := wgpu.IndexFormatUint32

	for i, c := range p.pass.cmds {
		switch c.kind {
		case cmdSetRenderPipeline:
			if err := p.checkTargets(c.renderPipeline); err != nil {
				return err
			}
			pipeline = c.renderPipeline
		case cmdSetBindGroup:
			groups = setGroup(groups, c.index, c.group)
		case cmdSetVertexBuffer:
			vertexBuffers[c.index] = c.buffer
		case cmdSetIndexBuffer:
			indexBuffer = c.buffer
			indexFormat = c.indexFormat
		case cmdDraw, cmdDrawIndexed:
			if pipeline == nil {
				return fmt.Errorf("%w: pass %q command %d: draw without pipeline", ErrInvalidPass, p.pass.label, i)
			}
			for g, layout := range pipeline.desc.BindGroupLayouts {
				if g >= len(groups) || groups[g] == nil {
					return fmt.Errorf("%w: pass %q command %d: bind group %d not set", ErrInvalidPass, p.pass.label, i, g)
				}
				if !layoutMatches(groups[g], layout) {
					return fmt.Errorf("%w: pass %q command %d: bind group %d (%q) does not match pipeline layout %q",
						ErrInvalidPass, p.pass.label, i, g, groups[g].layout.label, layout.Label())
				}
			}
			for slot := range pipeline.desc.VertexBuffers {
				if vertexBuffers[uint32(slot)] == nil {
					return fmt.Errorf("%w: pass %q command %d: vertex buffer %d not set", ErrInvalidPass, p.pass.label, i, slot)
				}
			}
			if c.kind == cmdDrawIndexed {
				if indexBuffer == nil {
					return fmt.Errorf("%w: pass %q command %d: index buffer not set", ErrInvalidPass, p.pass.label, i)
				}
				stride := uint64(4)
				if indexFormat == wgpu.IndexFormatUint16 {
					stride = 2
				}
				if uint64(c.first+c.count)*stride > indexBuffer.desc.Size {
					return fmt.Errorf("%w: pass %q command %d: index range exceeds buffer %q", ErrInvalidPass, p.pass.label, i, indexBuffer.desc.Label)
				}
			}
		}
	}
	return nil
}

func (p *swRenderPass) checkTargets(pipeline *swRenderPipeline) error {
	desc := pipeline.desc
	if len(desc.Targets) != len(p.pass.colors) {
		return fmt.Errorf("%w: pass %q: pipeline %q has %d color targets, pass has %d",
			ErrInvalidPass, p.pass.label, desc.Label, len(desc.Targets), len(p.pass.colors))
	}
	for i, t := range desc.Targets {
		if f := p.pass.colors[i].View.Format(); f != t.Format {
			return fmt.Errorf("%w: pass %q: target %d format %v does not match pipeline %q format %v",
				ErrInvalidPass, p.pass.label, i, f, desc.Label, t.Format)
		}
	}
	switch {
	case desc.DepthStencil == nil && p.pass.depth != nil:
		return fmt.Errorf("%w: pass %q: pipeline %q has no depth state but pass has a depth attachment", ErrInvalidPass, p.pass.label, desc.Label)
	case desc.DepthStencil != nil && p.pass.depth == nil:
		return fmt.Errorf("%w: pass %q: pipeline %q expects a depth attachment", ErrInvalidPass, p.pass.label, desc.Label)
	case desc.DepthStencil != nil && desc.DepthStencil.Format != p.pass.depth.View.Format():
		return fmt.Errorf("%w: pass %q: depth format mismatch with pipeline %q", ErrInvalidPass, p.pass.label, desc.Label)
	}
	return nil
}

type swComputePass struct {
	owner *swCommandEncoder
	pass  swPass
	err   error
}

func (p *swComputePass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *swComputePass) SetPipeline(cp ComputePipeline) {
	sp, ok := cp.(*swComputePipeline)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetComputePipeline, computePipeline: sp})
}

func (p *swComputePass) SetBindGroup(index uint32, group BindGroup) {
	sg, ok := group.(*swBindGroup)
	if !ok {
		p.fail(ErrForeignResource)
		return
	}
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdSetBindGroup, index: index, group: sg})
}

func (p *swComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.cmds = append(p.pass.cmds, swCmd{kind: cmdDispatch, workgroups: [3]uint32{x, y, z}})
}

func (p *swComputePass) End() error {
	if !p.owner.open || p.owner.finished {
		return ErrInvalidPass
	}
	p.owner.open = false
	if p.err != nil {
		return p.err
	}

	var pipeline *swComputePipeline
	var groups []*swBindGroup
	for i, c := range p.pass.cmds {
		switch c.kind {
		case cmdSetComputePipeline:
			pipeline = c.computePipeline
		case cmdSetBindGroup:
			groups = setGroup(groups, c.index, c.group)
		case cmdDispatch:
			if pipeline == nil {
				return fmt.Errorf("%w: pass %q command %d: dispatch without pipeline", ErrInvalidPass, p.pass.label, i)
			}
			for g, layout := range pipeline.desc.BindGroupLayouts {
				if g >= len(groups) || groups[g] == nil || !layoutMatches(groups[g], layout) {
					return fmt.Errorf("%w: pass %q command %d: bind group %d does not match pipeline layout %q",
						ErrInvalidPass, p.pass.label, i, g, layout.Label())
				}
			}
		}
	}
	p.owner.passes = append(p.owner.passes, p.pass)
	return nil
}
