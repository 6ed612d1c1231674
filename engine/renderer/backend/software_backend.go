package backend

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// SoftwareBackend is a CPU implementation of Backend. Shader stages run as CPU programs
// registered through ProgramRegistry, and recorded command buffers execute synchronously
// inside Submit, so every submitted frame is complete when Submit returns.
//
// Blend state is ignored; fragments overwrite their targets subject to the write mask.
type SoftwareBackend interface {
	Backend
	ProgramRegistry

	// LastSubmission returns a record of every pass executed by the most recent Submit, in
	// execution order.
	//
	// Returns:
	//   - []PassRecord: the executed passes
	LastSubmission() []PassRecord

	// ReadBuffer returns a copy of a buffer's contents.
	//
	// Parameters:
	//   - buf: a buffer created by this backend
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: ErrForeignResource if buf belongs to another backend
	ReadBuffer(buf Buffer) ([]byte, error)

	// Presented returns the output view shown by the most recent Present, or nil.
	//
	// Returns:
	//   - TextureView: the presented view, which also implements Readback
	Presented() TextureView

	// PresentCount returns the number of frames presented so far.
	//
	// Returns:
	//   - uint64: the present count
	PresentCount() uint64
}

// PassRecord summarizes one executed pass.
type PassRecord struct {
	Label        string
	Compute      bool
	Draws        int
	IndexedDraws int
	Dispatches   int
}

type softwareBackendImpl struct {
	mu  *sync.Mutex
	log *log.Logger

	vertexPrograms   map[string]VertexProgram
	fragmentPrograms map[string]FragmentProgram
	computePrograms  map[string]ComputeProgram

	workers    int
	bandHeight int
	pool       worker.DynamicWorkerPool

	outputFormat wgpu.TextureFormat
	presentMode  PresentMode
	output       *swTexture
	acquired     *swTextureView
	presented    *swTextureView
	presentCount uint64

	last []PassRecord
}

var _ SoftwareBackend = &softwareBackendImpl{}

// NewSoftwareBackend creates a CPU backend.
//
// Parameters:
//   - options: SoftwareBackendOption functions to configure the backend
//
// Returns:
//   - SoftwareBackend: the backend
func NewSoftwareBackend(options ...SoftwareBackendOption) SoftwareBackend {
	b := &softwareBackendImpl{
		mu:               &sync.Mutex{},
		log:              logger.Component("software-backend"),
		vertexPrograms:   make(map[string]VertexProgram),
		fragmentPrograms: make(map[string]FragmentProgram),
		computePrograms:  make(map[string]ComputeProgram),
		workers:          runtime.NumCPU(),
		bandHeight:       32,
		outputFormat:     wgpu.TextureFormatRGBA8Unorm,
	}
	for _, option := range options {
		option(b)
	}

	// Row bands are shaded on a reusable pool; a WaitGroup per draw is the barrier.
	b.pool = worker.NewDynamicWorkerPool(max(b.workers, 1), 256, 1*time.Second)
	return b
}

func (b *softwareBackendImpl) Type() BackendType {
	return BackendTypeSoftware
}

func (b *softwareBackendImpl) RegisterVertexProgram(key string, p VertexProgram) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vertexPrograms[key] = p
}

func (b *softwareBackendImpl) RegisterFragmentProgram(key string, p FragmentProgram) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragmentPrograms[key] = p
}

func (b *softwareBackendImpl) RegisterComputeProgram(key string, p ComputeProgram) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.computePrograms[key] = p
}

func (b *softwareBackendImpl) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", desc.Label)
	}
	d := *desc
	if d.Label == "" {
		d.Label = "buffer-" + uuid.NewString()
	}
	return &swBuffer{owner: b, desc: d, data: make([]byte, d.Size)}, nil
}

func (b *softwareBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	sb, ok := buf.(*swBuffer)
	if !ok || sb.owner != b {
		return ErrForeignResource
	}
	if offset+uint64(len(data)) > sb.desc.Size {
		return fmt.Errorf("write of %d bytes at offset %d overflows buffer %q of size %d", len(data), offset, sb.desc.Label, sb.desc.Size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	copy(sb.data[offset:], data)
	return nil
}

func (b *softwareBackendImpl) ReadBuffer(buf Buffer) ([]byte, error) {
	sb, ok := buf.(*swBuffer)
	if !ok || sb.owner != b {
		return nil, ErrForeignResource
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(sb.data))
	copy(out, sb.data)
	return out, nil
}

func (b *softwareBackendImpl) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if !softwareFormatSupported(desc.Format) {
		return nil, fmt.Errorf("texture %q: format %v is not supported by the software backend", desc.Label, desc.Format)
	}
	return newSWTexture(b, *desc), nil
}

func (b *softwareBackendImpl) WriteTexture(tex Texture, data common.TextureStagingData) error {
	st, ok := tex.(*swTexture)
	if !ok || st.owner != b {
		return ErrForeignResource
	}
	if data.Width != st.desc.Width || data.Height != st.desc.Height || uint32(len(data.Pixels)) != data.Width*data.Height*4 {
		return fmt.Errorf("staging data %dx%d does not match texture %q %dx%d", data.Width, data.Height, st.desc.Label, st.desc.Width, st.desc.Height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for y := range int(data.Height) {
		for x := range int(data.Width) {
			i := (y*int(data.Width) + x) * 4
			st.store(x, y, [4]float32{
				float32(data.Pixels[i]) / 255,
				float32(data.Pixels[i+1]) / 255,
				float32(data.Pixels[i+2]) / 255,
				float32(data.Pixels[i+3]) / 255,
			})
		}
	}
	return nil
}

func (b *softwareBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	return &swSampler{label: label, data: data}, nil
}

func (b *softwareBackendImpl) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("bind group layout %q declares binding %d twice", desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	copy(entries, desc.Entries)
	return &swBindGroupLayout{label: desc.Label, entries: entries}, nil
}

func (b *softwareBackendImpl) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*swBindGroupLayout)
	if !ok {
		return nil, ErrForeignResource
	}
	if len(desc.Entries) != len(layout.entries) {
		return nil, fmt.Errorf("bind group %q has %d entries, layout %q expects %d", desc.Label, len(desc.Entries), layout.label, len(layout.entries))
	}

	entries := make(map[uint32]BindGroupEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		entries[e.Binding] = e
	}
	for _, le := range layout.entries {
		e, ok := entries[le.Binding]
		if !ok {
			return nil, fmt.Errorf("bind group %q is missing binding %d", desc.Label, le.Binding)
		}
		switch {
		case le.Buffer.Type != wgpu.BufferBindingTypeUndefined:
			sb, ok := e.Buffer.(*swBuffer)
			if !ok || sb.owner != b {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, le.Binding, ErrForeignResource)
			}
			if sb.desc.Size < le.Buffer.MinBindingSize {
				return nil, fmt.Errorf("bind group %q binding %d: buffer %q smaller than %d bytes", desc.Label, le.Binding, sb.desc.Label, le.Buffer.MinBindingSize)
			}
		case le.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			sv, ok := e.View.(*swTextureView)
			if !ok || sv.texture.owner != b {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, le.Binding, ErrForeignResource)
			}
		case le.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			if _, ok := e.Sampler.(*swSampler); !ok {
				return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, le.Binding, ErrForeignResource)
			}
		}
	}
	return &swBindGroup{label: desc.Label, layout: layout, entries: entries}, nil
}

func (b *softwareBackendImpl) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	if desc.Primitive.Topology != wgpu.PrimitiveTopologyTriangleList {
		return nil, fmt.Errorf("pipeline %q: only triangle lists are supported by the software backend", desc.Label)
	}
	for _, t := range desc.Targets {
		if !softwareFormatSupported(t.Format) {
			return nil, fmt.Errorf("pipeline %q: target format %v is not supported", desc.Label, t.Format)
		}
	}
	for _, l := range desc.BindGroupLayouts {
		if _, ok := l.(*swBindGroupLayout); !ok {
			return nil, ErrForeignResource
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, ok := b.vertexPrograms[desc.Vertex.Key]
	if !ok {
		return nil, fmt.Errorf("%w: vertex %q", ErrUnknownProgram, desc.Vertex.Key)
	}
	fs, ok := b.fragmentPrograms[desc.Fragment.Key]
	if !ok {
		return nil, fmt.Errorf("%w: fragment %q", ErrUnknownProgram, desc.Fragment.Key)
	}
	return &swRenderPipeline{desc: *desc, vertex: vs, fragment: fs}, nil
}

func (b *softwareBackendImpl) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	for _, l := range desc.BindGroupLayouts {
		if _, ok := l.(*swBindGroupLayout); !ok {
			return nil, ErrForeignResource
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.computePrograms[desc.Compute.Key]
	if !ok {
		return nil, fmt.Errorf("%w: compute %q", ErrUnknownProgram, desc.Compute.Key)
	}
	return &swComputePipeline{desc: *desc, program: cs}, nil
}

func (b *softwareBackendImpl) CreateCommandEncoder(label string) (CommandEncoder, error) {
	return &swCommandEncoder{owner: b, label: label}, nil
}

func (b *softwareBackendImpl) Submit(buffers ...CommandBuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = b.last[:0]
	for _, cb := range buffers {
		scb, ok := cb.(*swCommandBuffer)
		if !ok || scb.owner != b || scb.consumed {
			b.log.Warn("skipping command buffer", "reason", "foreign or already submitted")
			continue
		}
		scb.consumed = true
		for i := range scb.passes {
			p := &scb.passes[i]
			if p.compute {
				b.last = append(b.last, b.executeComputePass(p))
			} else {
				b.last = append(b.last, b.executeRenderPass(p))
			}
		}
	}
}

func (b *softwareBackendImpl) executeComputePass(p *swPass) PassRecord {
	rec := PassRecord{Label: p.label, Compute: true}
	var pipeline *swComputePipeline
	var groups []*swBindGroup
	for _, c := range p.cmds {
		switch c.kind {
		case cmdSetComputePipeline:
			pipeline = c.computePipeline
		case cmdSetBindGroup:
			groups = setGroup(groups, c.index, c.group)
		case cmdDispatch:
			rec.Dispatches++
			if err := pipeline.program(&Bindings{groups: groups}, c.workgroups); err != nil {
				b.log.Error("compute program failed", "pass", p.label, "pipeline", pipeline.desc.Label, "err", err)
			}
		}
	}
	return rec
}

func setGroup(groups []*swBindGroup, index uint32, g *swBindGroup) []*swBindGroup {
	for uint32(len(groups)) <= index {
		groups = append(groups, nil)
	}
	groups[index] = g
	return groups
}

func (b *softwareBackendImpl) ConfigureOutput(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", width, height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = newSWTexture(b, TextureDescriptor{
		Label:  "Software Output",
		Width:  uint32(width),
		Height: uint32(height),
		Format: b.outputFormat,
		Usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	return nil
}

func (b *softwareBackendImpl) OutputFormat() wgpu.TextureFormat {
	return b.outputFormat
}

func (b *softwareBackendImpl) OutputSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.output == nil {
		return 0, 0
	}
	return int(b.output.desc.Width), int(b.output.desc.Height)
}

func (b *softwareBackendImpl) AcquireOutput() (TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.output == nil {
		return nil, fmt.Errorf("output not configured")
	}
	if b.acquired != nil {
		return nil, fmt.Errorf("previous frame output not yet presented")
	}
	b.acquired = &swTextureView{texture: b.output}
	return b.acquired, nil
}

func (b *softwareBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.acquired == nil {
		return
	}
	b.presented = b.acquired
	b.acquired = nil
	b.presentCount++

	// The next frame renders into fresh storage so the presented image stays readable.
	b.output = newSWTexture(b, b.output.desc)
}

func (b *softwareBackendImpl) DiscardOutput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquired = nil
}

func (b *softwareBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *softwareBackendImpl) LastSubmission() []PassRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PassRecord, len(b.last))
	copy(out, b.last)
	return out
}

func (b *softwareBackendImpl) Presented() TextureView {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presented == nil {
		return nil
	}
	return b.presented
}

func (b *softwareBackendImpl) PresentCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presentCount
}

func (b *softwareBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = nil
	b.acquired = nil
}
