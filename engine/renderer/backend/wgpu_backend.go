package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	surfaceFormat        wgpu.TextureFormat
	width, height        int

	// Output acquired for the current frame, held until Present.
	frameSurface *wgpu.Texture
	frameView    *wgpuTextureView
}

var _ Backend = &wgpuBackendImpl{}

// NewWGPUBackend creates a WebGPU device rendering into the surface described by surfaceDescriptor.
// ConfigureOutput must be called before the first AcquireOutput.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically from the window
//   - options: WGPUBackendOption functions applied before the device is requested
//
// Returns:
//   - Backend: the backend
//   - error: an error if no adapter or device could be obtained
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...WGPUBackendOption) (Backend, error) {
	runtime.LockOSThread()
	b := &wgpuBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	for _, opt := range options {
		opt(b)
	}

	if surfaceDescriptor != nil {
		b.surface = b.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if b.surface != nil {
		capabilities := b.surface.GetCapabilities(b.adapter)
		if len(capabilities.Formats) == 0 {
			b.Release()
			return nil, errors.New("surface reports no supported formats")
		}
		b.surfaceFormat = capabilities.Formats[0]
	} else {
		b.surfaceFormat = wgpu.TextureFormatRGBA8Unorm
	}

	return b, nil
}

func (b *wgpuBackendImpl) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackendImpl) CreateBuffer(desc *BufferDescriptor) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: desc.Label, size: desc.Size, usage: desc.Usage, buffer: buf}, nil
}

func (b *wgpuBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return ErrForeignResource
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("write of %d bytes at offset %d overflows buffer %q of size %d", len(data), offset, wb.label, wb.size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.WriteBuffer(wb.buffer, offset, data)
}

func (b *wgpuBackendImpl) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{desc: *desc, texture: tex}, nil
}

func (b *wgpuBackendImpl) WriteTexture(tex Texture, data common.TextureStagingData) error {
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return ErrForeignResource
	}
	if data.Width != wt.desc.Width || data.Height != wt.desc.Height || uint32(len(data.Pixels)) != data.Width*data.Height*4 {
		return fmt.Errorf("staging data %dx%d does not match texture %q %dx%d", data.Width, data.Height, wt.desc.Label, wt.desc.Width, wt.desc.Height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{label: label, sampler: samp}, nil
}

func (b *wgpuBackendImpl) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	copy(entries, desc.Entries)
	return &wgpuBindGroupLayout{label: desc.Label, entries: entries, layout: layout}, nil
}

func (b *wgpuBackendImpl) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, ErrForeignResource
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, ErrForeignResource
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: e.Binding,
				Buffer:  buf.buffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		case e.View != nil:
			view, ok := e.View.(*wgpuTextureView)
			if !ok {
				return nil, ErrForeignResource
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     e.Binding,
				TextureView: view.view,
			}
		case e.Sampler != nil:
			samp, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, ErrForeignResource
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: e.Binding,
				Sampler: samp.sampler,
			}
		default:
			return nil, fmt.Errorf("bind group %q entry %d binds no resource", desc.Label, e.Binding)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, layout: layout, group: group}, nil
}

func (b *wgpuBackendImpl) pipelineLayout(label string, layouts []BindGroupLayout) (*wgpu.PipelineLayout, error) {
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, ErrForeignResource
		}
		bindGroupLayouts[i] = wl.layout
	}
	return b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bindGroupLayouts,
	})
}

func (b *wgpuBackendImpl) shaderModule(stage ShaderStage) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.Key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: stage.Source,
		},
	})
}

func (b *wgpuBackendImpl) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	if desc.Vertex.Source == "" || desc.Fragment.Source == "" {
		return nil, errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.shaderModule(desc.Vertex)
	if err != nil {
		return nil, err
	}
	defer vs.Release()
	fs, err := b.shaderModule(desc.Fragment)
	if err != nil {
		return nil, err
	}
	defer fs.Release()

	layout, err := b.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout for %q: %w", desc.Label, err)
	}
	defer layout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Targets,
		},
		Primitive: desc.Primitive,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: desc.DepthStencil,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{label: desc.Label, layouts: desc.BindGroupLayouts, pipeline: created}, nil
}

func (b *wgpuBackendImpl) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	if desc.Compute.Source == "" {
		return nil, errors.New("compute shader must be set to create a compute pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.shaderModule(desc.Compute)
	if err != nil {
		return nil, err
	}
	defer s.Release()

	layout, err := b.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout for %q: %w", desc.Label, err)
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuComputePipeline{label: desc.Label, layouts: desc.BindGroupLayouts, pipeline: created}, nil
}

func (b *wgpuBackendImpl) CreateCommandEncoder(label string) (CommandEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{encoder: encoder}, nil
}

func (b *wgpuBackendImpl) Submit(buffers ...CommandBuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cb := range buffers {
		wcb, ok := cb.(*wgpuCommandBuffer)
		if !ok || wcb.buffer == nil {
			continue
		}
		b.queue.Submit(wcb.buffer)
		wcb.Release()
	}
}

func (b *wgpuBackendImpl) ConfigureOutput(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", width, height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.width, b.height = width, height
	if b.surface == nil {
		return nil
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (b *wgpuBackendImpl) OutputFormat() wgpu.TextureFormat {
	return b.surfaceFormat
}

func (b *wgpuBackendImpl) OutputSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *wgpuBackendImpl) AcquireOutput() (TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return nil, errors.New("backend has no output surface")
	}
	// A held surface texture means the previous frame was never presented; acquiring again
	// would fail inside wgpu-native.
	if b.frameSurface != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	b.frameSurface = surfaceTexture
	b.frameView = &wgpuTextureView{
		texture: &wgpuTexture{
			desc: TextureDescriptor{
				Label:  "Surface Texture",
				Width:  uint32(b.width),
				Height: uint32(b.height),
				Format: b.surfaceFormat,
				Usage:  wgpu.TextureUsageRenderAttachment,
			},
			texture: surfaceTexture,
		},
		view: view,
	}
	return b.frameView, nil
}

func (b *wgpuBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView = nil
	b.frameSurface = nil
}

func (b *wgpuBackendImpl) DiscardOutput() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView = nil
	b.frameSurface = nil
}

func (b *wgpuBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.presentMode = toWGPUPresentMode(mode)
}

func (b *wgpuBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
