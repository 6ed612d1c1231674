package backend

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the device implementation behind a Backend.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware selects the CPU backend that executes registered programs in place of shaders.
	BackendTypeSoftware
)

func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("BackendType(%d)", int(t))
	}
}

// ParseBackendType maps a configuration name to a BackendType.
//
// Parameters:
//   - name: "wgpu" or "software" (case insensitive)
//
// Returns:
//   - BackendType: the matching backend type
//   - error: an error if the name is unknown
func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wgpu", "webgpu", "":
		return BackendTypeWGPU, nil
	case "software", "cpu":
		return BackendTypeSoftware, nil
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

var (
	// ErrUnknownProgram is returned by the software backend when a shader key has no registered CPU program.
	ErrUnknownProgram = errors.New("backend: no program registered for shader key")

	// ErrPassNotEnded is returned when an encoder is finished or a new pass begun while a pass is still open.
	ErrPassNotEnded = errors.New("backend: pass not ended")

	// ErrEncoderFinished is returned when a finished encoder is used again.
	ErrEncoderFinished = errors.New("backend: encoder already finished")

	// ErrInvalidPass is returned from End when the recorded pass commands are invalid.
	ErrInvalidPass = errors.New("backend: invalid pass")

	// ErrForeignResource is returned when a handle created by a different backend is passed in.
	ErrForeignResource = errors.New("backend: resource belongs to a different backend")
)

// Buffer is a device buffer.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() wgpu.BufferUsage
	Release()
}

// Texture is a 2D device image.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Format() wgpu.TextureFormat
	Usage() wgpu.TextureUsage

	// CreateView derives a full view of the texture.
	//
	// Returns:
	//   - TextureView: the view
	//   - error: an error if the view could not be created
	CreateView() (TextureView, error)
	Release()
}

// TextureView is a view of a Texture used as an attachment or shader binding.
type TextureView interface {
	Texture() Texture
	Width() uint32
	Height() uint32
	Format() wgpu.TextureFormat
	Release()
}

// Sampler is a device sampler.
type Sampler interface {
	Label() string
	Release()
}

// BindGroupLayout is a compiled bind group layout.
type BindGroupLayout interface {
	Label() string
	Entries() []wgpu.BindGroupLayoutEntry
	Release()
}

// BindGroup is a compiled set of resources matching a BindGroupLayout.
type BindGroup interface {
	Label() string
	Layout() BindGroupLayout
	Release()
}

// RenderPipeline is a compiled render pipeline.
type RenderPipeline interface {
	Label() string
	BindGroupLayouts() []BindGroupLayout
	Release()
}

// ComputePipeline is a compiled compute pipeline.
type ComputePipeline interface {
	Label() string
	BindGroupLayouts() []BindGroupLayout
	Release()
}

// CommandBuffer is a finished command sequence ready for submission.
type CommandBuffer interface {
	Release()
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDescriptor describes a single-sampled 2D texture with one mip level.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format wgpu.TextureFormat
	Usage  wgpu.TextureUsage
}

// BindGroupEntry binds exactly one of Buffer, View or Sampler to a binding index.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	View    TextureView
	Sampler Sampler
}

// BindGroupDescriptor describes a bind group to create against a layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// ShaderStage names one programmable stage. Key identifies the program for caching and for
// the software backend's program registry.
type ShaderStage struct {
	Key        string
	Source     string
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
	Vertex           ShaderStage
	VertexBuffers    []wgpu.VertexBufferLayout
	Fragment         ShaderStage
	Targets          []wgpu.ColorTargetState
	Primitive        wgpu.PrimitiveState
	DepthStencil     *wgpu.DepthStencilState
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
	Compute          ShaderStage
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	View            TextureView
	DepthLoadOp     wgpu.LoadOp
	DepthStoreOp    wgpu.StoreOp
	DepthClearValue float32
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []ColorAttachment
	DepthStencilAttachment *DepthAttachment
}

// RenderPassEncoder records commands into an open render pass.
type RenderPassEncoder interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format wgpu.IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End closes the pass.
	//
	// Returns:
	//   - error: ErrInvalidPass if the recorded commands are not valid against the bound state
	End() error
}

// ComputePassEncoder records commands into an open compute pass.
type ComputePassEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup)
	DispatchWorkgroups(x, y, z uint32)

	// End closes the pass.
	//
	// Returns:
	//   - error: ErrInvalidPass if the recorded commands are not valid against the bound state
	End() error
}

// CommandEncoder records one command sequence.
type CommandEncoder interface {
	// BeginRenderPass opens a render pass. Only one pass may be open at a time.
	//
	// Parameters:
	//   - desc: the pass attachments
	//
	// Returns:
	//   - RenderPassEncoder: the open pass
	//   - error: an error if a pass is already open or the encoder is finished
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error)

	// BeginComputePass opens a compute pass. Only one pass may be open at a time.
	//
	// Parameters:
	//   - label: a debug label for the pass
	//
	// Returns:
	//   - ComputePassEncoder: the open pass
	//   - error: an error if a pass is already open or the encoder is finished
	BeginComputePass(label string) (ComputePassEncoder, error)

	// Finish closes the sequence.
	//
	// Returns:
	//   - CommandBuffer: the recorded sequence
	//   - error: an error if a pass is still open
	Finish() (CommandBuffer, error)

	// Release discards the encoder and anything recorded into it.
	Release()
}

// Backend is the device abstraction the renderer records against. Every handle it returns
// must only be used with the Backend that created it.
type Backend interface {
	// Type reports the backend implementation.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// CreateBuffer allocates a device buffer.
	//
	// Parameters:
	//   - desc: the buffer descriptor
	//
	// Returns:
	//   - Buffer: the buffer
	//   - error: an error if allocation fails
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// WriteBuffer queues a write of data into buf at offset. Writes are ordered before any
	// command buffer submitted afterwards.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into buf
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write is out of range
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateTexture allocates a 2D texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the texture
	//   - error: an error if allocation fails
	CreateTexture(desc *TextureDescriptor) (Texture, error)

	// WriteTexture uploads RGBA8 pixels covering the whole texture.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - data: the staged pixels
	//
	// Returns:
	//   - error: an error if the pixel data does not match the texture size
	WriteTexture(tex Texture, data common.TextureStagingData) error

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - Sampler: the sampler
	//   - error: an error if creation fails
	CreateSampler(label string, data common.SamplerStagingData) (Sampler, error)

	// CreateBindGroupLayout compiles a bind group layout.
	//
	// Parameters:
	//   - desc: the layout descriptor
	//
	// Returns:
	//   - BindGroupLayout: the layout
	//   - error: an error if creation fails
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)

	// CreateBindGroup binds resources against a layout.
	//
	// Parameters:
	//   - desc: the bind group descriptor
	//
	// Returns:
	//   - BindGroup: the bind group
	//   - error: an error if creation fails
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)

	// CreateRenderPipeline compiles a render pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - RenderPipeline: the pipeline
	//   - error: an error if compilation fails
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateComputePipeline compiles a compute pipeline.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - ComputePipeline: the pipeline
	//   - error: an error if compilation fails
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)

	// CreateCommandEncoder starts a new command sequence.
	//
	// Parameters:
	//   - label: a debug label
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: an error if creation fails
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit hands finished command buffers to the device queue. Execution happens on the
	// device timeline; the call does not wait for completion.
	//
	// Parameters:
	//   - buffers: the command buffers in submission order
	Submit(buffers ...CommandBuffer)

	// ConfigureOutput sizes the output surface. Views acquired before the call stay valid
	// until released.
	//
	// Parameters:
	//   - width: the output width in pixels
	//   - height: the output height in pixels
	//
	// Returns:
	//   - error: an error if the size is invalid
	ConfigureOutput(width, height int) error

	// OutputFormat reports the color format of the output surface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the output format
	OutputFormat() wgpu.TextureFormat

	// OutputSize reports the configured output size.
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	OutputSize() (int, int)

	// AcquireOutput returns a view of the next output image.
	//
	// Returns:
	//   - TextureView: the output view for this frame
	//   - error: an error if no image could be acquired
	AcquireOutput() (TextureView, error)

	// Present shows the last acquired output image and releases it.
	Present()

	// DiscardOutput releases the last acquired output image without showing it, so a failed
	// frame leaves the previously presented image on screen.
	DiscardOutput()

	// SetPresentMode sets how frames are delivered. ConfigureOutput must be called afterwards
	// for the mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Release destroys the device.
	Release()
}

// Readback is implemented by texture views whose contents can be read on the CPU.
type Readback interface {
	// ReadTexel returns the texel at (x, y) as normalized or float RGBA.
	//
	// Parameters:
	//   - x: the column
	//   - y: the row, 0 at the top
	//
	// Returns:
	//   - [4]float32: the texel value
	//   - error: an error if (x, y) is out of range
	ReadTexel(x, y int) ([4]float32, error)

	// Image converts the view contents into an 8-bit image.
	//
	// Returns:
	//   - image.Image: the converted image
	Image() image.Image
}
