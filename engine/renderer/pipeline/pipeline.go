package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

func (t PipelineType) String() string {
	switch t {
	case PipelineTypeCompute:
		return "compute"
	case PipelineTypeRender:
		return "render"
	default:
		return fmt.Sprintf("PipelineType(%d)", int(t))
	}
}

// MaxColorTargets and MaxBindGroups bound the fixed-size arrays of a Description.
const (
	MaxColorTargets = 8
	MaxBindGroups   = 4
)

var (
	// ErrMissingShader is returned by Build when a stage required by the pipeline type has no
	// shader.
	ErrMissingShader = errors.New("pipeline: missing shader stage")

	// ErrForeignDevice is returned by Build when the pipeline was already compiled for a
	// different backend.
	ErrForeignDevice = errors.New("pipeline: already built for another backend")
)

// ColorTarget is one color output of a render pipeline.
type ColorTarget struct {
	Format    wgpu.TextureFormat
	WriteMask wgpu.ColorWriteMask
	Blend     bool
}

// Description is the comparable identity of a pipeline configuration. Two pipelines
// configured the same way describe equal values; shader sources are identified by a
// name-based UUID of their processed text.
type Description struct {
	Key  string
	Type PipelineType

	Vertex         string
	VertexSource   uuid.UUID
	VertexEntry    string
	Fragment       string
	FragmentSource uuid.UUID
	FragmentEntry  string
	Compute        string
	ComputeSource  uuid.UUID
	ComputeEntry   string

	Layouts     [MaxBindGroups]string
	LayoutCount int
	Targets     [MaxColorTargets]ColorTarget
	TargetCount int

	VertexLayout        string
	DepthFormat         wgpu.TextureFormat
	DepthTest           bool
	DepthWrite          bool
	DepthBias           int32
	DepthBiasSlopeScale float32
	CullMode            wgpu.CullMode
	Topology            wgpu.PrimitiveTopology
	FrontFace           wgpu.FrontFace
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	vertexShader, fragmentShader, computeShader shader.Shader

	layouts       []*binding.Layout
	colorTargets  []wgpu.TextureFormat
	depthFormat   wgpu.TextureFormat
	vertexLayouts []wgpu.VertexBufferLayout

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState

	mu              sync.Mutex
	device          backend.Backend
	renderPipeline  backend.RenderPipeline
	computePipeline backend.ComputePipeline
}

// Pipeline is an immutable pipeline description plus the device pipeline compiled from it.
// It holds the binding layouts of every bind group, the shader stages, the fixed-function
// state and the vertex layout.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Layouts returns the binding layouts in bind group order.
	//
	// Returns:
	//   - []*binding.Layout: the layouts
	Layouts() []*binding.Layout

	// Layout returns the binding layout of one bind group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - *binding.Layout: the layout, or nil if the pipeline has no such group
	Layout(group int) *binding.Layout

	// ColorTargets returns the color target formats in attachment order.
	//
	// Returns:
	//   - []wgpu.TextureFormat: the formats
	ColorTargets() []wgpu.TextureFormat

	// DepthFormat returns the depth attachment format, or wgpu.TextureFormatUndefined for a
	// pipeline without depth.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// VertexLayouts returns the vertex buffer layouts: the configured ones, or the layouts
	// reflected from the vertex shader when none were configured.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// Describe returns the comparable description of the configuration.
	//
	// Returns:
	//   - Description: the description
	Describe() Description

	// Build checks the shaders against the binding layouts and compiles the device pipeline.
	// Only the first successful call compiles; later calls with the same backend return nil.
	//
	// Parameters:
	//   - dev: the backend to compile for
	//
	// Returns:
	//   - error: ErrMissingShader, shader.ErrLayoutDisagreement, ErrForeignDevice or a
	//     compilation error
	Build(dev backend.Backend) error

	// RenderPipeline returns the compiled render pipeline, nil before Build.
	//
	// Returns:
	//   - backend.RenderPipeline: the compiled pipeline
	RenderPipeline() backend.RenderPipeline

	// ComputePipeline returns the compiled compute pipeline, nil before Build.
	//
	// Returns:
	//   - backend.ComputePipeline: the compiled pipeline
	ComputePipeline() backend.ComputePipeline

	// Release releases the compiled pipeline. The description stays usable and Build may be
	// called again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be
// specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthFormat:       wgpu.TextureFormatUndefined,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType                 { return p.pipelineType }
func (p *pipeline) PipelineKey() string                { return p.pipelineKey }
func (p *pipeline) Layouts() []*binding.Layout         { return append([]*binding.Layout(nil), p.layouts...) }
func (p *pipeline) ColorTargets() []wgpu.TextureFormat { return append([]wgpu.TextureFormat(nil), p.colorTargets...) }
func (p *pipeline) DepthFormat() wgpu.TextureFormat    { return p.depthFormat }
func (p *pipeline) DepthTestEnabled() bool             { return p.depthTestEnabled }
func (p *pipeline) DepthWriteEnabled() bool            { return p.depthWriteEnabled }
func (p *pipeline) BlendEnabled() bool                 { return p.blendEnabled }
func (p *pipeline) CullMode() wgpu.CullMode            { return p.cullMode }
func (p *pipeline) Topology() wgpu.PrimitiveTopology   { return p.topology }
func (p *pipeline) FrontFace() wgpu.FrontFace          { return p.frontFace }

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) Layout(group int) *binding.Layout {
	if group < 0 || group >= len(p.layouts) {
		return nil
	}
	return p.layouts[group]
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	if len(p.vertexLayouts) > 0 || p.vertexShader == nil {
		return p.vertexLayouts
	}
	return p.vertexShader.VertexLayouts()
}

func (p *pipeline) Describe() Description {
	d := Description{
		Key:                 p.pipelineKey,
		Type:                p.pipelineType,
		LayoutCount:         len(p.layouts),
		TargetCount:         len(p.colorTargets),
		VertexLayout:        vertexLayoutSignature(p.VertexLayouts()),
		DepthFormat:         p.depthFormat,
		DepthTest:           p.depthTestEnabled,
		DepthWrite:          p.depthWriteEnabled,
		DepthBias:           p.depthBias,
		DepthBiasSlopeScale: p.depthBiasSlopeScale,
		CullMode:            p.cullMode,
		Topology:            p.topology,
		FrontFace:           p.frontFace,
	}
	d.Vertex, d.VertexSource, d.VertexEntry = describeStage(p.vertexShader)
	d.Fragment, d.FragmentSource, d.FragmentEntry = describeStage(p.fragmentShader)
	d.Compute, d.ComputeSource, d.ComputeEntry = describeStage(p.computeShader)
	for i, l := range p.layouts {
		if i < MaxBindGroups {
			d.Layouts[i] = l.Key()
		}
	}
	for i, f := range p.colorTargets {
		if i < MaxColorTargets {
			d.Targets[i] = ColorTarget{Format: f, WriteMask: p.writeMask, Blend: p.blendEnabled}
		}
	}
	return d
}

func describeStage(s shader.Shader) (string, uuid.UUID, string) {
	if s == nil {
		return "", uuid.Nil, ""
	}
	return s.Key(), uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Source())), s.EntryPoint()
}

func vertexLayoutSignature(layouts []wgpu.VertexBufferLayout) string {
	var sb strings.Builder
	for i, l := range layouts {
		if i > 0 {
			sb.WriteByte('|')
		}
		fmt.Fprintf(&sb, "%d/%d:", l.ArrayStride, l.StepMode)
		for _, a := range l.Attributes {
			fmt.Fprintf(&sb, "%d@%d=%d,", a.ShaderLocation, a.Offset, a.Format)
		}
	}
	return sb.String()
}

func (p *pipeline) RenderPipeline() backend.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPipeline
}

func (p *pipeline) ComputePipeline() backend.ComputePipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.computePipeline
}

func (p *pipeline) Build(dev backend.Backend) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		if p.device != dev {
			return fmt.Errorf("%w: %s", ErrForeignDevice, p.pipelineKey)
		}
		return nil
	}
	if len(p.layouts) > MaxBindGroups || len(p.colorTargets) > MaxColorTargets {
		return fmt.Errorf("pipeline %s: %d bind groups and %d color targets exceed the limits", p.pipelineKey, len(p.layouts), len(p.colorTargets))
	}

	stages := p.stages()
	if stages == nil {
		return fmt.Errorf("%w: %s %s pipeline", ErrMissingShader, p.pipelineKey, p.pipelineType)
	}
	if err := shader.CheckLayouts(p.layouts, stages...); err != nil {
		return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}

	bgls := make([]backend.BindGroupLayout, len(p.layouts))
	for i, l := range p.layouts {
		bgl, err := l.Realize(dev)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		bgls[i] = bgl
	}

	switch p.pipelineType {
	case PipelineTypeRender:
		created, err := dev.CreateRenderPipeline(p.renderDescriptor(bgls))
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		p.renderPipeline = created
	case PipelineTypeCompute:
		created, err := dev.CreateComputePipeline(&backend.ComputePipelineDescriptor{
			Label:            p.pipelineKey + " Compute Pipeline",
			BindGroupLayouts: bgls,
			Compute:          p.computeShader.Stage(),
		})
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
		}
		p.computePipeline = created
	}
	p.device = dev
	return nil
}

// stages returns the shaders the pipeline type requires, or nil if one is missing.
func (p *pipeline) stages() []shader.Shader {
	switch p.pipelineType {
	case PipelineTypeRender:
		if p.vertexShader == nil || p.fragmentShader == nil {
			return nil
		}
		return []shader.Shader{p.vertexShader, p.fragmentShader}
	case PipelineTypeCompute:
		if p.computeShader == nil {
			return nil
		}
		return []shader.Shader{p.computeShader}
	default:
		return nil
	}
}

func (p *pipeline) renderDescriptor(bgls []backend.BindGroupLayout) *backend.RenderPipelineDescriptor {
	targets := make([]wgpu.ColorTargetState, len(p.colorTargets))
	for i, f := range p.colorTargets {
		targets[i] = wgpu.ColorTargetState{Format: f, WriteMask: p.writeMask}
		if p.blendEnabled {
			targets[i].Blend = p.blendState
		}
	}

	var depth *wgpu.DepthStencilState
	if p.depthFormat != wgpu.TextureFormatUndefined {
		depthCompare := wgpu.CompareFunctionLess
		if !p.depthTestEnabled {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depth = &wgpu.DepthStencilState{
			Format:              p.depthFormat,
			DepthWriteEnabled:   p.depthWriteEnabled,
			DepthCompare:        depthCompare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	return &backend.RenderPipelineDescriptor{
		Label:            p.pipelineKey + " Render Pipeline",
		BindGroupLayouts: bgls,
		Vertex:           p.vertexShader.Stage(),
		VertexBuffers:    p.VertexLayouts(),
		Fragment:         p.fragmentShader.Stage(),
		Targets:          targets,
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		DepthStencil: depth,
	}
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	p.device = nil
}
