package material

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	id        uuid.UUID
	name      string
	baseColor [4]float32
	albedo    common.TextureStagingData
	sampler   common.SamplerStagingData
	dirty     bool

	device      backend.Backend
	uniform     backend.Buffer
	texture     backend.Texture
	textureView backend.TextureView
	gpuSampler  backend.Sampler
	set         *binding.Set
}

// Material holds the surface properties the geometry pass writes into the albedo target
// and owns the contract.Material binding set that exposes them to the fragment stage.
//
// GPU resources are created by the first Flush. Later flushes only rewrite the uniform
// when the base color changed.
type Material interface {
	// ID returns the unique material identifier.
	//
	// Returns:
	//   - uuid.UUID: the material ID
	ID() uuid.UUID

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the RGBA color the albedo texture is multiplied by.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// SetBaseColor replaces the base color. It is uploaded on the next Flush.
	//
	// Parameters:
	//   - color: the base color as RGBA values
	SetBaseColor(color [4]float32)

	// Flush creates the GPU resources on first use and uploads a changed base color.
	//
	// Parameters:
	//   - dev: the backend owning the resources
	//
	// Returns:
	//   - error: an error if a resource cannot be created or written
	Flush(dev backend.Backend) error

	// Bindings returns the material binding set, nil before the first Flush.
	//
	// Returns:
	//   - *binding.Set: the set built against contract.Material
	Bindings() *binding.Set

	// Release destroys the GPU resources. A later Flush recreates them.
	Release()
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options. The
// default is a white base color over a 1x1 white texture with linear filtering.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		mu:        &sync.Mutex{},
		id:        uuid.New(),
		baseColor: [4]float32{1, 1, 1, 1},
		albedo:    common.SolidTexture(255, 255, 255, 255),
		sampler: common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeRepeat,
			AddressModeV: wgpu.AddressModeRepeat,
			AddressModeW: wgpu.AddressModeRepeat,
			MagFilter:    wgpu.FilterModeLinear,
			MinFilter:    wgpu.FilterModeLinear,
			MipmapFilter: wgpu.MipmapFilterModeLinear,
			LodMaxClamp:  32,
		},
		dirty: true,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.name == "" {
		m.name = "material-" + m.id.String()
	}
	return m
}

func (m *material) ID() uuid.UUID {
	return m.id
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [4]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseColor
}

func (m *material) SetBaseColor(color [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseColor = color
	m.dirty = true
}

func (m *material) Flush(dev backend.Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.set != nil && m.device != dev {
		m.release()
	}
	if m.set == nil {
		if err := m.create(dev); err != nil {
			m.release()
			return fmt.Errorf("material %s: %w", m.name, err)
		}
		m.dirty = true
	}
	if m.dirty {
		u := GPUMaterialUniform{BaseColor: m.baseColor}
		if err := dev.WriteBuffer(m.uniform, 0, u.Marshal()); err != nil {
			return fmt.Errorf("material %s: failed to write uniform: %w", m.name, err)
		}
		m.dirty = false
	}
	return nil
}

// create allocates the uniform, texture, view, sampler and set. Caller must hold the mutex.
func (m *material) create(dev backend.Backend) error {
	var err error
	m.device = dev
	m.uniform, err = dev.CreateBuffer(&backend.BufferDescriptor{
		Label: m.name + " Uniform Buffer",
		Size:  contract.MaterialUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create uniform buffer: %w", err)
	}
	m.texture, err = dev.CreateTexture(&backend.TextureDescriptor{
		Label:  m.name + " Albedo Texture",
		Width:  m.albedo.Width,
		Height: m.albedo.Height,
		Format: wgpu.TextureFormatRGBA8Unorm,
		Usage:  wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create albedo texture: %w", err)
	}
	if err := dev.WriteTexture(m.texture, m.albedo); err != nil {
		return fmt.Errorf("failed to write albedo texture: %w", err)
	}
	m.textureView, err = m.texture.CreateView()
	if err != nil {
		return fmt.Errorf("failed to create albedo view: %w", err)
	}
	m.gpuSampler, err = dev.CreateSampler(m.name+" Sampler", m.sampler)
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	m.set, err = binding.NewSet(m.name+" Bind Group", contract.Material,
		binding.UniformBuffer(m.uniform),
		binding.Texture(m.textureView),
		binding.SamplerResource(m.gpuSampler),
	)
	return err
}

func (m *material) Bindings() *binding.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set
}

func (m *material) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// release destroys every GPU resource. Caller must hold the mutex.
func (m *material) release() {
	if m.set != nil {
		m.set.Release()
		m.set = nil
	}
	if m.gpuSampler != nil {
		m.gpuSampler.Release()
		m.gpuSampler = nil
	}
	if m.textureView != nil {
		m.textureView.Release()
		m.textureView = nil
	}
	if m.texture != nil {
		m.texture.Release()
		m.texture = nil
	}
	if m.uniform != nil {
		m.uniform.Release()
		m.uniform = nil
	}
	m.device = nil
}
