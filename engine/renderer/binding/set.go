package binding

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Resource is one concrete resource bound to a slot.
type Resource struct {
	kind    Kind
	buffer  backend.Buffer
	view    backend.TextureView
	sampler backend.Sampler
}

// UniformBuffer binds buf as a uniform buffer.
func UniformBuffer(buf backend.Buffer) Resource {
	return Resource{kind: KindUniformBuffer, buffer: buf}
}

// ReadOnlyStorage binds buf as a read-only storage buffer.
func ReadOnlyStorage(buf backend.Buffer) Resource {
	return Resource{kind: KindReadOnlyStorageBuffer, buffer: buf}
}

// Storage binds buf as a read-write storage buffer.
func Storage(buf backend.Buffer) Resource {
	return Resource{kind: KindStorageBuffer, buffer: buf}
}

// Texture binds view as a sampled texture.
func Texture(view backend.TextureView) Resource {
	return Resource{kind: KindSampledTexture, view: view}
}

// SamplerResource binds s as a sampler.
func SamplerResource(s backend.Sampler) Resource {
	return Resource{kind: KindSampler, sampler: s}
}

func (r Resource) Kind() Kind                { return r.kind }
func (r Resource) Buffer() backend.Buffer    { return r.buffer }
func (r Resource) View() backend.TextureView { return r.view }
func (r Resource) Sampler() backend.Sampler  { return r.sampler }

func (r Resource) isNil() bool {
	switch r.kind {
	case KindSampledTexture:
		return r.view == nil
	case KindSampler:
		return r.sampler == nil
	default:
		return r.buffer == nil
	}
}

// validate checks r against slot s.
func (r Resource) validate(s Slot) error {
	if r.kind != s.Kind {
		return fmt.Errorf("%w: slot %d expects %v, got %v", ErrSlotKind, s.Index, s.Kind, r.kind)
	}
	if r.isNil() {
		return fmt.Errorf("%w: slot %d", ErrNilResource, s.Index)
	}

	switch r.kind {
	case KindUniformBuffer:
		if r.buffer.Usage()&wgpu.BufferUsageUniform == 0 {
			return fmt.Errorf("%w: slot %d buffer %q lacks uniform usage", ErrResourceUsage, s.Index, r.buffer.Label())
		}
	case KindReadOnlyStorageBuffer, KindStorageBuffer:
		if r.buffer.Usage()&wgpu.BufferUsageStorage == 0 {
			return fmt.Errorf("%w: slot %d buffer %q lacks storage usage", ErrResourceUsage, s.Index, r.buffer.Label())
		}
	case KindSampledTexture:
		if r.view.Texture().Usage()&wgpu.TextureUsageTextureBinding == 0 {
			return fmt.Errorf("%w: slot %d texture %q lacks texture binding usage", ErrResourceUsage, s.Index, r.view.Texture().Label())
		}
		if got := SampleTypeFor(r.view.Format()); got != s.ResolvedSampleType() {
			return fmt.Errorf("%w: slot %d expects sample type %v, format %v gives %v", ErrSampleType, s.Index, s.ResolvedSampleType(), r.view.Format(), got)
		}
	}
	if r.kind.isBuffer() && s.MinBindingSize > 0 && r.buffer.Size() < s.MinBindingSize {
		return fmt.Errorf("%w: slot %d buffer %q is %d bytes, needs %d", ErrBufferTooSmall, s.Index, r.buffer.Label(), r.buffer.Size(), s.MinBindingSize)
	}
	return nil
}

// Set binds one resource to every slot of a Layout. Sets are immutable; rebinding means
// building a new Set.
type Set struct {
	label     string
	layout    *Layout
	resources []Resource

	mu     sync.Mutex
	groups map[backend.Backend]backend.BindGroup
}

// NewSet validates resources against layout, in slot order. No set is returned on error.
//
// Parameters:
//   - label: a debug label
//   - layout: the layout the set is built against
//   - resources: one resource per slot, in slot order
//
// Returns:
//   - *Set: the set
//   - error: ErrSlotCount, ErrSlotKind, ErrNilResource, ErrResourceUsage, ErrBufferTooSmall
//     or ErrSampleType describing the first mismatch
func NewSet(label string, layout *Layout, resources ...Resource) (*Set, error) {
	if layout == nil {
		return nil, fmt.Errorf("%w: set %q has no layout", ErrNilResource, label)
	}
	if len(resources) != len(layout.slots) {
		return nil, fmt.Errorf("%w: set %q binds %d resources, layout %s has %d slots", ErrSlotCount, label, len(resources), layout.Key(), len(layout.slots))
	}
	for i, r := range resources {
		if err := r.validate(layout.slots[i]); err != nil {
			return nil, fmt.Errorf("set %q against %s: %w", label, layout.Key(), err)
		}
	}

	copied := make([]Resource, len(resources))
	copy(copied, resources)
	return &Set{
		label:     label,
		layout:    layout,
		resources: copied,
		groups:    make(map[backend.Backend]backend.BindGroup),
	}, nil
}

func (s *Set) Label() string   { return s.label }
func (s *Set) Layout() *Layout { return s.layout }
func (s *Set) Len() int        { return len(s.resources) }

// Resource returns the resource at slot position i.
func (s *Set) Resource(i int) Resource {
	return s.resources[i]
}

// Views returns the texture views bound by the set, in slot order.
func (s *Set) Views() []backend.TextureView {
	var out []backend.TextureView
	for _, r := range s.resources {
		if r.kind == KindSampledTexture {
			out = append(out, r.view)
		}
	}
	return out
}

// BindGroup returns the device bind group for dev, creating it on first use.
//
// Parameters:
//   - dev: the backend
//
// Returns:
//   - backend.BindGroup: the device bind group
//   - error: an error if the layout or group could not be created
func (s *Set) BindGroup(dev backend.Backend) (backend.BindGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[dev]; ok {
		return g, nil
	}
	bgl, err := s.layout.Realize(dev)
	if err != nil {
		return nil, err
	}

	entries := make([]backend.BindGroupEntry, len(s.resources))
	for i, r := range s.resources {
		entries[i] = backend.BindGroupEntry{
			Binding: s.layout.slots[i].Index,
			Buffer:  r.buffer,
			View:    r.view,
			Sampler: r.sampler,
		}
	}
	g, err := dev.CreateBindGroup(&backend.BindGroupDescriptor{
		Label:   s.label,
		Layout:  bgl,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", s.label, err)
	}
	s.groups[dev] = g
	return g, nil
}

// Release releases the device bind groups. The bound resources are owned by their creators
// and stay alive.
func (s *Set) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for dev, g := range s.groups {
		g.Release()
		delete(s.groups, dev)
	}
}
