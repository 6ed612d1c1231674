// Package binding defines named, versioned binding layouts and the binding sets built
// against them. Producers and consumers of a slot contract build their sets against the
// same *Layout, so a layout change fails every call site at construction instead of
// misbinding at draw time.
package binding

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kind is the resource kind a slot accepts.
type Kind int

const (
	KindUniformBuffer Kind = iota
	KindReadOnlyStorageBuffer
	KindStorageBuffer
	KindSampledTexture
	KindSampler
)

func (k Kind) String() string {
	switch k {
	case KindUniformBuffer:
		return "uniform-buffer"
	case KindReadOnlyStorageBuffer:
		return "read-only-storage-buffer"
	case KindStorageBuffer:
		return "storage-buffer"
	case KindSampledTexture:
		return "sampled-texture"
	case KindSampler:
		return "sampler"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) isBuffer() bool {
	return k == KindUniformBuffer || k == KindReadOnlyStorageBuffer || k == KindStorageBuffer
}

// Slot is one binding of a Layout.
type Slot struct {
	Index      uint32
	Visibility wgpu.ShaderStage
	Kind       Kind

	// SampleType applies to KindSampledTexture. The zero value means float.
	SampleType wgpu.TextureSampleType

	// MinBindingSize applies to buffer kinds. Zero disables the check.
	MinBindingSize uint64
}

// ResolvedSampleType returns the sample type sampled textures must produce; zero means float.
func (s Slot) ResolvedSampleType() wgpu.TextureSampleType {
	if s.SampleType == wgpu.TextureSampleTypeUndefined {
		return wgpu.TextureSampleTypeFloat
	}
	return s.SampleType
}

func (s Slot) entry() wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{
		Binding:    s.Index,
		Visibility: s.Visibility,
	}
	switch s.Kind {
	case KindUniformBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: s.MinBindingSize}
	case KindReadOnlyStorageBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage, MinBindingSize: s.MinBindingSize}
	case KindStorageBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage, MinBindingSize: s.MinBindingSize}
	case KindSampledTexture:
		e.Texture = wgpu.TextureBindingLayout{
			SampleType:    s.ResolvedSampleType(),
			ViewDimension: wgpu.TextureViewDimension2D,
			Multisampled:  false,
		}
	case KindSampler:
		e.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	}
	return e
}

// Layout is an immutable, named and versioned list of slots.
type Layout struct {
	name    string
	version int
	slots   []Slot

	mu       sync.Mutex
	realized map[backend.Backend]backend.BindGroupLayout
}

// NewLayout validates and creates a layout. Slots must be listed in strictly ascending index
// order.
//
// Parameters:
//   - name: the schema name shared by producers and consumers
//   - version: the schema version, starting at 1
//   - slots: the ordered slots
//
// Returns:
//   - *Layout: the layout
//   - error: ErrInvalidLayout if the definition is malformed
func NewLayout(name string, version int, slots ...Slot) (*Layout, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidLayout)
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: %s version %d", ErrInvalidLayout, name, version)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: %s has no slots", ErrInvalidLayout, name)
	}
	for i, s := range slots {
		if i > 0 && s.Index <= slots[i-1].Index {
			return nil, fmt.Errorf("%w: %s slot %d index %d is not ascending", ErrInvalidLayout, name, i, s.Index)
		}
		if s.Kind < KindUniformBuffer || s.Kind > KindSampler {
			return nil, fmt.Errorf("%w: %s slot %d has unknown kind %v", ErrInvalidLayout, name, s.Index, s.Kind)
		}
		if s.Visibility == wgpu.ShaderStageNone {
			return nil, fmt.Errorf("%w: %s slot %d is visible to no stage", ErrInvalidLayout, name, s.Index)
		}
	}
	copied := make([]Slot, len(slots))
	copy(copied, slots)
	return &Layout{
		name:     name,
		version:  version,
		slots:    copied,
		realized: make(map[backend.Backend]backend.BindGroupLayout),
	}, nil
}

// MustLayout is NewLayout for package-level layout definitions; it panics on error.
func MustLayout(name string, version int, slots ...Slot) *Layout {
	l, err := NewLayout(name, version, slots...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Name() string { return l.name }
func (l *Layout) Version() int { return l.version }
func (l *Layout) Len() int     { return len(l.slots) }

// Key identifies the layout as name@vN.
func (l *Layout) Key() string {
	return fmt.Sprintf("%s@v%d", l.name, l.version)
}

// Slots returns a copy of the ordered slots.
func (l *Layout) Slots() []Slot {
	out := make([]Slot, len(l.slots))
	copy(out, l.slots)
	return out
}

// Slot returns the slot at position i.
func (l *Layout) Slot(i int) Slot {
	return l.slots[i]
}

// SlotByIndex returns the slot declared with binding index, if any.
func (l *Layout) SlotByIndex(index uint32) (Slot, bool) {
	for _, s := range l.slots {
		if s.Index == index {
			return s, true
		}
	}
	return Slot{}, false
}

// Descriptor converts the layout to a WebGPU bind group layout descriptor.
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the descriptor, labeled with Key
func (l *Layout) Descriptor() wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(l.slots))
	for i, s := range l.slots {
		entries[i] = s.entry()
	}
	return wgpu.BindGroupLayoutDescriptor{
		Label:   l.Key(),
		Entries: entries,
	}
}

// Compatible reports whether other describes the same schema: same name, same version and
// identical slots.
//
// Parameters:
//   - other: the layout to compare against
//
// Returns:
//   - bool: true if sets built against either layout may be used with the other
func (l *Layout) Compatible(other *Layout) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil || l.name != other.name || l.version != other.version || len(l.slots) != len(other.slots) {
		return false
	}
	for i := range l.slots {
		if l.slots[i] != other.slots[i] {
			return false
		}
	}
	return true
}

// Check reports how a set built against got relates to the expected layout l.
//
// Parameters:
//   - got: the layout a set was built against
//
// Returns:
//   - error: nil if compatible, ErrLayoutVersion for another version of the same schema,
//     otherwise ErrLayoutMismatch
func (l *Layout) Check(got *Layout) error {
	if l.Compatible(got) {
		return nil
	}
	if got != nil && got.name == l.name && got.version != l.version {
		return fmt.Errorf("%w: %s expected v%d, got v%d", ErrLayoutVersion, l.name, l.version, got.version)
	}
	gotKey := "<nil>"
	if got != nil {
		gotKey = got.Key()
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrLayoutMismatch, l.Key(), gotKey)
}

// Realize returns the device layout for dev, creating it on first use.
//
// Parameters:
//   - dev: the backend
//
// Returns:
//   - backend.BindGroupLayout: the device layout
//   - error: an error if the backend rejects the layout
func (l *Layout) Realize(dev backend.Backend) (backend.BindGroupLayout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bgl, ok := l.realized[dev]; ok {
		return bgl, nil
	}
	desc := l.Descriptor()
	bgl, err := dev.CreateBindGroupLayout(&desc)
	if err != nil {
		return nil, fmt.Errorf("failed to realize layout %s: %w", l.Key(), err)
	}
	l.realized[dev] = bgl
	return bgl, nil
}

// Forget releases the device layout created for dev, if any.
func (l *Layout) Forget(dev backend.Backend) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bgl, ok := l.realized[dev]; ok {
		bgl.Release()
		delete(l.realized, dev)
	}
}

// SampleTypeFor returns the sample type a texture format produces when bound for sampling.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - wgpu.TextureSampleType: depth for depth formats, unfilterable float for 32-bit float
//     formats, float otherwise
func SampleTypeFor(format wgpu.TextureFormat) wgpu.TextureSampleType {
	switch {
	case backend.IsDepthFormat(format):
		return wgpu.TextureSampleTypeDepth
	case format == wgpu.TextureFormatRGBA32Float || format == wgpu.TextureFormatRG32Float || format == wgpu.TextureFormatR32Float:
		return wgpu.TextureSampleTypeUnfilterableFloat
	default:
		return wgpu.TextureSampleTypeFloat
	}
}
