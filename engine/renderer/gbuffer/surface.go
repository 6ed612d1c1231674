// Package gbuffer owns the geometry pass render targets: position, normal and albedo color
// targets plus a depth target, always allocated together at one resolution.
package gbuffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Role identifies a target within a set.
type Role int

const (
	RolePosition Role = iota
	RoleNormal
	RoleAlbedo
	RoleDepth
)

func (r Role) String() string {
	switch r {
	case RolePosition:
		return "position"
	case RoleNormal:
		return "normal"
	case RoleAlbedo:
		return "albedo"
	case RoleDepth:
		return "depth"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Target is one texture with its single view. The view is used both as a pass attachment
// and as a shader binding.
type Target struct {
	role    Role
	texture backend.Texture
	view    backend.TextureView
}

func (t *Target) Role() Role                 { return t.role }
func (t *Target) Texture() backend.Texture   { return t.texture }
func (t *Target) View() backend.TextureView  { return t.view }
func (t *Target) Width() uint32              { return t.texture.Width() }
func (t *Target) Height() uint32             { return t.texture.Height() }
func (t *Target) Format() wgpu.TextureFormat { return t.texture.Format() }

func (t *Target) release() {
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

// TargetSet is a complete, equally sized group of targets. A set never changes after it is
// built; resizing builds a new one.
type TargetSet struct {
	width, height uint32
	generation    uint64
	targets       [4]*Target
}

func (s *TargetSet) Width() uint32         { return s.width }
func (s *TargetSet) Height() uint32        { return s.height }
func (s *TargetSet) Position() *Target     { return s.targets[RolePosition] }
func (s *TargetSet) Normal() *Target       { return s.targets[RoleNormal] }
func (s *TargetSet) Albedo() *Target       { return s.targets[RoleAlbedo] }
func (s *TargetSet) Depth() *Target        { return s.targets[RoleDepth] }
func (s *TargetSet) Target(r Role) *Target { return s.targets[r] }

// Generation is zero until the set is swapped in, then one greater than the set it replaced.
func (s *TargetSet) Generation() uint64 {
	return s.generation
}

// ColorViews returns the position, normal and albedo views in attachment order.
func (s *TargetSet) ColorViews() []backend.TextureView {
	return []backend.TextureView{
		s.targets[RolePosition].view,
		s.targets[RoleNormal].view,
		s.targets[RoleAlbedo].view,
	}
}

// Release releases every target in the set.
func (s *TargetSet) Release() {
	for _, t := range s.targets {
		if t != nil {
			t.release()
		}
	}
}

// Surface allocates target sets and holds the current one. Readers call Current at any time;
// Swap publishes a new set atomically.
type Surface struct {
	dev     backend.Backend
	formats Formats

	mu         sync.Mutex
	current    atomic.Pointer[TargetSet]
	generation uint64
}

// NewSurface validates the configured formats and allocates the first target set.
//
// Parameters:
//   - dev: the backend the targets are created on
//   - width: the initial width in pixels
//   - height: the initial height in pixels
//   - options: SurfaceOption functions overriding the default formats
//
// Returns:
//   - *Surface: the surface holding a current set
//   - error: ErrUnsupportedFormat, ErrInvalidSize or a backend allocation error
func NewSurface(dev backend.Backend, width, height uint32, options ...SurfaceOption) (*Surface, error) {
	s := &Surface{
		dev:     dev,
		formats: DefaultFormats(),
	}
	for _, option := range options {
		option(s)
	}
	if err := s.formats.Validate(); err != nil {
		return nil, err
	}

	set, err := s.Build(width, height)
	if err != nil {
		return nil, err
	}
	s.Swap(set)
	return s, nil
}

// Formats returns the formats every set of this surface uses.
func (s *Surface) Formats() Formats {
	return s.formats
}

// Current returns the published target set.
func (s *Surface) Current() *TargetSet {
	return s.current.Load()
}

// Build allocates a complete new target set without touching the current one. On failure
// every target allocated so far is released.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - *TargetSet: the new, unpublished set
//   - error: ErrInvalidSize or the backend allocation error
func (s *Surface) Build(width, height uint32) (*TargetSet, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	set := &TargetSet{width: width, height: height}
	formats := [4]wgpu.TextureFormat{s.formats.Position, s.formats.Normal, s.formats.Albedo, s.formats.Depth}
	for i, format := range formats {
		role := Role(i)
		usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
		if role == RoleDepth {
			usage = wgpu.TextureUsageRenderAttachment
		}

		tex, err := s.dev.CreateTexture(&backend.TextureDescriptor{
			Label:  "gbuffer-" + role.String(),
			Width:  width,
			Height: height,
			Format: format,
			Usage:  usage,
		})
		if err != nil {
			set.Release()
			return nil, fmt.Errorf("failed to create %s target %dx%d: %w", role, width, height, err)
		}
		view, err := tex.CreateView()
		if err != nil {
			tex.Release()
			set.Release()
			return nil, fmt.Errorf("failed to create %s target view: %w", role, err)
		}
		set.targets[i] = &Target{role: role, texture: tex, view: view}
	}
	return set, nil
}

// Swap publishes next as the current set and returns the set it replaced. The caller owns
// the returned set and releases it once nothing references it. A nil next is ignored.
//
// Parameters:
//   - next: a set returned by Build
//
// Returns:
//   - *TargetSet: the previous set, or nil
func (s *Surface) Swap(next *TargetSet) *TargetSet {
	if next == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	next.generation = s.generation
	return s.current.Swap(next)
}

// Resize builds a set at the new size and swaps it in, releasing the old one. On failure
// the current set is unchanged.
//
// Parameters:
//   - width: the new width in pixels
//   - height: the new height in pixels
//
// Returns:
//   - error: ErrInvalidSize or the backend allocation error
func (s *Surface) Resize(width, height uint32) error {
	next, err := s.Build(width, height)
	if err != nil {
		return err
	}
	if prev := s.Swap(next); prev != nil {
		prev.Release()
	}
	return nil
}

// Release releases the current set.
func (s *Surface) Release() {
	if prev := s.current.Swap(nil); prev != nil {
		prev.Release()
	}
}
