package shader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrLayoutDisagreement is returned when a shader's declarations do not match the binding
// layouts of the pipeline it is built into.
var ErrLayoutDisagreement = errors.New("shader: declarations disagree with binding layout")

// CheckLayouts verifies that every resource the shaders declare exists in layouts with the
// same kind, a visibility covering the declaring stage, a compatible sample type and a
// minimum size no smaller than the declared type. @oxy:layout annotations must name the
// layout at their group. Slots no shader declares are allowed.
//
// Parameters:
//   - layouts: the pipeline's layouts in bind group order
//   - shaders: the pipeline's shader stages
//
// Returns:
//   - error: ErrLayoutDisagreement describing every disagreement found, or nil
func CheckLayouts(layouts []*binding.Layout, shaders ...Shader) error {
	var errs []error
	for _, s := range shaders {
		for _, a := range s.Layouts() {
			if a.Group >= len(layouts) {
				errs = append(errs, fmt.Errorf("%s line %d: layout %s at group %d, pipeline has %d groups", s.Key(), a.Line, a.LayoutKey(), a.Group, len(layouts)))
				continue
			}
			if got := layouts[a.Group].Key(); got != a.LayoutKey() {
				errs = append(errs, fmt.Errorf("%s line %d: group %d written against %s, pipeline binds %s", s.Key(), a.Line, a.Group, a.LayoutKey(), got))
			}
		}
		for _, b := range s.Bindings() {
			if err := checkBinding(layouts, b); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLayoutDisagreement, errors.Join(errs...))
}

func checkBinding(layouts []*binding.Layout, b Binding) error {
	if int(b.Group) >= len(layouts) {
		return fmt.Errorf("%s: pipeline has %d groups", b, len(layouts))
	}
	l := layouts[b.Group]
	slot, ok := l.SlotByIndex(b.Index)
	if !ok {
		return fmt.Errorf("%s: layout %s has no slot %d", b, l.Key(), b.Index)
	}
	if slot.Kind != b.Kind {
		return fmt.Errorf("%s: declared %v, layout %s slot is %v", b, b.Kind, l.Key(), slot.Kind)
	}
	if slot.Visibility&b.Stage == 0 {
		return fmt.Errorf("%s: layout %s slot is not visible to the declaring stage", b, l.Key())
	}
	if b.Kind == binding.KindSampledTexture && !sampleTypeCompatible(b.SampleType, slot.ResolvedSampleType()) {
		return fmt.Errorf("%s: layout %s slot samples as %v", b, l.Key(), slot.ResolvedSampleType())
	}
	if b.MinSize > 0 && slot.MinBindingSize > 0 && slot.MinBindingSize < b.MinSize {
		return fmt.Errorf("%s: needs %d bytes, layout %s guarantees %d", b, b.MinSize, l.Key(), slot.MinBindingSize)
	}
	return nil
}

// sampleTypeCompatible reports whether a texture_2d<T> declaration can read a slot of the
// given sample type. f32 textures read both float and unfilterable float.
func sampleTypeCompatible(declared, slot wgpu.TextureSampleType) bool {
	if declared == wgpu.TextureSampleTypeFloat {
		return slot == wgpu.TextureSampleTypeFloat || slot == wgpu.TextureSampleTypeUnfilterableFloat
	}
	return declared == slot
}
