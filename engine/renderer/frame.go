package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// FrameState is the phase of the frame being recorded.
type FrameState int32

const (
	// StateIdle means no frame is being recorded.
	StateIdle FrameState = iota

	// StateClusterDispatch means the clustering dispatch is being recorded.
	StateClusterDispatch

	// StateGeometryPass means the geometry pass is being recorded.
	StateGeometryPass

	// StateResolvePass means the resolve pass is being recorded.
	StateResolvePass

	// StateSubmitted means the frame has been handed to the device queue.
	StateSubmitted
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClusterDispatch:
		return "cluster-dispatch"
	case StateGeometryPass:
		return "geometry-pass"
	case StateResolvePass:
		return "resolve-pass"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FrameState(%d)", int32(s))
	}
}

// checkSets verifies that sets match the layouts of p group by group.
func checkSets(label string, p pipeline.Pipeline, sets []*binding.Set) error {
	layouts := p.Layouts()
	if len(sets) != len(layouts) {
		return fmt.Errorf("%w: %s binds %d sets, pipeline %s has %d groups", ErrBindingMismatch, label, len(sets), p.PipelineKey(), len(layouts))
	}
	for i, s := range sets {
		if err := checkSet(p, i, s); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return nil
}

// checkSet verifies that set matches the layout of p at group.
func checkSet(p pipeline.Pipeline, group int, set *binding.Set) error {
	want := p.Layout(group)
	if want == nil {
		return fmt.Errorf("%w: pipeline %s has no group %d", ErrBindingMismatch, p.PipelineKey(), group)
	}
	if set == nil {
		return fmt.Errorf("%w: nil set at group %d of %s", ErrBindingMismatch, group, p.PipelineKey())
	}
	if err := want.Check(set.Layout()); err != nil {
		return fmt.Errorf("%w: set %q at group %d of %s: %w", ErrBindingMismatch, set.Label(), group, p.PipelineKey(), err)
	}
	return nil
}

// computeRecorder records each dispatch as its own compute pass on the frame encoder.
type computeRecorder struct {
	dev     backend.Backend
	encoder backend.CommandEncoder
	count   int
}

var _ ComputeRecorder = &computeRecorder{}

func (r *computeRecorder) Dispatch(label string, p pipeline.Pipeline, sets []*binding.Set, workgroups [3]uint32) error {
	if err := checkSets(label, p, sets); err != nil {
		return err
	}
	cp := p.ComputePipeline()
	if cp == nil {
		return fmt.Errorf("%s: compute pipeline %s is not built", label, p.PipelineKey())
	}
	groups := make([]backend.BindGroup, len(sets))
	for i, s := range sets {
		g, err := s.BindGroup(r.dev)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		groups[i] = g
	}

	pass, err := r.encoder.BeginComputePass(label)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	pass.SetPipeline(cp)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	if err := pass.End(); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	r.count++
	return nil
}
