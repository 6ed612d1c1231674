package pipeline

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
)

// ComputeRecorder records compute dispatches into a command sequence owned by someone else.
// Collaborators that need compute work receive one instead of an encoder.
type ComputeRecorder interface {
	// Dispatch records one compute pass running p over the given workgroup counts.
	//
	// Parameters:
	//   - label: a debug label for the pass
	//   - p: a built compute pipeline
	//   - sets: the binding sets in bind group order
	//   - workgroups: the workgroup counts in x, y and z
	//
	// Returns:
	//   - error: an error if a set does not match the pipeline layout or the pass cannot be recorded
	Dispatch(label string, p Pipeline, sets []*binding.Set, workgroups [3]uint32) error
}

// GeometryVisitor receives the draw stream of the geometry pass. Calls arrive in node,
// material, primitive order: a primitive is drawn with the most recent node and material
// sets.
type GeometryVisitor interface {
	// VisitNode binds a node's model set at group 1.
	//
	// Parameters:
	//   - set: a set built against contract.Model
	//
	// Returns:
	//   - error: an error if the set does not match the pipeline's group 1 layout
	VisitNode(set *binding.Set) error

	// VisitMaterial binds a material set at group 2.
	//
	// Parameters:
	//   - set: a set built against contract.Material
	//
	// Returns:
	//   - error: an error if the set does not match the pipeline's group 2 layout
	VisitMaterial(set *binding.Set) error

	// VisitPrimitive draws one indexed triangle list.
	//
	// Parameters:
	//   - vertex: the vertex buffer bound at slot 0
	//   - index: the uint32 index buffer
	//   - indexCount: the number of indices to draw
	//
	// Returns:
	//   - error: an error if no node or material set has been visited yet
	VisitPrimitive(vertex, index backend.Buffer, indexCount uint32) error
}
