package renderer

import "errors"

var (
	// ErrFrameInProgress is returned when Draw, Resize or ReloadShaders is called while a
	// frame is being recorded.
	ErrFrameInProgress = errors.New("renderer: frame in progress")

	// ErrBindingMismatch is returned when a binding set is used with a pipeline whose
	// layout for that group differs from the set's layout.
	ErrBindingMismatch = errors.New("renderer: binding set does not match pipeline layout")

	// ErrVisitOrder is returned when the scene traversal visits a primitive before a node
	// and a material, or a material before a node.
	ErrVisitOrder = errors.New("renderer: scene visit out of order")

	// ErrMissingCollaborator is returned by New when the camera, clusterer or scene
	// traversal is missing or not ready.
	ErrMissingCollaborator = errors.New("renderer: missing collaborator")

	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("renderer: released")
)
