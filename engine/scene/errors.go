package scene

import "errors"

var (
	// ErrInvalidModel is returned when a node is added with a nil model or a primitive
	// without a mesh or material.
	ErrInvalidModel = errors.New("scene: invalid model")

	// ErrNotFlushed is returned by Iterate when a node or material has no binding set yet.
	ErrNotFlushed = errors.New("scene: bindings not flushed")
)
