package model

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithPrimitive is an option builder that appends a mesh drawn with a material.
//
// Parameters:
//   - mesh: the uploaded mesh
//   - mat: the material the mesh is drawn with
//
// Returns:
//   - ModelBuilderOption: a function that appends the primitive to a model
func WithPrimitive(mesh Mesh, mat material.Material) ModelBuilderOption {
	return func(m *model) {
		m.primitives = append(m.primitives, Primitive{Mesh: mesh, Material: mat})
	}
}

// WithPrimitives is an option builder that appends several primitives at once.
//
// Parameters:
//   - primitives: the primitives in draw order
//
// Returns:
//   - ModelBuilderOption: a function that appends the primitives to a model
func WithPrimitives(primitives ...Primitive) ModelBuilderOption {
	return func(m *model) {
		m.primitives = append(m.primitives, primitives...)
	}
}
