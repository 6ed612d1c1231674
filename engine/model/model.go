package model

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// Primitive pairs one mesh with the material it is drawn with.
type Primitive struct {
	Mesh     Mesh
	Material material.Material
}

// model is the implementation of the Model interface.
type model struct {
	name       string
	primitives []Primitive
}

// Model is a named group of primitives drawn with a shared model transform. A node of the
// scene references a Model and supplies that transform.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Primitives returns the mesh and material pairs of the model in draw order.
	//
	// Returns:
	//   - []Primitive: the primitives
	Primitives() []Primitive

	// Materials returns the distinct materials of the model in first-use order.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// Bounds returns the model-space bounding box over every primitive.
	//
	// Returns:
	//   - [3]float32: the minimum corner
	//   - [3]float32: the maximum corner
	Bounds() ([3]float32, [3]float32)

	// Release destroys the meshes and materials of every primitive.
	Release()
}

var _ Model = &model{}

// NewModel creates a new Model instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of ModelBuilderOption functions to configure the model
//
// Returns:
//   - Model: a new Model instance
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{name: "model"}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string            { return m.name }
func (m *model) Primitives() []Primitive { return m.primitives }

func (m *model) Materials() []material.Material {
	var out []material.Material
	seen := make(map[material.Material]struct{}, len(m.primitives))
	for _, p := range m.primitives {
		if p.Material == nil {
			continue
		}
		if _, ok := seen[p.Material]; ok {
			continue
		}
		seen[p.Material] = struct{}{}
		out = append(out, p.Material)
	}
	return out
}

func (m *model) Bounds() ([3]float32, [3]float32) {
	var bmin, bmax [3]float32
	first := true
	for _, p := range m.primitives {
		if p.Mesh == nil {
			continue
		}
		lo, hi := p.Mesh.Bounds()
		if first {
			bmin, bmax, first = lo, hi, false
			continue
		}
		for k := range 3 {
			bmin[k] = min(bmin[k], lo[k])
			bmax[k] = max(bmax[k], hi[k])
		}
	}
	return bmin, bmax
}

func (m *model) Release() {
	for _, mat := range m.Materials() {
		mat.Release()
	}
	for _, p := range m.primitives {
		if p.Mesh != nil {
			p.Mesh.Release()
		}
	}
}
