package scene

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// materialGroup is the run of primitives drawn with one material.
type materialGroup struct {
	primitives []model.Primitive
}

type node struct {
	mu *sync.Mutex

	id        uuid.UUID
	name      string
	mdl       model.Model
	groups    []materialGroup
	transform model.Transform
	visible   bool
	dirty     bool
	staged    []byte

	device  backend.Backend
	uniform backend.Buffer
	set     *binding.Set
}

// Node is one placed instance of a model. It owns the model uniform buffer and the
// contract.Model set the geometry pass binds at group 1.
type Node interface {
	// ID returns the unique node identifier.
	//
	// Returns:
	//   - uuid.UUID: the node ID
	ID() uuid.UUID

	// Name returns the node name.
	//
	// Returns:
	//   - string: the node name
	Name() string

	// Model returns the model the node draws.
	//
	// Returns:
	//   - model.Model: the model
	Model() model.Model

	// Transform returns the node transform.
	//
	// Returns:
	//   - model.Transform: the transform
	Transform() model.Transform

	// SetTransform replaces the node transform. It is uploaded on the next Scene.Flush.
	//
	// Parameters:
	//   - t: the new transform
	SetTransform(t model.Transform)

	// SetTranslation replaces the translation of the node transform.
	//
	// Parameters:
	//   - x, y, z: the translation
	SetTranslation(x, y, z float32)

	// SetRotation replaces the Euler rotation of the node transform.
	//
	// Parameters:
	//   - x, y, z: the rotation in radians
	SetRotation(x, y, z float32)

	// SetScale replaces the scale of the node transform.
	//
	// Parameters:
	//   - x, y, z: the scale factors
	SetScale(x, y, z float32)

	// Visible reports whether Iterate visits the node.
	//
	// Returns:
	//   - bool: true if the node is drawn
	Visible() bool

	// SetVisible shows or hides the node.
	//
	// Parameters:
	//   - visible: true to draw the node
	SetVisible(visible bool)

	// Bindings returns the model set, nil before the first flush.
	//
	// Returns:
	//   - *binding.Set: the set built against contract.Model
	Bindings() *binding.Set
}

var _ Node = &node{}

func newNode(mdl model.Model, options ...NodeBuilderOption) (*node, error) {
	if mdl == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	n := &node{
		mu:        &sync.Mutex{},
		id:        uuid.New(),
		mdl:       mdl,
		transform: model.IdentityTransform(),
		visible:   true,
		dirty:     true,
	}
	for _, opt := range options {
		opt(n)
	}
	if n.name == "" {
		n.name = mdl.Name() + "-" + n.id.String()[:8]
	}

	index := make(map[material.Material]int)
	for i, p := range mdl.Primitives() {
		if p.Mesh == nil || p.Material == nil {
			return nil, fmt.Errorf("%w: %s primitive %d has no mesh or material", ErrInvalidModel, mdl.Name(), i)
		}
		g, ok := index[p.Material]
		if !ok {
			g = len(n.groups)
			index[p.Material] = g
			n.groups = append(n.groups, materialGroup{})
		}
		n.groups[g].primitives = append(n.groups[g].primitives, p)
	}
	return n, nil
}

func (n *node) ID() uuid.UUID      { return n.id }
func (n *node) Name() string       { return n.name }
func (n *node) Model() model.Model { return n.mdl }

func (n *node) Transform() model.Transform {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transform
}

func (n *node) SetTransform(t model.Transform) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform = t
	n.dirty = true
}

func (n *node) SetTranslation(x, y, z float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform.Translation = [3]float32{x, y, z}
	n.dirty = true
}

func (n *node) SetRotation(x, y, z float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform.Rotation = [3]float32{x, y, z}
	n.dirty = true
}

func (n *node) SetScale(x, y, z float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transform.Scale = [3]float32{x, y, z}
	n.dirty = true
}

func (n *node) Visible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible
}

func (n *node) SetVisible(visible bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visible = visible
}

func (n *node) Bindings() *binding.Set {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.set
}

// prepare creates the uniform buffer and set on first use and reports whether the node
// needs an upload.
func (n *node) prepare(dev backend.Backend) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.set != nil && n.device != dev {
		n.release()
	}
	if n.set == nil {
		buf, err := dev.CreateBuffer(&backend.BufferDescriptor{
			Label: n.name + " Model Uniform Buffer",
			Size:  contract.ModelUniformSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("scene: node %s: failed to create uniform buffer: %w", n.name, err)
		}
		set, err := binding.NewSet(n.name+" Model Bind Group", contract.Model, binding.UniformBuffer(buf))
		if err != nil {
			buf.Release()
			return false, fmt.Errorf("scene: node %s: %w", n.name, err)
		}
		n.device, n.uniform, n.set = dev, buf, set
		n.dirty = true
	}
	return n.dirty, nil
}

// stage marshals the model uniform for the current transform and clears the dirty flag,
// so a transform set after staging is picked up by the next flush.
func (n *node) stage() {
	n.mu.Lock()
	defer n.mu.Unlock()
	u := model.NewModelUniform(n.transform.Matrix())
	n.staged = u.Marshal()
	n.dirty = false
}

// upload writes the staged uniform. A failed write marks the node dirty again.
func (n *node) upload(dev backend.Backend) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.staged == nil || n.uniform == nil {
		return nil
	}
	err := dev.WriteBuffer(n.uniform, 0, n.staged)
	n.staged = nil
	if err != nil {
		n.dirty = true
		return fmt.Errorf("scene: node %s: failed to write uniform: %w", n.name, err)
	}
	return nil
}

func (n *node) releaseLocked() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.release()
}

// release destroys the GPU resources. Caller must hold the mutex.
func (n *node) release() {
	if n.set != nil {
		n.set.Release()
		n.set = nil
	}
	if n.uniform != nil {
		n.uniform.Release()
		n.uniform = nil
	}
	n.device = nil
	n.dirty = true
}
