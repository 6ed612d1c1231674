package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/google/uuid"
)

// parallelStageThreshold is the dirty node count from which uniform staging is spread
// over the worker pool.
const parallelStageThreshold = 64

// Scene holds the placed nodes and the lights of a world and feeds the geometry pass.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// AddNode places a model in the scene.
	//
	// Parameters:
	//   - mdl: the model to draw; every primitive needs a mesh and a material
	//   - options: functional options configuring the node
	//
	// Returns:
	//   - Node: the new node
	//   - error: ErrInvalidModel if the model cannot be drawn
	AddNode(mdl model.Model, options ...NodeBuilderOption) (Node, error)

	// RemoveNode removes a node and releases its model set. The model is left untouched.
	//
	// Parameters:
	//   - id: the node ID
	//
	// Returns:
	//   - bool: true if the node existed
	RemoveNode(id uuid.UUID) bool

	// Node looks a node up by ID.
	//
	// Parameters:
	//   - id: the node ID
	//
	// Returns:
	//   - Node: the node, or nil if not found
	Node(id uuid.UUID) Node

	// Nodes returns the nodes in insertion order.
	//
	// Returns:
	//   - []Node: a snapshot of the nodes
	Nodes() []Node

	// AddLight appends a light. Light indices follow insertion order.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light.
	//
	// Parameters:
	//   - l: the light to remove
	//
	// Returns:
	//   - bool: true if the light was present
	RemoveLight(l light.Light) bool

	// Lights returns the lights in index order.
	//
	// Returns:
	//   - []light.Light: a snapshot of the lights
	Lights() []light.Light

	// Flush creates missing node sets, uploads changed model matrices and flushes every
	// material the nodes draw with.
	//
	// Parameters:
	//   - dev: the backend owning the resources
	//
	// Returns:
	//   - error: the joined errors of every node and material that failed
	Flush(dev backend.Backend) error

	// Iterate walks the visible nodes in insertion order. For each node it visits the node
	// set, then each material set followed by the primitives drawn with it.
	//
	// Parameters:
	//   - v: the visitor receiving the draw stream
	//
	// Returns:
	//   - error: ErrNotFlushed if a set is missing, or the first visitor error
	Iterate(v pipeline.GeometryVisitor) error

	// Release destroys every node set and releases the models the nodes reference.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	nodes  []*node
	byID   map[uuid.UUID]*node
	lights []light.Light

	pool    worker.DynamicWorkerPool
	workers int
}

var _ Scene = &scene{}

// NewScene creates an empty scene.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:      &sync.RWMutex{},
		name:    "scene",
		byID:    make(map[uuid.UUID]*node),
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	// The pool is built after options so WithWorkers can override the default.
	s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) AddNode(mdl model.Model, options ...NodeBuilderOption) (Node, error) {
	n, err := newNode(mdl, options...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, n)
	s.byID[n.id] = n
	return n, nil
}

func (s *scene) RemoveNode(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.nodes = slices.DeleteFunc(s.nodes, func(o *node) bool { return o == n })
	n.releaseLocked()
	return true
}

func (s *scene) Node(id uuid.UUID) Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byID[id]; ok {
		return n
	}
	return nil
}

func (s *scene) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n
	}
	return out
}

func (s *scene) AddLight(l light.Light) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.lights, l)
	if i < 0 {
		return false
	}
	s.lights = slices.Delete(s.lights, i, i+1)
	return true
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lights)
}

func (s *scene) Flush(dev backend.Backend) error {
	s.mu.RLock()
	nodes := slices.Clone(s.nodes)
	s.mu.RUnlock()

	var errs []error
	dirty := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		d, err := n.prepare(dev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if d {
			dirty = append(dirty, n)
		}
	}

	s.stage(dirty)
	for _, n := range dirty {
		if err := n.upload(dev); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[material.Material]struct{})
	for _, n := range nodes {
		for _, g := range n.groups {
			mat := g.primitives[0].Material
			if _, ok := seen[mat]; ok {
				continue
			}
			seen[mat] = struct{}{}
			if err := mat.Flush(dev); err != nil {
				errs = append(errs, fmt.Errorf("scene: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// stage marshals the uniforms of the dirty nodes. Large batches are split into chunks on
// the worker pool with a WaitGroup as the barrier.
func (s *scene) stage(dirty []*node) {
	if len(dirty) < parallelStageThreshold {
		for _, n := range dirty {
			n.stage()
		}
		return
	}

	chunk := max(len(dirty)/s.workers, 1)
	var wg sync.WaitGroup
	for id, start := 0, 0; start < len(dirty); id, start = id+1, start+chunk {
		batch := dirty[start:min(start+chunk, len(dirty))]
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for _, n := range batch {
					n.stage()
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (s *scene) Iterate(v pipeline.GeometryVisitor) error {
	s.mu.RLock()
	nodes := slices.Clone(s.nodes)
	s.mu.RUnlock()

	for _, n := range nodes {
		if !n.Visible() {
			continue
		}
		set := n.Bindings()
		if set == nil {
			return fmt.Errorf("%w: node %s", ErrNotFlushed, n.name)
		}
		if err := v.VisitNode(set); err != nil {
			return err
		}
		for _, g := range n.groups {
			mat := g.primitives[0].Material
			matSet := mat.Bindings()
			if matSet == nil {
				return fmt.Errorf("%w: material %s", ErrNotFlushed, mat.Name())
			}
			if err := v.VisitMaterial(matSet); err != nil {
				return err
			}
			for _, p := range g.primitives {
				if err := v.VisitPrimitive(p.Mesh.VertexBuffer(), p.Mesh.IndexBuffer(), p.Mesh.IndexCount()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	models := make(map[model.Model]struct{})
	for _, n := range s.nodes {
		n.releaseLocked()
		models[n.mdl] = struct{}{}
	}
	for m := range models {
		m.Release()
	}
	s.nodes = nil
	s.byID = make(map[uuid.UUID]*node)
}
