package scene

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithWorkers sets the number of workers staging model uniforms in parallel.
//
// Parameters:
//   - workers: the worker count, at least 1
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(workers int) SceneBuilderOption {
	return func(s *scene) {
		s.workers = max(workers, 1)
	}
}

// WithLights adds initial lights to the scene.
//
// Parameters:
//   - lights: the lights in index order
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		for _, l := range lights {
			if l != nil {
				s.lights = append(s.lights, l)
			}
		}
	}
}

// NodeBuilderOption is a functional option for configuring a Node via Scene.AddNode.
type NodeBuilderOption func(n *node)

// WithNodeName sets the node's name. The default is the model name with a short ID suffix.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithNodeName(name string) NodeBuilderOption {
	return func(n *node) {
		n.name = name
	}
}

// WithTransform sets the node's initial transform.
//
// Parameters:
//   - t: the transform
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithTransform(t model.Transform) NodeBuilderOption {
	return func(n *node) {
		n.transform = t
	}
}

// WithVisible sets whether the node is drawn.
//
// Parameters:
//   - visible: true to draw the node
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithVisible(visible bool) NodeBuilderOption {
	return func(n *node) {
		n.visible = visible
	}
}
