package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/chewxy/math32"
)

type gameObject struct {
	mu            sync.Mutex
	node          scene.Node
	enabled       atomic.Bool
	rotationSpeed [3]float32
	attachedLight light.Light
	lightOffset   [3]float32
}

// GameObject drives a scene node over time. Each Update spins the node by its rotation
// speed and moves an attached light along with it.
type GameObject interface {
	// Node returns the scene node this object drives.
	//
	// Returns:
	//   - scene.Node: the driven node
	Node() scene.Node

	// Enabled returns whether Update advances this object.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether Update advances this object.
	//
	// Parameters:
	//   - enabled: false to freeze the object in place
	SetEnabled(enabled bool)

	// RotationSpeed returns the Euler rotation speed in radians per second.
	//
	// Returns:
	//   - [3]float32: the rotation speed around X, Y and Z
	RotationSpeed() [3]float32

	// SetRotationSpeed sets the Euler rotation speed in radians per second.
	//
	// Parameters:
	//   - x: speed around the X axis
	//   - y: speed around the Y axis
	//   - z: speed around the Z axis
	SetRotationSpeed(x, y, z float32)

	// Light returns the attached light, or nil.
	//
	// Returns:
	//   - light.Light: the attached light
	Light() light.Light

	// SetLight attaches a light that follows the node at the given offset from its
	// translation. A nil light detaches the current one.
	//
	// Parameters:
	//   - l: the light to attach
	//   - offset: the light position relative to the node translation
	SetLight(l light.Light, offset [3]float32)

	// Update advances the object by deltaTime seconds.
	//
	// Parameters:
	//   - deltaTime: elapsed time in seconds
	Update(deltaTime float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a GameObject bound to node. Objects start enabled.
//
// Parameters:
//   - node: the scene node to drive
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(node scene.Node, options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{node: node}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	obj.syncLight()
	return obj
}

func (g *gameObject) Node() scene.Node {
	return g.node
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) RotationSpeed() [3]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationSpeed
}

func (g *gameObject) SetRotationSpeed(x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = [3]float32{x, y, z}
}

func (g *gameObject) Light() light.Light {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attachedLight
}

func (g *gameObject) SetLight(l light.Light, offset [3]float32) {
	g.mu.Lock()
	g.attachedLight = l
	g.lightOffset = offset
	g.mu.Unlock()
	g.syncLight()
}

func (g *gameObject) Update(deltaTime float32) {
	if !g.Enabled() || deltaTime <= 0 {
		return
	}
	g.mu.Lock()
	speed := g.rotationSpeed
	g.mu.Unlock()

	if speed != [3]float32{} {
		rot := g.node.Transform().Rotation
		for i := range rot {
			rot[i] = math32.Mod(rot[i]+speed[i]*deltaTime, 2*math32.Pi)
		}
		g.node.SetRotation(rot[0], rot[1], rot[2])
	}
	g.syncLight()
}

// syncLight moves the attached light to the node translation plus its offset.
func (g *gameObject) syncLight() {
	g.mu.Lock()
	l, offset := g.attachedLight, g.lightOffset
	g.mu.Unlock()
	if l == nil || g.node == nil {
		return
	}
	t := g.node.Transform().Translation
	l.SetPosition(t[0]+offset[0], t[1]+offset[1], t[2]+offset[2])
}
