package game_object

import "github.com/Carmen-Shannon/oxy-deferred/engine/light"

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithEnabled sets whether the GameObject is advanced by Update.
//
// Parameters:
//   - enabled: true to animate the object, false to freeze it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithRotationSpeed sets the Euler rotation speed in radians per second.
//
// Parameters:
//   - x: speed around the X axis
//   - y: speed around the Y axis
//   - z: speed around the Z axis
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation speed
func WithRotationSpeed(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotationSpeed = [3]float32{x, y, z}
	}
}

// WithLight attaches a light that follows the object.
//
// Parameters:
//   - l: the light to attach
//   - offset: the light position relative to the node translation
//
// Returns:
//   - GameObjectBuilderOption: functional option to attach the light
func WithLight(l light.Light, offset [3]float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.attachedLight = l
		obj.lightOffset = offset
	}
}
