package camera

// ControllerOption is a functional option used to configure an orbit controller.
type ControllerOption func(*orbitController)

// WithTarget sets the pivot the controller orbits.
func WithTarget(x, y, z float32) ControllerOption {
	return func(c *orbitController) {
		c.target = [3]float32{x, y, z}
	}
}

// WithRadius sets the initial distance from the target.
func WithRadius(radius float32) ControllerOption {
	return func(c *orbitController) {
		c.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation in radians.
func WithAngles(azimuth, elevation float32) ControllerOption {
	return func(c *orbitController) {
		c.azimuth = azimuth
		c.elevation = elevation
	}
}

// WithRadiusBounds sets the zoom limits.
func WithRadiusBounds(minRadius, maxRadius float32) ControllerOption {
	return func(c *orbitController) {
		c.minRadius = minRadius
		c.maxRadius = maxRadius
	}
}

// WithSpeeds sets the radians per orbit step and the zoom multiplier.
func WithSpeeds(orbit, zoom float32) ControllerOption {
	return func(c *orbitController) {
		c.orbitSpeed = orbit
		c.zoomSpeed = zoom
	}
}
