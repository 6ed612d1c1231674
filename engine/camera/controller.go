package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
)

// Controller owns the eye and target of a camera. The camera reads both on Update.
type Controller interface {
	// Position returns the eye position in world space.
	//
	// Returns:
	//   - [3]float32: the eye position
	Position() [3]float32

	// Target returns the look-at point in world space.
	//
	// Returns:
	//   - [3]float32: the target
	Target() [3]float32

	// Orbit rotates the eye around the target by the given number of orbit steps.
	// Elevation is clamped to the configured bounds.
	//
	// Parameters:
	//   - azimuthSteps: horizontal steps, positive to the right
	//   - elevationSteps: vertical steps, positive upwards
	Orbit(azimuthSteps, elevationSteps float32)

	// Zoom moves the eye towards the target. Positive delta zooms in. The radius is clamped
	// to the configured bounds.
	//
	// Parameters:
	//   - delta: zoom amount, scaled by the zoom speed
	Zoom(delta float32)

	// Pan translates eye and target along the camera's right and up axes.
	//
	// Parameters:
	//   - right: distance along the right axis
	//   - up: distance along the up axis
	Pan(right, up float32)

	// SetTarget moves the pivot and recomputes the eye.
	//
	// Parameters:
	//   - target: the new pivot in world space
	SetTarget(target [3]float32)
}

// orbitController keeps the eye on a sphere around the target.
type orbitController struct {
	mu *sync.Mutex

	target    [3]float32
	radius    float32
	azimuth   float32
	elevation float32

	minRadius, maxRadius       float32
	minElevation, maxElevation float32
	orbitSpeed, zoomSpeed      float32
}

var _ Controller = &orbitController{}

// NewOrbitController creates an orbit controller looking at the origin from 10 units away.
//
// Parameters:
//   - options: ControllerOption functions to configure the controller
//
// Returns:
//   - Controller: the controller
func NewOrbitController(options ...ControllerOption) Controller {
	c := &orbitController{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    math32.Pi / 6,
		minRadius:    0.5,
		maxRadius:    1000,
		minElevation: -math32.Pi/2 + 0.05,
		maxElevation: math32.Pi/2 - 0.05,
		orbitSpeed:   0.03,
		zoomSpeed:    1,
	}
	for _, option := range options {
		option(c)
	}
	c.clamp()
	return c
}

func (c *orbitController) clamp() {
	c.radius = common.Clamp(c.radius, c.minRadius, c.maxRadius)
	c.elevation = common.Clamp(c.elevation, c.minElevation, c.maxElevation)
}

// eye returns the eye position. Caller must hold the mutex.
func (c *orbitController) eye() [3]float32 {
	cosElev, sinElev := math32.Cos(c.elevation), math32.Sin(c.elevation)
	return [3]float32{
		c.target[0] + c.radius*cosElev*math32.Sin(c.azimuth),
		c.target[1] + c.radius*sinElev,
		c.target[2] + c.radius*cosElev*math32.Cos(c.azimuth),
	}
}

func (c *orbitController) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye()
}

func (c *orbitController) Target() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *orbitController) Orbit(azimuthSteps, elevationSteps float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth += azimuthSteps * c.orbitSpeed
	c.elevation += elevationSteps * c.orbitSpeed
	c.clamp()
}

func (c *orbitController) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius -= delta * c.zoomSpeed
	c.clamp()
}

func (c *orbitController) Pan(right, up float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	back := common.Normalize3(common.Sub3(c.eye(), c.target))
	r := common.Normalize3(common.Cross3([3]float32{0, 1, 0}, back))
	u := common.Cross3(back, r)
	for i := range 3 {
		c.target[i] += r[i]*right + u[i]*up
	}
}

func (c *orbitController) SetTarget(target [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
}
