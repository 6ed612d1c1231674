package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

type cameraImpl struct {
	mu *sync.Mutex

	label string

	eye    [3]float32
	target [3]float32
	up     [3]float32

	fov           float32
	near          float32
	far           float32
	width, height uint32

	viewMatrix              [16]float32
	projectionMatrix        [16]float32
	viewProjectionMatrix    [16]float32
	inverseProjectionMatrix [16]float32

	controller Controller

	device backend.Backend
	buffer backend.Buffer
}

// Camera holds the perspective settings and the matrices derived from them, and owns the
// camera uniform buffer shared by the geometry, clustering and resolve passes.
type Camera interface {
	// Position returns the eye position in world space.
	//
	// Returns:
	//   - [3]float32: the eye position
	Position() [3]float32

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Viewport returns the output size.
	//
	// Returns:
	//   - uint32: the width in pixels
	//   - uint32: the height in pixels
	Viewport() (uint32, uint32)

	// ViewMatrix returns the current 4x4 view matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// InverseProjectionMatrix returns the inverse of the projection matrix. The clustering
	// pass unprojects cluster corners with it.
	//
	// Returns:
	//   - [16]float32: the inverse projection matrix
	InverseProjectionMatrix() [16]float32

	// Controller returns the attached Controller, or nil.
	//
	// Returns:
	//   - Controller: the attached controller or nil
	Controller() Controller

	// SetController attaches a Controller. It takes effect on the next Update.
	//
	// Parameters:
	//   - ctrl: the controller to attach, nil to detach
	SetController(ctrl Controller)

	// LookAt places the eye and target and recomputes the matrices.
	//
	// Parameters:
	//   - eye: the eye position in world space
	//   - target: the look-at point in world space
	LookAt(eye, target [3]float32)

	// SetViewport updates the output size and the aspect ratio derived from it.
	//
	// Parameters:
	//   - width: the output width in pixels
	//   - height: the output height in pixels
	SetViewport(width, height uint32)

	// Update reads eye and target from the controller, if any, and recomputes the matrices.
	Update()

	// Uniform returns the uniform contents for the current state.
	//
	// Returns:
	//   - GPUCameraUniform: the uniform
	Uniform() GPUCameraUniform

	// Flush uploads the uniform, creating the buffer on first use.
	//
	// Parameters:
	//   - dev: the backend owning the buffer
	//
	// Returns:
	//   - error: an error if the buffer cannot be created or written
	Flush(dev backend.Backend) error

	// Buffer returns the uniform buffer, nil before the first Flush.
	//
	// Returns:
	//   - backend.Buffer: the camera uniform buffer
	Buffer() backend.Buffer

	// Release destroys the uniform buffer.
	Release()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at (0, 0, 5) looking at the origin with a 60 degree field of
// view, clip planes 0.1 and 100 and a 1x1 viewport.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		label:  "camera-" + uuid.NewString(),
		eye:    [3]float32{0, 0, 5},
		up:     [3]float32{0, 1, 0},
		fov:    math32.Pi / 3,
		near:   0.1,
		far:    100,
		width:  1,
		height: 1,
	}
	for _, option := range options {
		option(c)
	}
	c.readController()
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect()
}

func (c *cameraImpl) aspect() float32 {
	if c.height == 0 {
		return 1
	}
	return float32(c.width) / float32(c.height)
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Viewport() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) LookAt(eye, target [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye, c.target = eye, target
	c.updateMatrices()
}

func (c *cameraImpl) SetViewport(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	c.updateMatrices()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readController()
	c.updateMatrices()
}

// readController copies eye and target from the controller. Caller must hold the mutex.
func (c *cameraImpl) readController() {
	if c.controller == nil {
		return
	}
	c.eye = c.controller.Position()
	c.target = c.controller.Target()
}

// updateMatrices recalculates the view, projection, view-projection and inverse projection
// matrices. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:], c.eye, c.target, c.up)
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect(), c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniform()
}

func (c *cameraImpl) uniform() GPUCameraUniform {
	return GPUCameraUniform{
		ViewProj:       c.viewProjectionMatrix,
		View:           c.viewMatrix,
		InvProj:        c.inverseProjectionMatrix,
		CameraPosition: c.eye,
		Near:           c.near,
		Resolution:     [2]float32{float32(c.width), float32(c.height)},
		Far:            c.far,
	}
}

func (c *cameraImpl) Flush(dev backend.Backend) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer != nil && c.device != dev {
		c.buffer.Release()
		c.buffer = nil
	}
	if c.buffer == nil {
		buf, err := dev.CreateBuffer(&backend.BufferDescriptor{
			Label: c.label + " Uniform Buffer",
			Size:  contract.CameraUniformSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("camera: failed to create uniform buffer: %w", err)
		}
		c.buffer, c.device = buf, dev
	}
	u := c.uniform()
	if err := dev.WriteBuffer(c.buffer, 0, u.Marshal()); err != nil {
		return fmt.Errorf("camera: failed to write uniform buffer: %w", err)
	}
	return nil
}

func (c *cameraImpl) Buffer() backend.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

func (c *cameraImpl) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer != nil {
		c.buffer.Release()
		c.buffer, c.device = nil, nil
	}
}
