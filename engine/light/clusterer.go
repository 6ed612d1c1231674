package light

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/assets"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// ClusterProgramKey is the shader key of the clustering kernel. The software backend runs
// AssignClusters under this key.
const ClusterProgramKey = "cluster.comp"

// DefaultMaxLights is the light list capacity used when WithMaxLights is not given.
const DefaultMaxLights = 256

// CameraSource provides the camera uniform buffer the kernel reads the view and inverse
// projection from.
type CameraSource interface {
	Buffer() backend.Buffer
}

type clustererImpl struct {
	mu  *sync.Mutex
	log *log.Logger

	device backend.Backend
	camera CameraSource

	grid      ClusterGrid
	maxLights int
	ambient   [3]float32
	validate  bool

	lightBuffer   backend.Buffer
	clusterBuffer backend.Buffer
	lightCount    int

	pipeline  pipeline.Pipeline
	set       *binding.Set
	setCamera backend.Buffer
}

// Clusterer owns the light list and the cluster buffer and records the compute pass that
// assigns lights to clusters. Both buffers keep their identity for the clusterer's
// lifetime, so sets bound to them never go stale.
type Clusterer interface {
	// Grid returns the cluster grid.
	//
	// Returns:
	//   - ClusterGrid: the grid dimensions and capacity
	Grid() ClusterGrid

	// MaxLights returns the light list capacity.
	//
	// Returns:
	//   - int: the capacity
	MaxLights() int

	// LightCount returns the number of lights written by the last Update.
	//
	// Returns:
	//   - int: the light count
	LightCount() int

	// Ambient returns the ambient color.
	//
	// Returns:
	//   - [3]float32: the ambient RGB color
	Ambient() [3]float32

	// SetAmbient sets the ambient color. It is uploaded on the next Update.
	//
	// Parameters:
	//   - r, g, b: the ambient color components
	SetAmbient(r, g, b float32)

	// Update uploads the ambient color and the enabled lights to the light list.
	//
	// Parameters:
	//   - lights: the scene lights in index order
	//
	// Returns:
	//   - error: ErrTooManyLights if the enabled lights exceed the capacity, or a write error
	Update(lights []Light) error

	// LightBuffer returns the light list storage buffer.
	//
	// Returns:
	//   - backend.Buffer: the light list
	LightBuffer() backend.Buffer

	// ClusterBuffer returns the cluster storage buffer.
	//
	// Returns:
	//   - backend.Buffer: the cluster buffer
	ClusterBuffer() backend.Buffer

	// Pipeline returns the clustering compute pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the built pipeline
	Pipeline() pipeline.Pipeline

	// DoLightClustering records the clustering dispatch.
	//
	// Parameters:
	//   - rec: the recorder of the frame being built
	//
	// Returns:
	//   - error: an error if the binding set cannot be built or the dispatch fails
	DoLightClustering(rec pipeline.ComputeRecorder) error

	// Release destroys the buffers and the pipeline.
	Release()
}

var _ Clusterer = &clustererImpl{}

// NewClusterer creates the clustering collaborator on dev. It allocates the light list and
// cluster buffers and builds the compute pipeline. On the software backend it registers
// AssignClusters as the kernel.
//
// Parameters:
//   - dev: the backend owning the buffers and pipeline
//   - cam: the camera whose uniform buffer the kernel reads
//   - options: functional options to configure the clusterer
//
// Returns:
//   - Clusterer: the clusterer
//   - error: an error if the grid is invalid or a resource cannot be created
func NewClusterer(dev backend.Backend, cam CameraSource, options ...ClustererBuilderOption) (Clusterer, error) {
	c := &clustererImpl{
		mu:        &sync.Mutex{},
		log:       logger.Component("light-clusterer"),
		device:    dev,
		camera:    cam,
		grid:      DefaultClusterGrid(),
		maxLights: DefaultMaxLights,
		validate:  true,
	}
	for _, option := range options {
		option(c)
	}
	if err := c.grid.Validate(); err != nil {
		return nil, err
	}
	if c.maxLights <= 0 {
		return nil, fmt.Errorf("light: light list capacity must be positive, got %d", c.maxLights)
	}

	if reg, ok := dev.(backend.ProgramRegistry); ok {
		reg.RegisterComputeProgram(ClusterProgramKey, AssignClusters)
	}
	if err := c.init(); err != nil {
		c.Release()
		return nil, err
	}
	c.log.Debug("clusterer created", "grid", fmt.Sprintf("%dx%dx%d", c.grid.X, c.grid.Y, c.grid.Z), "max_per_cluster", c.grid.MaxLightsPerCluster, "max_lights", c.maxLights)
	return c, nil
}

func (c *clustererImpl) init() error {
	var err error
	c.lightBuffer, err = c.device.CreateBuffer(&backend.BufferDescriptor{
		Label: "Light List Buffer",
		Size:  LightSetSize(c.maxLights),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("light: failed to create light list buffer: %w", err)
	}
	c.clusterBuffer, err = c.device.CreateBuffer(&backend.BufferDescriptor{
		Label: "Light Cluster Buffer",
		Size:  c.grid.BufferSize(),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("light: failed to create cluster buffer: %w", err)
	}
	if err := c.device.WriteBuffer(c.clusterBuffer, 0, c.grid.MarshalHeader()); err != nil {
		return fmt.Errorf("light: failed to write cluster header: %w", err)
	}
	if err := c.upload(nil); err != nil {
		return err
	}

	src, err := assets.Source(assets.ClusterCompute)
	if err != nil {
		return err
	}
	cs, err := shader.NewShader(ClusterProgramKey, shader.ShaderTypeCompute, src, shader.WithValidation(c.validate))
	if err != nil {
		return fmt.Errorf("light: %w", err)
	}
	p := pipeline.NewPipeline("light-clustering", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cs),
		pipeline.WithBindingLayouts(contract.ClusterLayouts()...),
	)
	if err := p.Build(c.device); err != nil {
		return fmt.Errorf("light: %w", err)
	}
	c.pipeline = p
	return nil
}

func (c *clustererImpl) Grid() ClusterGrid {
	return c.grid
}

func (c *clustererImpl) MaxLights() int {
	return c.maxLights
}

func (c *clustererImpl) LightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lightCount
}

func (c *clustererImpl) Ambient() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ambient
}

func (c *clustererImpl) SetAmbient(r, g, b float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ambient = [3]float32{r, g, b}
}

func (c *clustererImpl) Update(lights []Light) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upload(lights)
}

// upload writes the light list. Caller must hold the mutex or be the constructor.
func (c *clustererImpl) upload(lights []Light) error {
	data, n := MarshalLightSet(c.ambient, lights)
	if n > c.maxLights {
		return fmt.Errorf("%w: %d enabled lights, capacity %d", ErrTooManyLights, n, c.maxLights)
	}
	if err := c.device.WriteBuffer(c.lightBuffer, 0, data); err != nil {
		return fmt.Errorf("light: failed to write light list: %w", err)
	}
	c.lightCount = n
	return nil
}

func (c *clustererImpl) LightBuffer() backend.Buffer {
	return c.lightBuffer
}

func (c *clustererImpl) ClusterBuffer() backend.Buffer {
	return c.clusterBuffer
}

func (c *clustererImpl) Pipeline() pipeline.Pipeline {
	return c.pipeline
}

func (c *clustererImpl) DoLightClustering(rec pipeline.ComputeRecorder) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, err := c.bindings()
	if err != nil {
		return err
	}
	if err := rec.Dispatch("Light Clustering Pass", c.pipeline, []*binding.Set{set}, c.grid.Workgroups()); err != nil {
		return fmt.Errorf("light: clustering dispatch: %w", err)
	}
	return nil
}

// bindings returns the clustering set, rebuilding it when the camera buffer changed.
// Caller must hold the mutex.
func (c *clustererImpl) bindings() (*binding.Set, error) {
	camBuf := c.camera.Buffer()
	if c.set != nil && c.setCamera == camBuf {
		return c.set, nil
	}
	set, err := binding.NewSet("Light Cluster Bind Group", contract.Cluster,
		binding.UniformBuffer(camBuf),
		binding.ReadOnlyStorage(c.lightBuffer),
		binding.Storage(c.clusterBuffer),
	)
	if err != nil {
		return nil, fmt.Errorf("light: %w", err)
	}
	if c.set != nil {
		c.set.Release()
	}
	c.set, c.setCamera = set, camBuf
	return set, nil
}

func (c *clustererImpl) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set != nil {
		c.set.Release()
		c.set, c.setCamera = nil, nil
	}
	if c.pipeline != nil {
		c.pipeline.Release()
		c.pipeline = nil
	}
	if c.lightBuffer != nil {
		c.lightBuffer.Release()
		c.lightBuffer = nil
	}
	if c.clusterBuffer != nil {
		c.clusterBuffer.Release()
		c.clusterBuffer = nil
	}
}
