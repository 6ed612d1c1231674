package renderer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu    *sync.Mutex
	state atomic.Int32
	log   *log.Logger

	dev       backend.Backend
	camera    CameraSource
	clusterer LightClusterer
	traversal SceneTraversal

	// Pre-creation config collected from builder options
	width, height uint32
	formats       gbuffer.Formats
	validate      bool
	cullMode      wgpu.CullMode
	present       bool
	sources       *ShaderSources

	surface  *gbuffer.Surface
	geometry pipeline.Pipeline
	resolve  pipeline.Pipeline

	sceneSet     *binding.Set
	resolveSet   *binding.Set
	resolveFor   *gbuffer.TargetSet
	cameraBuffer backend.Buffer
	released     bool

	// Read by the accessors without the mutex, so a traversal may call them during Draw.
	published atomic.Pointer[frameResources]
	frames    atomic.Uint64
	lastDraws atomic.Int64
}

// frameResources is the snapshot of the sets and pipelines the accessors return. It is
// replaced under the mutex whenever one of them changes.
type frameResources struct {
	sceneSet   *binding.Set
	resolveSet *binding.Set
	geometry   pipeline.Pipeline
	resolve    pipeline.Pipeline
}

// publish snapshots the current sets and pipelines. Caller must hold the mutex.
func (r *renderer) publish() {
	r.published.Store(&frameResources{
		sceneSet:   r.sceneSet,
		resolveSet: r.resolveSet,
		geometry:   r.geometry,
		resolve:    r.resolve,
	})
}

// Renderer is the frame orchestrator of the clustered deferred pipeline. Each Draw records
// one command sequence: the light clustering dispatch, the geometry pass filling the
// G-buffer and the resolve pass shading the output, then submits it.
//
// The renderer is the only component that opens and submits command sequences. The
// clusterer and the scene traversal only see narrow recorders. The read accessors do not
// take the frame lock, so a traversal may call them while Draw runs.
type Renderer interface {
	// Draw records and submits one frame, then presents it. The phases run strictly in
	// order and a failure in any of them abandons the frame.
	//
	// Returns:
	//   - error: ErrFrameInProgress when re-entered, or the failing phase's error wrapped
	//     with the phase name
	Draw() error

	// Resize rebuilds the G-buffer and the resolve set for a new output size and
	// reconfigures the output. The new state is swapped in only after every step
	// succeeded; on failure the previous state stays in use.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the new state could not be built
	Resize(width, height uint32) error

	// ReloadShaders rebuilds both render pipelines from new sources. The old pipelines stay
	// in use if validation, layout checks or compilation fail.
	//
	// Parameters:
	//   - sources: the new stage sources
	//
	// Returns:
	//   - error: an error if the new pipelines could not be built
	ReloadShaders(sources ShaderSources) error

	// State returns the phase of the frame being recorded.
	//
	// Returns:
	//   - FrameState: the current phase
	State() FrameState

	// Frames returns the number of frames submitted.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// LastDrawCount returns the number of indexed draws recorded by the last submitted frame.
	//
	// Returns:
	//   - int: the draw count
	LastDrawCount() int

	// Targets returns the current G-buffer target set.
	//
	// Returns:
	//   - *gbuffer.TargetSet: the current targets
	Targets() *gbuffer.TargetSet

	// SceneBindings returns the geometry pass scene set.
	//
	// Returns:
	//   - *binding.Set: the set built against contract.Scene
	SceneBindings() *binding.Set

	// ResolveBindings returns the resolve set bound to the current targets.
	//
	// Returns:
	//   - *binding.Set: the set built against contract.Resolve
	ResolveBindings() *binding.Set

	// GeometryPipeline returns the geometry pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the geometry pipeline
	GeometryPipeline() pipeline.Pipeline

	// ResolvePipeline returns the resolve pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the resolve pipeline
	ResolvePipeline() pipeline.Pipeline

	// Release destroys the pipelines, the sets and the G-buffer. The collaborators are left
	// untouched.
	Release()
}

var _ Renderer = &renderer{}

// New builds the orchestrator: the G-buffer, the scene and resolve sets and both render
// pipelines. The camera must have been flushed so its uniform buffer exists. On the
// software backend the CPU stage programs are registered first.
//
// Parameters:
//   - dev: the backend to record against
//   - cam: the camera uniform source
//   - clusterer: the light clustering collaborator
//   - traversal: the scene traversal
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: ErrMissingCollaborator, or an error building the targets, sets or pipelines
func New(dev backend.Backend, cam CameraSource, clusterer LightClusterer, traversal SceneTraversal, options ...RendererBuilderOption) (Renderer, error) {
	if dev == nil || cam == nil || clusterer == nil || traversal == nil {
		return nil, fmt.Errorf("%w: backend, camera, clusterer and traversal are required", ErrMissingCollaborator)
	}
	if cam.Buffer() == nil {
		return nil, fmt.Errorf("%w: camera uniform buffer not flushed", ErrMissingCollaborator)
	}

	r := &renderer{
		mu:        &sync.Mutex{},
		log:       logger.Component("renderer"),
		dev:       dev,
		camera:    cam,
		clusterer: clusterer,
		traversal: traversal,
		formats:   gbuffer.DefaultFormats(),
		validate:  true,
		cullMode:  wgpu.CullModeNone,
		present:   true,
	}
	if w, h := dev.OutputSize(); w > 0 && h > 0 {
		r.width, r.height = uint32(w), uint32(h)
	}
	for _, option := range options {
		option(r)
	}
	if r.width == 0 || r.height == 0 {
		return nil, fmt.Errorf("renderer: output size %dx%d is invalid", r.width, r.height)
	}

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	r.log.Debug("renderer created", "backend", dev.Type(), "width", r.width, "height", r.height, "formats", r.formats.Color())
	return r, nil
}

func (r *renderer) init() error {
	if reg, ok := r.dev.(backend.ProgramRegistry); ok {
		registerPrograms(reg)
	}
	if ow, oh := r.dev.OutputSize(); uint32(ow) != r.width || uint32(oh) != r.height {
		if err := r.dev.ConfigureOutput(int(r.width), int(r.height)); err != nil {
			return fmt.Errorf("renderer: failed to configure output: %w", err)
		}
	}

	surface, err := gbuffer.NewSurface(r.dev, r.width, r.height, gbuffer.WithFormats(r.formats))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	r.surface = surface

	src := r.sources
	if src == nil {
		defaults, err := DefaultShaderSources()
		if err != nil {
			return err
		}
		src = &defaults
	}
	r.geometry, r.resolve, err = r.buildPipelines(*src)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	if err := r.refreshSceneSet(); err != nil {
		return err
	}
	set, err := r.buildResolveSet(surface.Current())
	if err != nil {
		return err
	}
	r.resolveSet, r.resolveFor = set, surface.Current()
	r.publish()
	return nil
}

// refreshSceneSet rebuilds the scene set when the camera buffer changed identity. Caller
// must hold the mutex.
func (r *renderer) refreshSceneSet() error {
	buf := r.camera.Buffer()
	if r.sceneSet != nil && buf == r.cameraBuffer {
		return nil
	}
	set, err := binding.NewSet("Scene Bind Group", contract.Scene, binding.UniformBuffer(buf))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	if r.sceneSet != nil {
		r.sceneSet.Release()
	}
	r.sceneSet, r.cameraBuffer = set, buf
	r.publish()
	return nil
}

// buildResolveSet binds the camera, the clusterer buffers and the views of targets.
func (r *renderer) buildResolveSet(targets *gbuffer.TargetSet) (*binding.Set, error) {
	set, err := binding.NewSet(fmt.Sprintf("Resolve Bind Group %dx%d", targets.Width(), targets.Height()), contract.Resolve,
		binding.UniformBuffer(r.camera.Buffer()),
		binding.ReadOnlyStorage(r.clusterer.LightBuffer()),
		binding.ReadOnlyStorage(r.clusterer.ClusterBuffer()),
		binding.Texture(targets.Position().View()),
		binding.Texture(targets.Normal().View()),
		binding.Texture(targets.Albedo().View()),
	)
	if err != nil {
		return nil, fmt.Errorf("renderer: resolve set: %w", err)
	}
	return set, nil
}

func (r *renderer) Draw() error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateClusterDispatch)) {
		return ErrFrameInProgress
	}
	defer r.state.Store(int32(StateIdle))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	if err := r.prepareFrame(); err != nil {
		return r.fail(StateClusterDispatch, nil, err)
	}
	targets, sceneSet, resolveSet := r.surface.Current(), r.sceneSet, r.resolveSet

	enc, err := r.dev.CreateCommandEncoder(fmt.Sprintf("Frame %d", r.frames.Load()+1))
	if err != nil {
		return r.fail(StateClusterDispatch, nil, err)
	}

	if err := r.clusterer.DoLightClustering(&computeRecorder{dev: r.dev, encoder: enc}); err != nil {
		return r.fail(StateClusterDispatch, enc, err)
	}

	r.state.Store(int32(StateGeometryPass))
	draws, err := r.executeGeometryPass(enc, targets, sceneSet, r.traversal)
	if err != nil {
		return r.fail(StateGeometryPass, enc, err)
	}

	r.state.Store(int32(StateResolvePass))
	output, err := r.dev.AcquireOutput()
	if err != nil {
		return r.fail(StateResolvePass, enc, err)
	}
	if err := r.executeResolvePass(enc, output, resolveSet); err != nil {
		r.dev.DiscardOutput()
		return r.fail(StateResolvePass, enc, err)
	}
	cb, err := enc.Finish()
	if err != nil {
		r.dev.DiscardOutput()
		return r.fail(StateResolvePass, enc, err)
	}

	r.state.Store(int32(StateSubmitted))
	r.dev.Submit(cb)
	if r.present {
		r.dev.Present()
	}
	r.frames.Add(1)
	r.lastDraws.Store(int64(draws))
	return nil
}

// prepareFrame rebuilds the camera-bound sets if the camera buffer was replaced. Caller
// must hold the mutex.
func (r *renderer) prepareFrame() error {
	if r.camera.Buffer() == r.cameraBuffer && r.resolveFor == r.surface.Current() {
		return nil
	}
	if err := r.refreshSceneSet(); err != nil {
		return err
	}
	set, err := r.buildResolveSet(r.surface.Current())
	if err != nil {
		return err
	}
	r.resolveSet.Release()
	r.resolveSet, r.resolveFor = set, r.surface.Current()
	r.publish()
	return nil
}

// fail releases the frame encoder and wraps err with the phase name.
func (r *renderer) fail(phase FrameState, enc backend.CommandEncoder, err error) error {
	if enc != nil {
		enc.Release()
	}
	r.log.Debug("frame failed", "frame", r.frames.Load()+1, "phase", phase, "err", err)
	return fmt.Errorf("renderer: %s: %w", phase, err)
}

func (r *renderer) Resize(width, height uint32) error {
	if r.State() != StateIdle {
		return ErrFrameInProgress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	next, err := r.surface.Build(width, height)
	if err != nil {
		return fmt.Errorf("renderer: resize: %w", err)
	}
	set, err := r.buildResolveSet(next)
	if err != nil {
		next.Release()
		return fmt.Errorf("renderer: resize: %w", err)
	}
	if err := r.dev.ConfigureOutput(int(width), int(height)); err != nil {
		set.Release()
		next.Release()
		return fmt.Errorf("renderer: resize: failed to configure output: %w", err)
	}

	previous := r.surface.Swap(next)
	oldSet := r.resolveSet
	r.resolveSet, r.resolveFor = set, next
	r.width, r.height = width, height
	r.publish()
	if oldSet != nil {
		oldSet.Release()
	}
	if previous != nil {
		previous.Release()
	}
	r.log.Info("resized", "width", width, "height", height, "generation", next.Generation())
	return nil
}

func (r *renderer) ReloadShaders(sources ShaderSources) error {
	if r.State() != StateIdle {
		return ErrFrameInProgress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	geometry, resolve, err := r.buildPipelines(sources)
	if err != nil {
		r.log.Warn("shader reload rejected", "err", err)
		return fmt.Errorf("renderer: reload: %w", err)
	}
	r.geometry.Release()
	r.resolve.Release()
	r.geometry, r.resolve = geometry, resolve
	r.publish()
	r.log.Info("shaders reloaded")
	return nil
}

func (r *renderer) State() FrameState {
	return FrameState(r.state.Load())
}

func (r *renderer) Frames() uint64 {
	return r.frames.Load()
}

func (r *renderer) LastDrawCount() int {
	return int(r.lastDraws.Load())
}

func (r *renderer) Targets() *gbuffer.TargetSet {
	return r.surface.Current()
}

func (r *renderer) SceneBindings() *binding.Set {
	if p := r.published.Load(); p != nil {
		return p.sceneSet
	}
	return nil
}

func (r *renderer) ResolveBindings() *binding.Set {
	if p := r.published.Load(); p != nil {
		return p.resolveSet
	}
	return nil
}

func (r *renderer) GeometryPipeline() pipeline.Pipeline {
	if p := r.published.Load(); p != nil {
		return p.geometry
	}
	return nil
}

func (r *renderer) ResolvePipeline() pipeline.Pipeline {
	if p := r.published.Load(); p != nil {
		return p.resolve
	}
	return nil
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	if r.resolveSet != nil {
		r.resolveSet.Release()
		r.resolveSet, r.resolveFor = nil, nil
	}
	if r.sceneSet != nil {
		r.sceneSet.Release()
		r.sceneSet = nil
	}
	if r.geometry != nil {
		r.geometry.Release()
		r.geometry = nil
	}
	if r.resolve != nil {
		r.resolve.Release()
		r.resolve = nil
	}
	if r.surface != nil {
		r.surface.Release()
	}
	r.publish()
}
