package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/charmbracelet/log"
)

// engine implements the Engine interface.
// Coordinates the tick and render goroutines with the window message loop.
type engine struct {
	log *log.Logger

	dev       backend.Backend
	window    window.Window
	camera    camera.Camera
	scene     scene.Scene
	clusterer light.Clusterer
	renderer  renderer.Renderer

	rendererOptions  []renderer.RendererBuilderOption
	clustererOptions []light.ClustererBuilderOption

	tickRateChannel chan time.Duration
	quitChannel     chan struct{}
	quitOnce        sync.Once
	wg              sync.WaitGroup
	running         atomic.Bool

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration

	pendingResize atomic.Pointer[[2]uint32]
	reloadPending atomic.Bool
	shaderDir     string
	hotReload     bool
	watcher       *shader.Watcher

	frames       atomic.Uint64
	failedFrames atomic.Uint64
	releaseOnce  sync.Once
	releaseHooks []func()
}

// Engine drives the clustered deferred renderer. Each frame uploads the camera, the scene
// and the lights, then asks the renderer to draw. Resizes and shader reloads requested
// from other goroutines are applied between frames.
type Engine interface {
	// Device returns the backend the engine renders with.
	//
	// Returns:
	//   - backend.Backend: the device
	Device() backend.Backend

	// Window returns the window, nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Camera returns the camera the frame is rendered from.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Scene returns the scene the geometry pass traverses.
	//
	// Returns:
	//   - scene.Scene: the scene
	Scene() scene.Scene

	// Clusterer returns the light clustering collaborator.
	//
	// Returns:
	//   - light.Clusterer: the clusterer
	Clusterer() light.Clusterer

	// Renderer returns the frame orchestrator.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Frame renders one frame on the calling goroutine: pending resize and shader reload,
	// camera update and upload, scene upload, light upload, then Draw.
	//
	// Returns:
	//   - error: the first failing step's error; the frame is not retried
	Frame() error

	// RequestResize schedules an output resize before the next frame.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	RequestResize(width, height uint32)

	// RequestShaderReload schedules a reload of the shader sources before the next frame.
	RequestShaderReload()

	// Frames returns the number of frames rendered without error.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// FailedFrames returns the number of frames that returned an error.
	//
	// Returns:
	//   - uint64: the failed frame count
	FailedFrames() uint64

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render goroutines. With a window it runs the message loop
	// on the calling goroutine until the window closes; headless it blocks until Quit.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Release stops the engine and destroys the renderer, the clusterer, the scene and the
	// camera, plus the window and the backend when NewFromConfig created them.
	Release()
}

var _ Engine = &engine{}

// NewEngine wires the renderer and the clusterer to an existing device, camera and scene.
// The camera is flushed once so the renderer can bind its uniform buffer.
//
// Parameters:
//   - dev: the backend to render with
//   - cam: the camera to render from
//   - scn: the scene to render
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: an error if the clusterer or the renderer cannot be built
func NewEngine(dev backend.Backend, cam camera.Camera, scn scene.Scene, options ...EngineBuilderOption) (Engine, error) {
	if dev == nil || cam == nil || scn == nil {
		return nil, fmt.Errorf("engine: %w", renderer.ErrMissingCollaborator)
	}
	e := &engine{
		log:             logger.Component("engine"),
		dev:             dev,
		camera:          cam,
		scene:           scn,
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if err := e.init(); err != nil {
		e.releaseBuilt()
		return nil, err
	}
	return e, nil
}

func (e *engine) init() error {
	if err := e.camera.Flush(e.dev); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	var err error
	e.clusterer, err = light.NewClusterer(e.dev, e.camera, e.clustererOptions...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	w, h := e.camera.Viewport()
	opts := append([]renderer.RendererBuilderOption{renderer.WithSize(w, h)}, e.rendererOptions...)
	if e.shaderDir != "" {
		src, err := renderer.LoadShaderSources(e.shaderDir)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		opts = append(opts, renderer.WithShaderSources(src))
	}
	e.renderer, err = renderer.New(e.dev, e.camera, e.clusterer, e.scene, opts...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if e.hotReload && e.shaderDir != "" {
		e.watcher, err = shader.NewWatcher(e.shaderDir, shader.DefaultDebounce, func(paths []string) {
			e.log.Info("shader sources changed", "files", paths)
			e.RequestShaderReload()
		})
		if err != nil {
			return fmt.Errorf("engine: shader watcher: %w", err)
		}
	}

	if e.window != nil {
		e.bindWindow()
	}
	return nil
}

// bindWindow forwards resize and close events and drives the camera controller from input.
func (e *engine) bindWindow() {
	e.window.SetResizeCallback(e.RequestResize)
	e.window.SetCloseCallback(e.Quit)

	var dragging bool
	var lastX, lastY float32
	e.window.SetMouseButtonCallback(func(button window.MouseButton, down bool, x, y float32) {
		if button == window.MouseButtonLeft {
			dragging, lastX, lastY = down, x, y
		}
	})
	e.window.SetCursorCallback(func(x, y float32) {
		if ctrl := e.camera.Controller(); dragging && ctrl != nil {
			ctrl.Orbit(x-lastX, lastY-y)
		}
		lastX, lastY = x, y
	})
	e.window.SetScrollCallback(func(delta float32) {
		if ctrl := e.camera.Controller(); ctrl != nil {
			ctrl.Zoom(delta)
		}
	})
	e.window.SetKeyCallback(func(key window.Key, down bool) {
		if !down {
			return
		}
		switch key {
		case window.KeyF5:
			e.RequestShaderReload()
		case window.KeyP:
			if e.profilingEnabled.Load() {
				e.DisableProfiler()
			} else {
				e.EnableProfiler()
			}
		}
	})
}

func (e *engine) Device() backend.Backend     { return e.dev }
func (e *engine) Window() window.Window       { return e.window }
func (e *engine) Camera() camera.Camera       { return e.camera }
func (e *engine) Scene() scene.Scene          { return e.scene }
func (e *engine) Clusterer() light.Clusterer  { return e.clusterer }
func (e *engine) Renderer() renderer.Renderer { return e.renderer }
func (e *engine) Frames() uint64              { return e.frames.Load() }
func (e *engine) FailedFrames() uint64        { return e.failedFrames.Load() }

func (e *engine) RequestResize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	e.pendingResize.Store(&[2]uint32{width, height})
}

func (e *engine) RequestShaderReload() {
	e.reloadPending.Store(true)
}

func (e *engine) Frame() error {
	err := e.frame()
	if err != nil {
		e.failedFrames.Add(1)
		e.log.Error("frame failed", "err", err)
	} else {
		e.frames.Add(1)
	}
	if e.profilingEnabled.Load() {
		e.profiler.Tick(err)
	}
	return err
}

func (e *engine) frame() error {
	if size := e.pendingResize.Swap(nil); size != nil {
		if err := e.renderer.Resize(size[0], size[1]); err != nil {
			return err
		}
		e.camera.SetViewport(size[0], size[1])
	}
	if e.reloadPending.Swap(false) {
		e.reloadShaders()
	}

	e.camera.Update()
	if err := e.camera.Flush(e.dev); err != nil {
		return err
	}
	if err := e.scene.Flush(e.dev); err != nil {
		return err
	}
	if err := e.clusterer.Update(e.scene.Lights()); err != nil {
		return err
	}
	return e.renderer.Draw()
}

// reloadShaders rebuilds the pipelines from the shader directory, keeping the old ones on
// failure.
func (e *engine) reloadShaders() {
	src, err := renderer.LoadShaderSources(e.shaderDir)
	if err == nil {
		err = e.renderer.ReloadShaders(src)
	}
	if err != nil {
		e.log.Warn("shader reload failed, keeping previous pipelines", "err", err)
	}
}

func (e *engine) Run() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()

	if e.window != nil {
		e.window.ProcessMessages()
		e.Quit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()
	e.log.Info("engine stopped", "frames", e.Frames(), "failed", e.FailedFrames())
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handleEngine runs the fixed-rate tick loop. It fires the tick callback at the configured
// rate and picks up rate changes from tickRateChannel until quit.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender renders frames until quit, honoring the frame limit. A panic in a frame is
// logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("render goroutine recovered from panic", "panic", r)
			e.Quit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}
		start := time.Now()
		dt := float32(start.Sub(lastRender).Seconds())
		lastRender = start

		_ = e.Frame()
		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				select {
				case <-e.quitChannel:
					return
				case <-time.After(remaining):
				}
			}
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Release() {
	e.releaseOnce.Do(func() {
		e.Quit()
		if e.running.Load() {
			e.wg.Wait()
		}
		e.releaseBuilt()
		e.scene.Release()
		e.camera.Release()
		for i := len(e.releaseHooks) - 1; i >= 0; i-- {
			e.releaseHooks[i]()
		}
	})
}

// releaseBuilt destroys what init created.
func (e *engine) releaseBuilt() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.log.Warn("shader watcher close", "err", err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Release()
		e.renderer = nil
	}
	if e.clusterer != nil {
		e.clusterer.Release()
		e.clusterer = nil
	}
}
