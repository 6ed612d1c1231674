package engine

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// NewFromConfig builds the whole stack from a configuration: the logger, a window and the
// wgpu backend (or the headless software backend), an orbit camera, an empty scene, the
// clusterer and the renderer. The returned engine owns all of them.
//
// Parameters:
//   - cfg: the configuration
//   - options: extra options applied after the ones derived from cfg
//
// Returns:
//   - Engine: the engine
//   - error: a validation error or an error creating any component
func NewFromConfig(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Configure(logger.Options{Level: cfg.Logging.Level, ReportCaller: cfg.Logging.ReportCaller}); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	kind, _ := cfg.BackendType()
	mode, _ := cfg.PresentMode()
	formats, _ := cfg.Formats()

	var (
		dev           backend.Backend
		win           window.Window
		width, height = cfg.Window.Width, cfg.Window.Height
		err           error
	)
	switch kind {
	case backend.BackendTypeWGPU:
		win, err = window.NewWindow(window.WithTitle(cfg.Window.Title), window.WithSize(width, height))
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		dev, err = backend.NewWGPUBackend(win.SurfaceDescriptor(),
			backend.WithForceFallbackAdapter(cfg.Renderer.ForceFallbackAdapter),
			backend.WithWGPUPresentMode(mode),
		)
		if err != nil {
			_ = win.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		width, height = win.Size()
	case backend.BackendTypeSoftware:
		var opts []backend.SoftwareBackendOption
		if cfg.Renderer.Workers > 0 {
			opts = append(opts, backend.WithWorkers(cfg.Renderer.Workers))
		}
		dev = backend.NewSoftwareBackend(opts...)
	}

	cam := camera.NewCamera(
		camera.WithViewport(width, height),
		camera.WithController(camera.NewOrbitController()),
	)
	sceneOpts := []scene.SceneBuilderOption{scene.WithName(cfg.Window.Title)}
	if cfg.Renderer.Workers > 0 {
		sceneOpts = append(sceneOpts, scene.WithWorkers(cfg.Renderer.Workers))
	}
	scn := scene.NewScene(sceneOpts...)

	ambient := cfg.Lighting.Ambient
	opts := []EngineBuilderOption{
		WithProfiling(cfg.Profiler.Enabled),
		WithRendererOptions(
			renderer.WithFormats(formats),
			renderer.WithShaderValidation(cfg.Renderer.ShaderValidation),
		),
		WithClustererOptions(
			light.WithGrid(cfg.Grid()),
			light.WithMaxLights(cfg.Clustering.MaxLights),
			light.WithAmbient(ambient[0], ambient[1], ambient[2]),
			light.WithShaderValidation(cfg.Renderer.ShaderValidation),
		),
		withReleaseHook(dev.Release),
	}
	if cfg.Renderer.ShaderDir != "" {
		opts = append(opts, WithShaderDir(cfg.Renderer.ShaderDir, cfg.Renderer.HotReload))
	}
	if win != nil {
		opts = append(opts, WithWindow(win), withReleaseHook(func() { _ = win.Close() }))
	}

	e, err := NewEngine(dev, cam, scn, append(opts, options...)...)
	if err != nil {
		scn.Release()
		cam.Release()
		dev.Release()
		if win != nil {
			_ = win.Close()
		}
		return nil, err
	}
	logger.Info("engine ready", "backend", kind, "width", width, "height", height)
	return e, nil
}
