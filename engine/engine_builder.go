package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow attaches a window. The engine forwards its resizes to the renderer, closes on
// its close request and drives the camera controller from its input.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithRendererOptions passes options through to renderer.New. The output size defaults to
// the camera viewport.
//
// Parameters:
//   - options: the renderer options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithClustererOptions passes options through to light.NewClusterer.
//
// Parameters:
//   - options: the clusterer options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClustererOptions(options ...light.ClustererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.clustererOptions = append(e.clustererOptions, options...)
	}
}

// WithShaderDir loads the geometry and resolve sources from dir, falling back to the
// embedded source for any file dir lacks. With hotReload the directory is watched and
// changes are reloaded between frames.
//
// Parameters:
//   - dir: the shader directory
//   - hotReload: true to watch dir
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderDir(dir string, hotReload bool) EngineBuilderOption {
	return func(e *engine) {
		e.shaderDir = dir
		e.hotReload = hotReload
	}
}

// withReleaseHook registers cleanup run by Release after the engine's own components.
func withReleaseHook(fn func()) EngineBuilderOption {
	return func(e *engine) {
		e.releaseHooks = append(e.releaseHooks, fn)
	}
}
