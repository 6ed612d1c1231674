package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via New.
type RendererBuilderOption func(*renderer)

// WithSize sets the initial output and G-buffer size. The default is the backend's
// configured output size.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.width, r.height = width, height
	}
}

// WithFormats sets the G-buffer target formats.
//
// Parameters:
//   - formats: the position, normal, albedo and depth formats
//
// Returns:
//   - RendererBuilderOption: a function that applies the formats option to a renderer
func WithFormats(formats gbuffer.Formats) RendererBuilderOption {
	return func(r *renderer) {
		r.formats = formats
	}
}

// WithShaderValidation enables or disables the WGSL parse check run before pipeline
// creation. It is enabled by default.
//
// Parameters:
//   - enabled: true to validate shader sources
//
// Returns:
//   - RendererBuilderOption: a function that applies the validation option to a renderer
func WithShaderValidation(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validate = enabled
	}
}

// WithShaderSources replaces the embedded stage sources used at construction.
//
// Parameters:
//   - sources: the stage sources
//
// Returns:
//   - RendererBuilderOption: a function that applies the sources option to a renderer
func WithShaderSources(sources ShaderSources) RendererBuilderOption {
	return func(r *renderer) {
		r.sources = &sources
	}
}

// WithCullMode sets the face culling of the geometry pipeline. The default is no culling.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - RendererBuilderOption: a function that applies the cull mode option to a renderer
func WithCullMode(mode wgpu.CullMode) RendererBuilderOption {
	return func(r *renderer) {
		r.cullMode = mode
	}
}

// WithPresent sets whether Draw presents the output after submitting. It is enabled by
// default. When disabled the caller presents before the next Draw.
//
// Parameters:
//   - present: true to present every submitted frame
//
// Returns:
//   - RendererBuilderOption: a function that applies the present option to a renderer
func WithPresent(present bool) RendererBuilderOption {
	return func(r *renderer) {
		r.present = present
	}
}
