package backend

import "github.com/cogentcore/webgpu/wgpu"

// WGPUBackendOption configures the WebGPU backend before the device is requested.
type WGPUBackendOption func(*wgpuBackendImpl)

// WithForceFallbackAdapter requests the software fallback adapter from wgpu-native.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - WGPUBackendOption: a function that applies the option
func WithForceFallbackAdapter(force bool) WGPUBackendOption {
	return func(b *wgpuBackendImpl) {
		b.forceFallbackAdapter = force
	}
}

// WithWGPUPresentMode sets the initial present mode.
//
// Parameters:
//   - mode: the PresentMode to start with
//
// Returns:
//   - WGPUBackendOption: a function that applies the option
func WithWGPUPresentMode(mode PresentMode) WGPUBackendOption {
	return func(b *wgpuBackendImpl) {
		b.presentMode = toWGPUPresentMode(mode)
	}
}

func toWGPUPresentMode(mode PresentMode) wgpu.PresentMode {
	if mode == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}
