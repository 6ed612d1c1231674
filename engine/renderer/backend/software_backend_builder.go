package backend

import "github.com/cogentcore/webgpu/wgpu"

// SoftwareBackendOption configures the software backend.
type SoftwareBackendOption func(*softwareBackendImpl)

// WithWorkers sets the number of rasterizer workers.
//
// Parameters:
//   - n: the worker count; values below 1 use one worker
//
// Returns:
//   - SoftwareBackendOption: a function that applies the option
func WithWorkers(n int) SoftwareBackendOption {
	return func(b *softwareBackendImpl) {
		b.workers = n
	}
}

// WithBandHeight sets the number of rows each rasterizer task shades.
//
// Parameters:
//   - rows: the band height in rows
//
// Returns:
//   - SoftwareBackendOption: a function that applies the option
func WithBandHeight(rows int) SoftwareBackendOption {
	return func(b *softwareBackendImpl) {
		if rows > 0 {
			b.bandHeight = rows
		}
	}
}

// WithOutputFormat sets the format of the output image.
//
// Parameters:
//   - format: a color format from SupportedSoftwareFormats
//
// Returns:
//   - SoftwareBackendOption: a function that applies the option
func WithOutputFormat(format wgpu.TextureFormat) SoftwareBackendOption {
	return func(b *softwareBackendImpl) {
		if softwareFormatSupported(format) && !IsDepthFormat(format) {
			b.outputFormat = format
		}
	}
}
