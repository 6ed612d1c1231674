package gbuffer

import "github.com/cogentcore/webgpu/wgpu"

// SurfaceOption configures a Surface during construction.
type SurfaceOption func(*Surface)

// WithFormats replaces every target format at once.
//
// Parameters:
//   - formats: the formats to use
//
// Returns:
//   - SurfaceOption: a function that applies the formats to a Surface
func WithFormats(formats Formats) SurfaceOption {
	return func(s *Surface) {
		s.formats = formats
	}
}

// WithPositionFormat sets the position target format.
//
// Parameters:
//   - format: a filterable color format
//
// Returns:
//   - SurfaceOption: a function that applies the format to a Surface
func WithPositionFormat(format wgpu.TextureFormat) SurfaceOption {
	return func(s *Surface) {
		s.formats.Position = format
	}
}

// WithNormalFormat sets the normal target format.
//
// Parameters:
//   - format: a filterable color format
//
// Returns:
//   - SurfaceOption: a function that applies the format to a Surface
func WithNormalFormat(format wgpu.TextureFormat) SurfaceOption {
	return func(s *Surface) {
		s.formats.Normal = format
	}
}

// WithAlbedoFormat sets the albedo target format.
//
// Parameters:
//   - format: a filterable color format
//
// Returns:
//   - SurfaceOption: a function that applies the format to a Surface
func WithAlbedoFormat(format wgpu.TextureFormat) SurfaceOption {
	return func(s *Surface) {
		s.formats.Albedo = format
	}
}

// WithDepthFormat sets the depth target format.
//
// Parameters:
//   - format: depth24plus or depth32float
//
// Returns:
//   - SurfaceOption: a function that applies the format to a Surface
func WithDepthFormat(format wgpu.TextureFormat) SurfaceOption {
	return func(s *Surface) {
		s.formats.Depth = format
	}
}
