package gbuffer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrUnsupportedFormat is returned when a target is configured with a format it cannot use.
	ErrUnsupportedFormat = errors.New("gbuffer: unsupported target format")

	// ErrInvalidSize is returned when a target set is requested with a zero dimension.
	ErrInvalidSize = errors.New("gbuffer: invalid target size")
)

// formatNames maps WebGPU format names to formats. Only formats a G-buffer can use are listed.
var formatNames = map[string]wgpu.TextureFormat{
	"rgba8unorm":      wgpu.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": wgpu.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      wgpu.TextureFormatBGRA8Unorm,
	"rgba16float":     wgpu.TextureFormatRGBA16Float,
	"depth24plus":     wgpu.TextureFormatDepth24Plus,
	"depth32float":    wgpu.TextureFormatDepth32Float,
}

// ParseFormat maps a WebGPU texture format name such as "rgba16float" to its format.
//
// Parameters:
//   - name: the format name, case insensitive
//
// Returns:
//   - wgpu.TextureFormat: the format
//   - error: ErrUnsupportedFormat if the name is unknown
func ParseFormat(name string) (wgpu.TextureFormat, error) {
	f, ok := formatNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// FormatName returns the WebGPU name of f, or its numeric value if it has none here.
func FormatName(f wgpu.TextureFormat) string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

func isColorFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatRGBA16Float:
		return true
	}
	return false
}

// isFloatFormat reports whether f stores floating point channels, as position and normal
// data needs.
func isFloatFormat(f wgpu.TextureFormat) bool {
	return f == wgpu.TextureFormatRGBA16Float
}

func isDepthFormat(f wgpu.TextureFormat) bool {
	return f == wgpu.TextureFormatDepth24Plus || f == wgpu.TextureFormatDepth32Float
}

// Formats selects the format of every target in a set.
type Formats struct {
	Position wgpu.TextureFormat
	Normal   wgpu.TextureFormat
	Albedo   wgpu.TextureFormat
	Depth    wgpu.TextureFormat
}

// DefaultFormats returns rgba16float position and normal, rgba8unorm albedo and depth24plus depth.
func DefaultFormats() Formats {
	return Formats{
		Position: wgpu.TextureFormatRGBA16Float,
		Normal:   wgpu.TextureFormatRGBA16Float,
		Albedo:   wgpu.TextureFormatRGBA8Unorm,
		Depth:    wgpu.TextureFormatDepth24Plus,
	}
}

// Color returns the color target formats in attachment order.
func (f Formats) Color() []wgpu.TextureFormat {
	return []wgpu.TextureFormat{f.Position, f.Normal, f.Albedo}
}

// Validate checks that every color target uses a filterable color format, that position
// and normal use a float format, and that the depth target uses a depth format.
func (f Formats) Validate() error {
	for i, c := range f.Color() {
		if !isColorFormat(c) {
			return fmt.Errorf("%w: %s target uses %s", ErrUnsupportedFormat, Role(i), FormatName(c))
		}
	}
	for i, c := range []wgpu.TextureFormat{f.Position, f.Normal} {
		if !isFloatFormat(c) {
			return fmt.Errorf("%w: %s target needs a float format, got %s", ErrUnsupportedFormat, Role(i), FormatName(c))
		}
	}
	if !isDepthFormat(f.Depth) {
		return fmt.Errorf("%w: depth target uses %s", ErrUnsupportedFormat, FormatName(f.Depth))
	}
	return nil
}
