package backend

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// SupportedSoftwareFormats lists the texture formats the software backend can allocate.
var SupportedSoftwareFormats = []wgpu.TextureFormat{
	wgpu.TextureFormatRGBA8Unorm,
	wgpu.TextureFormatRGBA8UnormSrgb,
	wgpu.TextureFormatBGRA8Unorm,
	wgpu.TextureFormatRGBA16Float,
	wgpu.TextureFormatRGBA32Float,
	wgpu.TextureFormatDepth24Plus,
	wgpu.TextureFormatDepth32Float,
}

func softwareFormatSupported(f wgpu.TextureFormat) bool {
	for _, s := range SupportedSoftwareFormats {
		if s == f {
			return true
		}
	}
	return false
}

// IsDepthFormat reports whether f is a depth format.
func IsDepthFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatDepth16Unorm, wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float, wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

// quantize rounds a texel to the precision the format stores.
func quantize(f wgpu.TextureFormat, v [4]float32) [4]float32 {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm:
		for i := range v {
			v[i] = roundNearest(common.Clamp(v[i], 0, 1)*255) / 255
		}
	case wgpu.TextureFormatRGBA16Float:
		for i := range v {
			v[i] = roundHalf(v[i])
		}
	case wgpu.TextureFormatDepth24Plus:
		v[0] = roundNearest(common.Clamp(v[0], 0, 1)*16777215) / 16777215
	case wgpu.TextureFormatDepth32Float:
		v[0] = common.Clamp(v[0], 0, 1)
	}
	return v
}

// roundHalf rounds v to the nearest IEEE 754 binary16 value.
func roundHalf(v float32) float32 {
	if v == 0 || v != v || math32.IsInf(v, 0) {
		return v
	}
	abs := math32.Abs(v)
	if abs > 65504 {
		if v < 0 {
			return math32.Inf(-1)
		}
		return math32.Inf(1)
	}
	step := float32(1.0 / 16777216)
	if abs >= 6.1035156e-05 {
		_, exp := math32.Frexp(abs)
		step = math32.Ldexp(1, exp-11)
	}
	r := roundNearest(abs/step) * step
	if v < 0 {
		return -r
	}
	return r
}

// roundNearest rounds a non-negative value half up.
func roundNearest(v float32) float32 {
	return math32.Floor(v + 0.5)
}

func wrapCoord(i, size int, mode wgpu.AddressMode) int {
	switch mode {
	case wgpu.AddressModeClampToEdge:
		return min(max(i, 0), size-1)
	case wgpu.AddressModeMirrorRepeat:
		period := size * 2
		i %= period
		if i < 0 {
			i += period
		}
		if i >= size {
			i = period - 1 - i
		}
		return i
	default:
		i %= size
		if i < 0 {
			i += size
		}
		return i
	}
}

func lerp4(a, b [4]float32, t float32) [4]float32 {
	return [4]float32{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
		a[3] + (b[3]-a[3])*t,
	}
}

// Float32At decodes a little-endian float32 at byte offset off.
func Float32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// Uint32At decodes a little-endian uint32 at byte offset off.
func Uint32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

// PutUint32 encodes v little-endian at byte offset off.
func PutUint32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

// Vec3At decodes three consecutive float32 values at byte offset off.
func Vec3At(b []byte, off int) [3]float32 {
	return [3]float32{Float32At(b, off), Float32At(b, off+4), Float32At(b, off+8)}
}

// Mat4At decodes a column-major 4x4 float32 matrix at byte offset off.
func Mat4At(b []byte, off int) [16]float32 {
	var m [16]float32
	for i := range m {
		m[i] = Float32At(b, off+i*4)
	}
	return m
}
