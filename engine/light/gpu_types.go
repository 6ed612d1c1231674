package light

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
)

// GPULight is the GPU-aligned representation of a single light source.
// Matches the Light struct of contract.LightWGSL exactly.
type GPULight struct {
	Position  [3]float32 // offset  0: world-space position
	Range     float32    // offset 12: attenuation cutoff distance
	Color     [3]float32 // offset 16: RGB color
	Intensity float32    // offset 28: scalar multiplier
	Direction [3]float32 // offset 32: normalized cone axis (spot)
	Kind      uint32     // offset 44: 0 = point, 1 = spot
	InnerCos  float32    // offset 48: cos(inner half-angle) for spot
	OuterCos  float32    // offset 52: cos(outer half-angle) for spot
	_pad      [2]float32 // offset 56: padding to 64 bytes
}

var _ [contract.LightSize]byte = [unsafe.Sizeof(GPULight{})]byte{}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, contract.LightSize)
	g.put(buf)
	return buf
}

func (g *GPULight) put(buf []byte) {
	le := binary.LittleEndian
	for i := range 3 {
		le.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
		le.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
		le.PutUint32(buf[32+i*4:], math.Float32bits(g.Direction[i]))
	}
	le.PutUint32(buf[12:], math.Float32bits(g.Range))
	le.PutUint32(buf[28:], math.Float32bits(g.Intensity))
	le.PutUint32(buf[44:], g.Kind)
	le.PutUint32(buf[48:], math.Float32bits(g.InnerCos))
	le.PutUint32(buf[52:], math.Float32bits(g.OuterCos))
}

// UnmarshalGPULight decodes a light from its GPU layout.
//
// Parameters:
//   - buf: at least LightSize bytes
//
// Returns:
//   - GPULight: the decoded light
func UnmarshalGPULight(buf []byte) GPULight {
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(buf[off:])) }
	return GPULight{
		Position:  [3]float32{f(0), f(4), f(8)},
		Range:     f(12),
		Color:     [3]float32{f(16), f(20), f(24)},
		Intensity: f(28),
		Direction: [3]float32{f(32), f(36), f(40)},
		Kind:      le.Uint32(buf[44:]),
		InnerCos:  f(48),
		OuterCos:  f(52),
	}
}

// GPULightHeader is the header prepended to the light storage buffer.
// Matches the LightSet struct of contract.LightWGSL up to its light array.
type GPULightHeader struct {
	AmbientColor [3]float32 // offset  0: scene ambient RGB
	LightCount   uint32     // offset 12: number of lights following the header
}

var _ [contract.LightSetHeaderSize]byte = [unsafe.Sizeof(GPULightHeader{})]byte{}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, contract.LightSetHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// LightSetSize returns the byte size of a light list holding capacity lights. A list
// always has room for at least one light so it satisfies the binding minimum.
//
// Parameters:
//   - capacity: the number of lights
//
// Returns:
//   - uint64: the buffer size in bytes
func LightSetSize(capacity int) uint64 {
	return uint64(contract.LightSetHeaderSize + max(capacity, 1)*contract.LightSize)
}

// MarshalLightSet serializes the ambient color and the enabled lights into the light list
// layout: the header followed by one GPULight per enabled light.
//
// Parameters:
//   - ambient: the ambient RGB color
//   - lights: the lights to pack; disabled and nil lights are skipped
//
// Returns:
//   - []byte: the serialized list, at least LightSetSize(0) bytes
//   - int: the number of lights written
func MarshalLightSet(ambient [3]float32, lights []Light) ([]byte, int) {
	packed := make([]GPULight, 0, len(lights))
	for _, l := range lights {
		if l == nil || !l.Enabled() {
			continue
		}
		packed = append(packed, l.GPU())
	}

	buf := make([]byte, LightSetSize(len(packed)))
	header := GPULightHeader{AmbientColor: ambient, LightCount: uint32(len(packed))}
	copy(buf, header.Marshal())
	for i := range packed {
		packed[i].put(buf[contract.LightSetHeaderSize+i*contract.LightSize:])
	}
	return buf, len(packed)
}
