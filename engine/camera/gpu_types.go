package camera

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
)

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches contract.CameraWGSL exactly.
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset   0: combined view-projection matrix
	View           [16]float32 // offset  64: world to view matrix
	InvProj        [16]float32 // offset 128: inverse projection matrix
	CameraPosition [3]float32  // offset 192: world-space eye position
	Near           float32     // offset 204
	Resolution     [2]float32  // offset 208: output size in pixels
	Far            float32     // offset 216
	_pad           float32     // offset 220: padding to 224 bytes
}

var _ [contract.CameraUniformSize]byte = [unsafe.Sizeof(GPUCameraUniform{})]byte{}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (224)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	for i := range 16 {
		put(i*4, g.ViewProj[i])
		put(64+i*4, g.View[i])
		put(128+i*4, g.InvProj[i])
	}
	for i := range 3 {
		put(192+i*4, g.CameraPosition[i])
	}
	put(204, g.Near)
	put(208, g.Resolution[0])
	put(212, g.Resolution[1])
	put(216, g.Far)
	return buf
}
