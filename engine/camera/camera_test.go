package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatAt(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestGPUCameraUniform_Marshal(t *testing.T) {
	c := NewCamera(WithViewport(800, 600), WithClipPlanes(0.5, 50), WithLookAt([3]float32{1, 2, 3}, [3]float32{0, 0, 0}))
	u := c.Uniform()
	buf := u.Marshal()

	require.Len(t, buf, contract.CameraUniformSize)
	assert.Equal(t, u.ViewProj[5], floatAt(buf, 5*4))
	assert.Equal(t, u.View[12], floatAt(buf, 64+12*4))
	assert.Equal(t, u.InvProj[0], floatAt(buf, 128))
	assert.Equal(t, float32(2), floatAt(buf, 196))
	assert.Equal(t, float32(0.5), floatAt(buf, 204))
	assert.Equal(t, float32(800), floatAt(buf, 208))
	assert.Equal(t, float32(600), floatAt(buf, 212))
	assert.Equal(t, float32(50), floatAt(buf, 216))
}

func TestCamera_ProjectsTargetToCenter(t *testing.T) {
	c := NewCamera(WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	vp := c.ViewProjectionMatrix()
	clip := common.MulVec4(vp[:], [4]float32{0, 0, 0, 1})
	require.Greater(t, clip[3], float32(0))
	assert.InDelta(t, 0, clip[0]/clip[3], 1e-5)
	assert.InDelta(t, 0, clip[1]/clip[3], 1e-5)
	depth := clip[2] / clip[3]
	assert.Greater(t, depth, float32(0))
	assert.Less(t, depth, float32(1))

	view := c.ViewMatrix()
	p := common.MulVec4(view[:], [4]float32{0, 0, 0, 1})
	assert.InDelta(t, -5, p[2], 1e-5)
}

func TestCamera_SetViewport(t *testing.T) {
	c := NewCamera()
	before := c.ProjectionMatrix()
	c.SetViewport(1920, 1080)

	w, h := c.Viewport()
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)
	assert.InDelta(t, 1920.0/1080.0, c.Aspect(), 1e-6)
	assert.NotEqual(t, before, c.ProjectionMatrix())
	assert.Equal(t, [2]float32{1920, 1080}, c.Uniform().Resolution)
}

func TestCamera_Controller(t *testing.T) {
	ctrl := NewOrbitController(WithTarget(1, 0, 0), WithRadius(4), WithAngles(0, 0))
	c := NewCamera(WithController(ctrl))
	p := c.Position()
	assert.InDeltaSlice(t, []float32{1, 0, 4}, p[:], 1e-5)

	ctrl.Zoom(1)
	c.Update()
	p = c.Position()
	assert.InDeltaSlice(t, []float32{1, 0, 3}, p[:], 1e-5)

	ctrl.Zoom(100)
	assert.InDelta(t, 0.5, common.Length3(common.Sub3(ctrl.Position(), ctrl.Target())), 1e-5)

	ctrl.Orbit(0, 1000)
	assert.Less(t, ctrl.Position()[1]-ctrl.Target()[1], float32(0.5))

	ctrl.Pan(1, 0)
	assert.NotEqual(t, [3]float32{1, 0, 0}, ctrl.Target())
}

func TestCamera_Flush(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	c := NewCamera()
	assert.Nil(t, c.Buffer())

	require.NoError(t, c.Flush(dev))
	buf := c.Buffer()
	require.NotNil(t, buf)
	assert.Equal(t, uint64(contract.CameraUniformSize), buf.Size())
	assert.NotZero(t, buf.Usage()&wgpu.BufferUsageUniform)

	require.NoError(t, c.Flush(dev))
	assert.Same(t, buf, c.Buffer())

	c.Release()
	assert.Nil(t, c.Buffer())
}
