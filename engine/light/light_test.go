package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatAt(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

// passRecorder records each dispatch as its own compute pass on enc.
type passRecorder struct {
	dev backend.Backend
	enc backend.CommandEncoder
}

func (r *passRecorder) Dispatch(label string, p pipeline.Pipeline, sets []*binding.Set, workgroups [3]uint32) error {
	pass, err := r.enc.BeginComputePass(label)
	if err != nil {
		return err
	}
	pass.SetPipeline(p.ComputePipeline())
	for i, s := range sets {
		g, err := s.BindGroup(r.dev)
		if err != nil {
			return err
		}
		pass.SetBindGroup(uint32(i), g)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	return pass.End()
}

func TestGPULight_Marshal(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithPosition(1, 2, 3),
		WithRange(7),
		WithColor(0.5, 0.25, 1),
		WithIntensity(4),
		WithDirection(0, 0, -2),
	)
	g := l.GPU()
	buf := g.Marshal()

	require.Len(t, buf, contract.LightSize)
	assert.Equal(t, float32(3), floatAt(buf, 8))
	assert.Equal(t, float32(7), floatAt(buf, 12))
	assert.Equal(t, float32(0.25), floatAt(buf, 20))
	assert.Equal(t, float32(4), floatAt(buf, 28))
	assert.Equal(t, float32(-1), floatAt(buf, 40))
	assert.Equal(t, uint32(LightTypeSpot), binary.LittleEndian.Uint32(buf[44:]))
	assert.InDelta(t, 0.9063, floatAt(buf, 48), 1e-4)
	assert.InDelta(t, 0.8192, floatAt(buf, 52), 1e-4)
	assert.Equal(t, g, UnmarshalGPULight(buf))
}

func TestMarshalLightSet(t *testing.T) {
	lights := []Light{
		NewLight(LightTypePoint, WithPosition(1, 0, 0)),
		NewLight(LightTypePoint, WithEnabled(false)),
		nil,
		NewLight(LightTypeSpot, WithPosition(0, 2, 0)),
	}
	buf, n := MarshalLightSet([3]float32{0.1, 0.2, 0.3}, lights)

	assert.Equal(t, 2, n)
	require.Len(t, buf, contract.LightSetHeaderSize+2*contract.LightSize)
	assert.Equal(t, float32(0.2), floatAt(buf, 4))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, [3]float32{1, 0, 0}, UnmarshalGPULight(buf[16:]).Position)
	assert.Equal(t, uint32(LightTypeSpot), UnmarshalGPULight(buf[16+64:]).Kind)

	empty, n := MarshalLightSet([3]float32{}, nil)
	assert.Zero(t, n)
	assert.Len(t, empty, contract.LightSetHeaderSize+contract.LightSize)
}

func TestClusterGrid_Layout(t *testing.T) {
	g := DefaultClusterGrid()
	require.NoError(t, g.Validate())
	assert.Equal(t, uint32(16*9*24), g.Count())
	assert.Equal(t, uint64(16+16*9*24*129*4), g.BufferSize())
	assert.Equal(t, [3]uint32{4, 3, 6}, g.Workgroups())
	assert.Equal(t, uint32(3+2*16+1*16*9), g.Index(3, 2, 1))
	assert.Equal(t, g, ReadClusterGrid(g.MarshalHeader()))

	assert.ErrorIs(t, ClusterGrid{X: 1, Y: 1, Z: 0, MaxLightsPerCluster: 1}.Validate(), ErrInvalidGrid)
	assert.ErrorIs(t, ClusterGrid{X: 1, Y: 1, Z: 1}.Validate(), ErrInvalidGrid)
}

func TestClusterGrid_Slices(t *testing.T) {
	g := DefaultClusterGrid()
	near, far := float32(0.1), float32(100)

	assert.InDelta(t, near, SliceDepth(0, g.Z, near, far), 1e-6)
	assert.InDelta(t, far, SliceDepth(g.Z, g.Z, near, far), 1e-3)
	assert.Equal(t, uint32(0), g.Slice(0.01, near, far))
	assert.Equal(t, g.Z-1, g.Slice(1000, near, far))
	for k := range g.Z {
		mid := (SliceDepth(k, g.Z, near, far) + SliceDepth(k+1, g.Z, near, far)) / 2
		assert.Equal(t, k, g.Slice(mid, near, far), "slice %d", k)
	}

	assert.Equal(t, uint32(0), g.ClusterAt(0.5, 0.5, 160, 90, 0.1, near, far))
	assert.Equal(t, g.Index(15, 8, 0), g.ClusterAt(159.5, 89.5, 160, 90, 0.1, near, far))
}

func TestClusterGrid_Assign(t *testing.T) {
	cam := camera.NewCamera(camera.WithViewport(160, 90), camera.WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	u := cam.Uniform()
	g := DefaultClusterGrid()
	lights := []GPULight{
		{Position: [3]float32{0, 0, 0}, Range: 1},
		{Position: [3]float32{0, 0, 200}, Range: 1},
	}

	buf := make([]byte, g.BufferSize())
	copy(buf, g.MarshalHeader())
	g.Assign(buf, u.View, u.InvProj, u.Near, u.Far, lights)

	center := g.ClusterAt(80, 45, 160, 90, 5, u.Near, u.Far)
	assert.Equal(t, []uint32{0}, g.Lights(buf, center))
	assert.Empty(t, g.Lights(buf, g.Index(0, 0, 0)))
	assert.Empty(t, g.Lights(buf, g.Index(0, 0, g.Z-1)))
	for i := range g.Count() {
		assert.NotContains(t, g.Lights(buf, i), uint32(1))
	}
}

func TestClusterGrid_AssignOverflow(t *testing.T) {
	cam := camera.NewCamera(camera.WithViewport(64, 64), camera.WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	u := cam.Uniform()
	g := ClusterGrid{X: 2, Y: 2, Z: 4, MaxLightsPerCluster: 2}
	lights := make([]GPULight, 5)
	for i := range lights {
		lights[i] = GPULight{Range: 2}
	}

	buf := make([]byte, g.BufferSize())
	g.Assign(buf, u.View, u.InvProj, u.Near, u.Far, lights)

	center := g.ClusterAt(32, 32, 64, 64, 5, u.Near, u.Far)
	assert.Equal(t, []uint32{0, 1}, g.Lights(buf, center))
}

func newClusterer(t *testing.T, opts ...ClustererBuilderOption) (backend.SoftwareBackend, camera.Camera, Clusterer) {
	t.Helper()
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	cam := camera.NewCamera(camera.WithViewport(160, 90), camera.WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	c, err := NewClusterer(dev, cam, append([]ClustererBuilderOption{WithShaderValidation(false)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return dev, cam, c
}

func TestClusterer_DoLightClustering(t *testing.T) {
	dev, cam, c := newClusterer(t, WithAmbient(0.1, 0.1, 0.1))
	require.NoError(t, cam.Flush(dev))
	require.NoError(t, c.Update([]Light{NewLight(LightTypePoint, WithRange(1))}))
	assert.Equal(t, 1, c.LightCount())

	enc, err := dev.CreateCommandEncoder("test")
	require.NoError(t, err)
	require.NoError(t, c.DoLightClustering(&passRecorder{dev: dev, enc: enc}))
	cb, err := enc.Finish()
	require.NoError(t, err)
	dev.Submit(cb)

	passes := dev.LastSubmission()
	require.Len(t, passes, 1)
	assert.True(t, passes[0].Compute)
	assert.Equal(t, 1, passes[0].Dispatches)

	buf, err := dev.ReadBuffer(c.ClusterBuffer())
	require.NoError(t, err)
	g := c.Grid()
	assert.Equal(t, g, ReadClusterGrid(buf))
	center := g.ClusterAt(80, 45, 160, 90, 5, cam.Near(), cam.Far())
	assert.Equal(t, []uint32{0}, g.Lights(buf, center))

	lightsBuf, err := dev.ReadBuffer(c.LightBuffer())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, floatAt(lightsBuf, 0), 1e-6)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(lightsBuf[12:]))
}

func TestNewClusterer_DefaultOptions(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	cam := camera.NewCamera()
	c, err := NewClusterer(dev, cam)
	require.NoError(t, err)
	defer c.Release()
	assert.Equal(t, DefaultClusterGrid(), c.Grid())
	assert.NotNil(t, c.Pipeline())

	// The smallest grid still satisfies the layout's minimum binding size.
	tiny := ClusterGrid{X: 1, Y: 1, Z: 1, MaxLightsPerCluster: 1}
	assert.Equal(t, uint64(contract.ClusterSetMinSize), tiny.BufferSize())
	small, err := NewClusterer(dev, cam, WithGrid(tiny))
	require.NoError(t, err)
	defer small.Release()
	assert.Equal(t, uint64(contract.ClusterSetMinSize), small.ClusterBuffer().Size())
}

func TestClusterer_Errors(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	cam := camera.NewCamera()
	_, err := NewClusterer(dev, cam, WithGrid(ClusterGrid{X: 4, Y: 4, Z: 4}))
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, _, c := newClusterer(t, WithMaxLights(1))
	err = c.Update([]Light{NewLight(LightTypePoint), NewLight(LightTypePoint)})
	assert.ErrorIs(t, err, ErrTooManyLights)
	require.NoError(t, c.Update([]Light{NewLight(LightTypePoint), NewLight(LightTypePoint, WithEnabled(false))}))

	enc, err := dev.CreateCommandEncoder("test")
	require.NoError(t, err)
	defer enc.Release()
	err = c.DoLightClustering(&passRecorder{dev: dev, enc: enc})
	assert.ErrorIs(t, err, binding.ErrNilResource)
}
