package scene

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceVisitor records the visit stream as short strings.
type traceVisitor struct {
	calls []string
}

func (v *traceVisitor) VisitNode(set *binding.Set) error {
	v.calls = append(v.calls, "node:"+set.Layout().Name())
	return nil
}

func (v *traceVisitor) VisitMaterial(set *binding.Set) error {
	v.calls = append(v.calls, "material:"+set.Label())
	return nil
}

func (v *traceVisitor) VisitPrimitive(vertex, index backend.Buffer, indexCount uint32) error {
	v.calls = append(v.calls, fmt.Sprintf("primitive:%s:%d", vertex.Label(), indexCount))
	return nil
}

func newModel(t *testing.T, dev backend.Backend) model.Model {
	t.Helper()
	quad, err := model.NewMesh(dev, model.Quad(1, 1))
	require.NoError(t, err)
	cube, err := model.NewMesh(dev, model.Cube(1))
	require.NoError(t, err)
	plane, err := model.NewMesh(dev, model.Plane(1, 1))
	require.NoError(t, err)
	red := material.NewMaterial(material.WithName("red"))
	blue := material.NewMaterial(material.WithName("blue"))
	return model.NewModel(
		model.WithName("mixed"),
		model.WithPrimitive(quad, red),
		model.WithPrimitive(cube, blue),
		model.WithPrimitive(plane, red),
	)
}

func TestScene_FlushAndIterate(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	s := NewScene(WithName("test"), WithWorkers(1))
	defer s.Release()

	mdl := newModel(t, dev)
	n, err := s.AddNode(mdl, WithNodeName("a"), WithTransform(model.Transform{Translation: [3]float32{1, 2, 3}, Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, err)
	assert.Equal(t, "a", n.Name())
	assert.Same(t, n, s.Node(n.ID()))

	v := &traceVisitor{}
	assert.ErrorIs(t, s.Iterate(v), ErrNotFlushed)

	require.NoError(t, s.Flush(dev))
	set := n.Bindings()
	require.NotNil(t, set)
	assert.Same(t, contract.Model, set.Layout())
	u, err := dev.ReadBuffer(set.Resource(0).Buffer())
	require.NoError(t, err)
	assert.Equal(t, float32(2), backend.Float32At(u, 13*4))

	require.NoError(t, s.Iterate(v))
	assert.Equal(t, []string{
		"node:" + contract.Model.Name(),
		"material:red Bind Group",
		"primitive:quad Vertex Buffer:6",
		"primitive:plane Vertex Buffer:6",
		"material:blue Bind Group",
		"primitive:cube Vertex Buffer:36",
	}, v.calls)

	n.SetTranslation(0, 5, 0)
	require.NoError(t, s.Flush(dev))
	assert.Same(t, set, n.Bindings())
	u, err = dev.ReadBuffer(set.Resource(0).Buffer())
	require.NoError(t, err)
	assert.Equal(t, float32(5), backend.Float32At(u, 13*4))
}

func TestScene_Visibility(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	s := NewScene()
	mdl := newModel(t, dev)
	hidden, err := s.AddNode(mdl, WithVisible(false))
	require.NoError(t, err)
	require.NoError(t, s.Flush(dev))

	v := &traceVisitor{}
	require.NoError(t, s.Iterate(v))
	assert.Empty(t, v.calls)

	hidden.SetVisible(true)
	require.NoError(t, s.Iterate(v))
	assert.Len(t, v.calls, 6)
}

func TestScene_RemoveNode(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	s := NewScene()
	mdl := newModel(t, dev)
	a, err := s.AddNode(mdl)
	require.NoError(t, err)
	b, err := s.AddNode(mdl)
	require.NoError(t, err)
	require.NoError(t, s.Flush(dev))

	assert.True(t, s.RemoveNode(a.ID()))
	assert.False(t, s.RemoveNode(a.ID()))
	assert.Nil(t, a.Bindings())
	assert.Nil(t, s.Node(a.ID()))
	require.Len(t, s.Nodes(), 1)
	assert.Equal(t, b.ID(), s.Nodes()[0].ID())
	assert.NotNil(t, mdl.Materials()[0].Bindings())
}

func TestScene_InvalidModel(t *testing.T) {
	s := NewScene()
	_, err := s.AddNode(nil)
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = s.AddNode(model.NewModel(model.WithPrimitive(nil, material.NewMaterial())))
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Empty(t, s.Nodes())
}

func TestScene_ParallelStaging(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	s := NewScene(WithWorkers(4))
	mdl := newModel(t, dev)

	nodes := make([]Node, parallelStageThreshold+7)
	for i := range nodes {
		var err error
		nodes[i], err = s.AddNode(mdl, WithTransform(model.Transform{Translation: [3]float32{float32(i), 0, 0}, Scale: [3]float32{1, 1, 1}}))
		require.NoError(t, err)
	}
	require.NoError(t, s.Flush(dev))

	for i, n := range nodes {
		u, err := dev.ReadBuffer(n.Bindings().Resource(0).Buffer())
		require.NoError(t, err)
		assert.Equal(t, float32(i), backend.Float32At(u, 12*4), "node %d", i)
	}
}

func TestScene_Lights(t *testing.T) {
	a := light.NewLight(light.LightTypePoint)
	b := light.NewLight(light.LightTypeSpot)
	s := NewScene(WithLights(a, nil))
	s.AddLight(b)
	s.AddLight(nil)
	assert.Equal(t, []light.Light{a, b}, s.Lights())

	assert.True(t, s.RemoveLight(a))
	assert.False(t, s.RemoveLight(a))
	assert.Equal(t, []light.Light{b}, s.Lights())
}
