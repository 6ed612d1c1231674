package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev       backend.SoftwareBackend
	cam       camera.Camera
	clusterer light.Clusterer
	scene     scene.Scene
	renderer  Renderer
}

func newFixture(t *testing.T, width, height uint32, traversal SceneTraversal) *fixture {
	t.Helper()
	f := &fixture{
		dev:   backend.NewSoftwareBackend(backend.WithWorkers(1)),
		scene: scene.NewScene(scene.WithWorkers(1)),
	}
	f.cam = camera.NewCamera(camera.WithViewport(width, height), camera.WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	require.NoError(t, f.cam.Flush(f.dev))

	var err error
	f.clusterer, err = light.NewClusterer(f.dev, f.cam, light.WithShaderValidation(false))
	require.NoError(t, err)
	if traversal == nil {
		traversal = f.scene
	}
	f.renderer, err = New(f.dev, f.cam, f.clusterer, traversal, WithSize(width, height), WithShaderValidation(false))
	require.NoError(t, err)

	t.Cleanup(func() {
		f.renderer.Release()
		f.scene.Release()
		f.clusterer.Release()
		f.cam.Release()
	})
	return f
}

// sync uploads camera, nodes and lights the way the engine loop does before a Draw.
func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.cam.Flush(f.dev))
	require.NoError(t, f.scene.Flush(f.dev))
	require.NoError(t, f.clusterer.Update(f.scene.Lights()))
}

func (f *fixture) texel(t *testing.T, x, y int) [4]float32 {
	t.Helper()
	view := f.dev.Presented()
	require.NotNil(t, view)
	rb, ok := view.(backend.Readback)
	require.True(t, ok)
	c, err := rb.ReadTexel(x, y)
	require.NoError(t, err)
	return c
}

func addQuad(t *testing.T, f *fixture, size float32) {
	t.Helper()
	mesh, err := model.NewMesh(f.dev, model.Quad(size, size))
	require.NoError(t, err)
	mdl := model.NewModel(model.WithName("wall"), model.WithPrimitive(mesh, material.NewMaterial(material.WithName("white"))))
	_, err = f.scene.AddNode(mdl)
	require.NoError(t, err)
}

func TestRenderer_EmptyScene(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	f.sync(t)

	require.NoError(t, f.renderer.Draw())
	assert.Equal(t, uint64(1), f.renderer.Frames())
	assert.Equal(t, StateIdle, f.renderer.State())
	assert.Zero(t, f.renderer.LastDrawCount())
	assert.Equal(t, uint64(1), f.dev.PresentCount())

	passes := f.dev.LastSubmission()
	require.Len(t, passes, 3)
	assert.Equal(t, "Light Clustering Pass", passes[0].Label)
	assert.True(t, passes[0].Compute)
	assert.Equal(t, 1, passes[0].Dispatches)
	assert.Equal(t, "Geometry Pass", passes[1].Label)
	assert.Zero(t, passes[1].IndexedDraws)
	assert.Equal(t, "Resolve Pass", passes[2].Label)
	assert.Equal(t, 1, passes[2].Draws)

	for _, p := range [][2]int{{0, 0}, {16, 12}, {31, 23}} {
		assert.Equal(t, [4]float32{}, f.texel(t, p[0], p[1]), "pixel %v", p)
	}
}

func TestRenderer_LitQuad(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	addQuad(t, f, 20)
	f.scene.AddLight(light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 1), light.WithRange(20)))
	f.sync(t)

	require.NoError(t, f.renderer.Draw())
	assert.Equal(t, 1, f.renderer.LastDrawCount())
	passes := f.dev.LastSubmission()
	require.Len(t, passes, 3)
	assert.Equal(t, 1, passes[1].IndexedDraws)

	for y := range 24 {
		for x := range 32 {
			c := f.texel(t, x, y)
			require.NotEqual(t, [4]float32{}, c, "pixel %d,%d", x, y)
			require.Equal(t, float32(1), c[3])
		}
	}
	center := f.texel(t, 16, 12)
	assert.InDelta(t, 0.89, center[0], 0.03)
	assert.InDelta(t, center[0], center[1], 1e-6)
	assert.Greater(t, center[0], f.texel(t, 0, 0)[0])
}

func TestRenderer_Resize(t *testing.T) {
	f := newFixture(t, 800, 600, nil)
	f.sync(t)
	require.NoError(t, f.renderer.Draw())

	before := f.renderer.Targets()
	assert.Equal(t, uint32(800), before.Width())

	require.NoError(t, f.renderer.Resize(1920, 1080))
	f.cam.SetViewport(1920, 1080)
	f.sync(t)
	require.NoError(t, f.renderer.Draw())

	targets := f.renderer.Targets()
	assert.NotSame(t, before, targets)
	assert.Equal(t, before.Generation()+1, targets.Generation())
	for _, tgt := range []interface{ Width() uint32 }{targets.Position().View(), targets.Normal().View(), targets.Albedo().View(), targets.Depth().View()} {
		assert.Equal(t, uint32(1920), tgt.Width())
	}
	assert.Equal(t, uint32(1080), targets.Depth().View().Height())

	views := f.renderer.ResolveBindings().Views()
	require.Len(t, views, 3)
	assert.Same(t, targets.Position().View(), views[0])
	assert.Same(t, targets.Normal().View(), views[1])
	assert.Same(t, targets.Albedo().View(), views[2])

	w, h := f.dev.OutputSize()
	assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})
	presented := f.dev.Presented()
	require.NotNil(t, presented)
	assert.Equal(t, uint32(1920), presented.Width())
	assert.Equal(t, uint64(2), f.renderer.Frames())
}

func TestRenderer_ResizeFailureKeepsState(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	targets, set := f.renderer.Targets(), f.renderer.ResolveBindings()

	assert.Error(t, f.renderer.Resize(0, 24))
	assert.Same(t, targets, f.renderer.Targets())
	assert.Same(t, set, f.renderer.ResolveBindings())

	f.sync(t)
	require.NoError(t, f.renderer.Draw())
}

func TestRenderer_StableBindingsAcrossFrames(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	addQuad(t, f, 2)
	f.sync(t)

	require.NoError(t, f.renderer.Draw())
	sceneSet, resolveSet := f.renderer.SceneBindings(), f.renderer.ResolveBindings()
	views := resolveSet.Views()

	f.sync(t)
	require.NoError(t, f.renderer.Draw())
	assert.Same(t, sceneSet, f.renderer.SceneBindings())
	assert.Same(t, resolveSet, f.renderer.ResolveBindings())
	assert.Equal(t, views, f.renderer.ResolveBindings().Views())
	assert.Same(t, contract.Resolve, resolveSet.Layout())
	assert.Equal(t, uint64(2), f.dev.PresentCount())
}

func TestRenderer_PipelinesAreIdempotent(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	r := f.renderer.(*renderer)

	src, err := DefaultShaderSources()
	require.NoError(t, err)
	geometry, resolve, err := r.buildPipelines(src)
	require.NoError(t, err)
	defer geometry.Release()
	defer resolve.Release()

	assert.Equal(t, f.renderer.GeometryPipeline().Describe(), geometry.Describe())
	assert.Equal(t, f.renderer.ResolvePipeline().Describe(), resolve.Describe())
	assert.Equal(t, contract.GeometryLayouts(), geometry.Layouts())
	assert.Equal(t, contract.ResolveLayouts(), resolve.Layouts())
}

func TestRenderer_ReloadShaders(t *testing.T) {
	f := newFixture(t, 32, 24, nil)
	geometry, resolve := f.renderer.GeometryPipeline(), f.renderer.ResolvePipeline()

	src, err := DefaultShaderSources()
	require.NoError(t, err)
	broken := src
	broken.ResolveFragment = "fn nothing() {}"
	assert.Error(t, f.renderer.ReloadShaders(broken))
	assert.Same(t, geometry, f.renderer.GeometryPipeline())
	assert.Same(t, resolve, f.renderer.ResolvePipeline())

	require.NoError(t, f.renderer.ReloadShaders(src))
	assert.NotSame(t, geometry, f.renderer.GeometryPipeline())
	assert.Equal(t, geometry.Describe(), f.renderer.GeometryPipeline().Describe())

	f.sync(t)
	require.NoError(t, f.renderer.Draw())
}

// funcTraversal adapts a function to SceneTraversal.
type funcTraversal func(v SceneVisitor) error

func (fn funcTraversal) Iterate(v SceneVisitor) error { return fn(v) }

func TestRenderer_ReentrantDraw(t *testing.T) {
	var (
		r         Renderer
		inner     error
		resizeErr error
		state     FrameState
	)
	f := newFixture(t, 32, 24, funcTraversal(func(SceneVisitor) error {
		state = r.State()
		inner = r.Draw()
		resizeErr = r.Resize(64, 48)
		return nil
	}))
	r = f.renderer
	f.sync(t)

	require.NoError(t, r.Draw())
	assert.Equal(t, StateGeometryPass, state)
	assert.ErrorIs(t, inner, ErrFrameInProgress)
	assert.ErrorIs(t, resizeErr, ErrFrameInProgress)
	assert.Equal(t, uint64(1), r.Frames())
	assert.Equal(t, StateIdle, r.State())
	assert.Equal(t, uint32(32), r.Targets().Width())
}

func TestRenderer_AccessorsDuringDraw(t *testing.T) {
	type seen struct {
		frames         uint64
		draws          int
		scene, resolve *binding.Set
		geometryPipe   bool
		resolvePipe    bool
		reloadErr      error
	}
	var (
		r   Renderer
		got seen
	)
	f := newFixture(t, 32, 24, funcTraversal(func(SceneVisitor) error {
		got = seen{
			frames:       r.Frames(),
			draws:        r.LastDrawCount(),
			scene:        r.SceneBindings(),
			resolve:      r.ResolveBindings(),
			geometryPipe: r.GeometryPipeline() != nil,
			resolvePipe:  r.ResolvePipeline() != nil,
			reloadErr:    r.ReloadShaders(ShaderSources{}),
		}
		return nil
	}))
	r = f.renderer
	f.sync(t)

	require.NoError(t, r.Draw())
	require.NoError(t, r.Draw())
	assert.Equal(t, uint64(1), got.frames)
	assert.Zero(t, got.draws)
	assert.Same(t, r.SceneBindings(), got.scene)
	assert.Same(t, r.ResolveBindings(), got.resolve)
	assert.True(t, got.geometryPipe)
	assert.True(t, got.resolvePipe)
	assert.ErrorIs(t, got.reloadErr, ErrFrameInProgress)
	assert.Equal(t, uint64(2), r.Frames())
}

func TestRenderer_VisitOrder(t *testing.T) {
	var mat *binding.Set
	f := newFixture(t, 32, 24, funcTraversal(func(v SceneVisitor) error {
		return v.VisitMaterial(mat)
	}))
	m := material.NewMaterial()
	require.NoError(t, m.Flush(f.dev))
	defer m.Release()
	mat = m.Bindings()
	f.sync(t)

	err := f.renderer.Draw()
	assert.ErrorIs(t, err, ErrVisitOrder)
	assert.Contains(t, err.Error(), StateGeometryPass.String())
	assert.Zero(t, f.renderer.Frames())
	assert.Equal(t, StateIdle, f.renderer.State())
	assert.Zero(t, f.dev.PresentCount())

	f2 := newFixture(t, 32, 24, funcTraversal(func(v SceneVisitor) error {
		return v.VisitPrimitive(nil, nil, 6)
	}))
	f2.sync(t)
	assert.ErrorIs(t, f2.renderer.Draw(), ErrVisitOrder)
}

func TestRenderer_BindingMismatch(t *testing.T) {
	var wrong *binding.Set
	f := newFixture(t, 32, 24, funcTraversal(func(v SceneVisitor) error {
		return v.VisitNode(wrong)
	}))
	m := material.NewMaterial()
	require.NoError(t, m.Flush(f.dev))
	defer m.Release()
	wrong = m.Bindings()
	f.sync(t)

	assert.ErrorIs(t, f.renderer.Draw(), ErrBindingMismatch)
	assert.Zero(t, f.renderer.Frames())

	// The frame was abandoned before the output was acquired, so the next frame proceeds.
	wrong = nil
	assert.ErrorIs(t, f.renderer.Draw(), ErrBindingMismatch)
	f.renderer.(*renderer).traversal = f.scene
	require.NoError(t, f.renderer.Draw())
	assert.Equal(t, uint64(1), f.renderer.Frames())
}

func TestNew_DefaultOptions(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	cam := camera.NewCamera(camera.WithViewport(32, 24), camera.WithLookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}))
	require.NoError(t, cam.Flush(dev))
	defer cam.Release()
	scn := scene.NewScene(scene.WithWorkers(1))
	defer scn.Release()

	clusterer, err := light.NewClusterer(dev, cam)
	require.NoError(t, err)
	defer clusterer.Release()
	r, err := New(dev, cam, clusterer, scn, WithSize(32, 24))
	require.NoError(t, err)
	defer r.Release()

	mesh, err := model.NewMesh(dev, model.Quad(20, 20))
	require.NoError(t, err)
	_, err = scn.AddNode(model.NewModel(model.WithPrimitive(mesh, material.NewMaterial())))
	require.NoError(t, err)
	scn.AddLight(light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 1), light.WithRange(20)))
	require.NoError(t, scn.Flush(dev))
	require.NoError(t, clusterer.Update(scn.Lights()))

	require.NoError(t, r.Draw())
	rb, ok := dev.Presented().(backend.Readback)
	require.True(t, ok)
	c, err := rb.ReadTexel(16, 12)
	require.NoError(t, err)
	assert.Greater(t, c[0], float32(0))
}

func TestNew_Errors(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	cam := camera.NewCamera(camera.WithViewport(32, 24))
	scn := scene.NewScene()
	defer scn.Release()

	clusterer, err := light.NewClusterer(dev, cam, light.WithShaderValidation(false))
	require.NoError(t, err)
	defer clusterer.Release()

	_, err = New(dev, cam, clusterer, scn, WithSize(32, 24))
	assert.ErrorIs(t, err, ErrMissingCollaborator)
	_, err = New(dev, cam, nil, scn)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	require.NoError(t, cam.Flush(dev))
	defer cam.Release()
	_, err = New(dev, cam, clusterer, scn)
	assert.Error(t, err, "unconfigured output and no size")

	r, err := New(dev, cam, clusterer, scn, WithSize(32, 24), WithShaderValidation(false), WithPresent(false))
	require.NoError(t, err)
	w, h := dev.OutputSize()
	assert.Equal(t, [2]int{32, 24}, [2]int{w, h})

	require.NoError(t, r.Draw())
	assert.Zero(t, dev.PresentCount())
	dev.Present()
	require.NoError(t, r.Draw())

	r.Release()
	assert.ErrorIs(t, r.Draw(), ErrReleased)
	assert.ErrorIs(t, r.Resize(64, 48), ErrReleased)
}
