package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(t *testing.T, x, y, z float32) scene.Node {
	t.Helper()
	tr := model.IdentityTransform()
	tr.Translation = [3]float32{x, y, z}
	n, err := scene.NewScene().AddNode(model.NewModel(), scene.WithTransform(tr))
	require.NoError(t, err)
	return n
}

func TestGameObject_UpdateSpins(t *testing.T) {
	obj := NewGameObject(newNode(t, 0, 0, 0), WithRotationSpeed(0, 1, 0))
	assert.True(t, obj.Enabled())

	obj.Update(0.5)
	assert.InDelta(t, 0.5, obj.Node().Transform().Rotation[1], 1e-6)

	// Rotation wraps at a full turn.
	obj.Update(2 * math32.Pi)
	assert.InDelta(t, 0.5, obj.Node().Transform().Rotation[1], 1e-4)

	obj.SetEnabled(false)
	obj.Update(1)
	assert.InDelta(t, 0.5, obj.Node().Transform().Rotation[1], 1e-4)

	obj.SetEnabled(true)
	obj.Update(-1)
	assert.InDelta(t, 0.5, obj.Node().Transform().Rotation[1], 1e-4)
}

func TestGameObject_AttachedLightFollows(t *testing.T) {
	l := light.NewLight(light.LightTypePoint)
	node := newNode(t, 1, 2, 3)
	obj := NewGameObject(node, WithLight(l, [3]float32{0, 1, 0}))
	assert.Equal(t, [3]float32{1, 3, 3}, l.Position())

	node.SetTranslation(-4, 0, 0)
	obj.Update(0.1)
	assert.Equal(t, [3]float32{-4, 1, 0}, l.Position())

	other := light.NewLight(light.LightTypePoint)
	obj.SetLight(other, [3]float32{})
	assert.Same(t, other, obj.Light())
	assert.Equal(t, [3]float32{-4, 0, 0}, other.Position())

	obj.SetLight(nil, [3]float32{})
	obj.Update(0.1)
	assert.Nil(t, obj.Light())
}

func TestGameObject_RotationSpeed(t *testing.T) {
	obj := NewGameObject(newNode(t, 0, 0, 0), WithEnabled(false))
	assert.False(t, obj.Enabled())
	obj.SetRotationSpeed(1, 2, 3)
	assert.Equal(t, [3]float32{1, 2, 3}, obj.RotationSpeed())
}
