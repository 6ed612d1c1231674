package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterial_Flush(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	m := NewMaterial(WithName("red"), WithBaseColor([4]float32{1, 0, 0, 1}))
	assert.Equal(t, "red", m.Name())
	assert.Nil(t, m.Bindings())

	require.NoError(t, m.Flush(dev))
	set := m.Bindings()
	require.NotNil(t, set)
	assert.Same(t, contract.Material, set.Layout())
	require.Len(t, set.Views(), 1)
	assert.Equal(t, uint32(1), set.Views()[0].Width())

	u, err := dev.ReadBuffer(set.Resource(0).Buffer())
	require.NoError(t, err)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(u[0:])))

	m.SetBaseColor([4]float32{0, 0.5, 0, 1})
	require.NoError(t, m.Flush(dev))
	assert.Same(t, set, m.Bindings())
	u, err = dev.ReadBuffer(set.Resource(0).Buffer())
	require.NoError(t, err)
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(u[0:])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(u[4:])))

	m.Release()
	assert.Nil(t, m.Bindings())
}

func TestMaterial_AlbedoTexture(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	tex := common.TextureStagingData{Pixels: make([]byte, 2*3*4), Width: 2, Height: 3}
	m := NewMaterial(WithAlbedoTexture(tex))
	assert.NotEqual(t, NewMaterial().ID(), m.ID())

	require.NoError(t, m.Flush(dev))
	view := m.Bindings().Views()[0]
	assert.Equal(t, uint32(2), view.Width())
	assert.Equal(t, uint32(3), view.Height())

	bad := NewMaterial(WithAlbedoTexture(common.TextureStagingData{Pixels: []byte{0}, Width: 2, Height: 2}))
	assert.Error(t, bad.Flush(dev))
	assert.Nil(t, bad.Bindings())
}
