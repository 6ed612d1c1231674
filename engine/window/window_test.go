package window

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineWindow_Resized(t *testing.T) {
	w := &engineWindow{mu: &sync.Mutex{}, width: 800, height: 600}
	var got [][2]uint32
	w.SetResizeCallback(func(width, height uint32) {
		got = append(got, [2]uint32{width, height})
	})

	w.resized(0, 0)
	w.resized(800, 600)
	w.resized(1920, 1080)
	w.resized(1920, -1)

	assert.Equal(t, [][2]uint32{{1920, 1080}}, got)
	width, height := w.Size()
	assert.Equal(t, [2]uint32{1920, 1080}, [2]uint32{width, height})
}

func TestEngineWindow_CloseNotifiesOnce(t *testing.T) {
	w := &engineWindow{mu: &sync.Mutex{}}
	calls := 0
	w.SetCloseCallback(func() { calls++ })

	w.ProcessMessages()
	assert.Error(t, w.Close())
	assert.Equal(t, 1, calls)
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
}
