package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfiler_Tick(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewProfiler(WithInterval(time.Second), WithClock(func() time.Time { return now }))

	for range 29 {
		now = now.Add(10 * time.Millisecond)
		assert.False(t, p.Tick(nil))
	}
	now = now.Add(10 * time.Millisecond)
	assert.False(t, p.Tick(errors.New("frame dropped")))
	assert.Zero(t, p.Last().Frames)

	now = now.Add(700 * time.Millisecond)
	assert.True(t, p.Tick(nil))
	s := p.Last()
	assert.Equal(t, 31, s.Frames)
	assert.Equal(t, 1, s.FailedFrames)
	assert.InDelta(t, 31, s.FPS, 1e-9)

	now = now.Add(time.Second)
	assert.True(t, p.Tick(nil))
	assert.Equal(t, 1, p.Last().Frames)
	assert.Zero(t, p.Last().FailedFrames)
}
