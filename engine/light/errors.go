package light

import "errors"

var (
	// ErrInvalidGrid is returned when a cluster grid has a zero dimension or capacity.
	ErrInvalidGrid = errors.New("light: invalid cluster grid")

	// ErrTooManyLights is returned when more enabled lights are uploaded than the light list holds.
	ErrTooManyLights = errors.New("light: light list capacity exceeded")

	// ErrMissingBinding is returned when the clustering program runs without its buffers bound.
	ErrMissingBinding = errors.New("light: clustering buffer not bound")
)
