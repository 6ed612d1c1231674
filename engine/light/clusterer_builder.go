package light

// ClustererBuilderOption is a function that configures a Clusterer during construction.
type ClustererBuilderOption func(*clustererImpl)

// WithGrid is an option builder that sets the cluster grid.
//
// Parameters:
//   - grid: the grid dimensions and per-cluster capacity
//
// Returns:
//   - ClustererBuilderOption: a function that applies the grid option to a clustererImpl
func WithGrid(grid ClusterGrid) ClustererBuilderOption {
	return func(c *clustererImpl) {
		c.grid = grid
	}
}

// WithMaxLights is an option builder that sets the light list capacity.
//
// Parameters:
//   - n: the largest number of enabled lights one Update accepts
//
// Returns:
//   - ClustererBuilderOption: a function that applies the capacity option to a clustererImpl
func WithMaxLights(n int) ClustererBuilderOption {
	return func(c *clustererImpl) {
		c.maxLights = n
	}
}

// WithAmbient is an option builder that sets the ambient color written to the light list.
//
// Parameters:
//   - r, g, b: the ambient color components
//
// Returns:
//   - ClustererBuilderOption: a function that applies the ambient option to a clustererImpl
func WithAmbient(r, g, b float32) ClustererBuilderOption {
	return func(c *clustererImpl) {
		c.ambient = [3]float32{r, g, b}
	}
}

// WithShaderValidation is an option builder that toggles WGSL validation of the
// clustering kernel.
//
// Parameters:
//   - enabled: true to validate the kernel source
//
// Returns:
//   - ClustererBuilderOption: a function that applies the validation option to a clustererImpl
func WithShaderValidation(enabled bool) ClustererBuilderOption {
	return func(c *clustererImpl) {
		c.validate = enabled
	}
}
