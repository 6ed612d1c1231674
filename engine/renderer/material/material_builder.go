package material

import "github.com/Carmen-Shannon/oxy-deferred/common"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the RGBA color the albedo texture is
// multiplied by.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithAlbedoTexture is an option builder that sets the RGBA8 albedo texture. Without one
// the material samples a 1x1 white texture.
//
// Parameters:
//   - tex: the staged texture data
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithAlbedoTexture(tex common.TextureStagingData) MaterialBuilderOption {
	return func(m *material) {
		m.albedo = tex
	}
}

// WithSampler is an option builder that sets the sampler configuration for the albedo texture.
//
// Parameters:
//   - s: the sampler configuration
//
// Returns:
//   - MaterialBuilderOption: a function that applies the sampler option to a material
func WithSampler(s common.SamplerStagingData) MaterialBuilderOption {
	return func(m *material) {
		m.sampler = s
	}
}
