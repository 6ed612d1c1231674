package shader

// ShaderBuilderOption configures how a Shader is loaded.
type ShaderBuilderOption func(*shader)

// WithValidation turns naga validation of the processed source on or off. It is on by
// default.
//
// Parameters:
//   - enabled: whether to validate
//
// Returns:
//   - ShaderBuilderOption: a function that applies the option to a shader
func WithValidation(enabled bool) ShaderBuilderOption {
	return func(s *shader) {
		s.validate = enabled
	}
}

// WithIncludes adds includes visible only to this shader. They shadow registered includes of
// the same name.
//
// Parameters:
//   - includes: include sources keyed by name
//
// Returns:
//   - ShaderBuilderOption: a function that applies the option to a shader
func WithIncludes(includes map[string]string) ShaderBuilderOption {
	return func(s *shader) {
		s.includes = includes
	}
}
