// Package shader loads WGSL shaders: it expands @oxy: annotations, validates the result with
// naga and reflects entry points, resource declarations and vertex inputs out of the source.
package shader

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader is loaded for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex indicates a shader containing a @vertex entry point.
	ShaderTypeVertex

	// ShaderTypeFragment indicates a shader containing a @fragment entry point.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Stage returns the shader stage flag of t.
func (t ShaderType) Stage() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	shaderType    ShaderType
	source        string
	entryPoint    string
	bindings      []Binding
	layouts       []Annotation
	vertexLayouts []wgpu.VertexBufferLayout
	workgroupSize [3]uint32

	validate bool
	includes map[string]string
}

// Shader is a processed, validated and reflected WGSL shader for one pipeline stage.
type Shader interface {
	// Key returns the shader's unique key. The software backend looks programs up by it.
	//
	// Returns:
	//   - string: the key
	Key() string

	// ShaderType returns the stage the shader was loaded for.
	//
	// Returns:
	//   - ShaderType: the shader type
	ShaderType() ShaderType

	// Source returns the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source with every include expanded
	Source() string

	// EntryPoint returns the name of the stage's entry point.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// Bindings returns the resource declarations, sorted by group and binding.
	//
	// Returns:
	//   - []Binding: the declarations
	Bindings() []Binding

	// Layouts returns the @oxy:layout annotations of the source.
	//
	// Returns:
	//   - []Annotation: the layout annotations in source order
	Layouts() []Annotation

	// VertexLayouts returns one layout per vertex input struct, for vertex shaders.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the parsed layouts, nil for other stages
	VertexLayouts() []wgpu.VertexBufferLayout

	// WorkgroupSize returns @workgroup_size for compute shaders and [0, 0, 0] otherwise.
	//
	// Returns:
	//   - [3]uint32: the workgroup size
	WorkgroupSize() [3]uint32

	// Stage returns the backend stage descriptor for pipeline creation.
	//
	// Returns:
	//   - backend.ShaderStage: key, source and entry point
	Stage() backend.ShaderStage
}

var _ Shader = &shader{}

// NewShader pre-processes, validates and reflects source.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the shader is loaded for
//   - source: the annotated WGSL source
//   - options: ShaderBuilderOption functions to configure loading
//
// Returns:
//   - Shader: the shader
//   - error: an error if pre-processing or validation fails, if no entry point of the
//     stage exists, or if a declaration cannot be classified
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		validate:   true,
	}
	for _, option := range options {
		option(s)
	}
	if err := s.load(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

// LoadShader reads path and passes its contents to NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage the shader is loaded for
//   - path: the WGSL file
//   - options: ShaderBuilderOption functions to configure loading
//
// Returns:
//   - Shader: the shader
//   - error: a read error or any error NewShader returns
func LoadShader(key string, shaderType ShaderType, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read %q: %w", key, path, err)
	}
	return NewShader(key, shaderType, string(data), options...)
}

func (s *shader) Key() string                              { return s.key }
func (s *shader) ShaderType() ShaderType                   { return s.shaderType }
func (s *shader) Source() string                           { return s.source }
func (s *shader) EntryPoint() string                       { return s.entryPoint }
func (s *shader) Bindings() []Binding                      { return s.bindings }
func (s *shader) Layouts() []Annotation                    { return s.layouts }
func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout { return s.vertexLayouts }
func (s *shader) WorkgroupSize() [3]uint32                 { return s.workgroupSize }

func (s *shader) Stage() backend.ShaderStage {
	return backend.ShaderStage{Key: s.key, Source: s.source, EntryPoint: s.entryPoint}
}

func (s *shader) load(raw string) error {
	pp := NewPreProcessor(s.includes)
	source, err := pp.Process(raw)
	if err != nil {
		return fmt.Errorf("pre-process: %w", err)
	}
	if s.validate {
		if err := Validate(source); err != nil {
			return err
		}
	}

	s.source = source
	s.layouts = append([]Annotation(nil), pp.Layouts()...)
	s.entryPoint = parseEntryPoint(source, s.shaderType)
	if s.entryPoint == "" {
		return fmt.Errorf("no @%s entry point", s.shaderType)
	}
	if s.bindings, err = parseBindings(source, s.shaderType.Stage()); err != nil {
		return err
	}
	switch s.shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(source)
	case ShaderTypeCompute:
		s.workgroupSize = parseWorkgroupSize(source)
	}
	return nil
}
