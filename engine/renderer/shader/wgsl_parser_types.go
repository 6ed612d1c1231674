package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// Binding is one @group/@binding resource declaration found in a shader.
type Binding struct {
	Group uint32
	Index uint32
	Name  string
	Type  string
	Kind  binding.Kind
	Stage wgpu.ShaderStage

	// SampleType is set for sampled textures.
	SampleType wgpu.TextureSampleType

	// MinSize is the byte size the declared buffer type needs, zero if it could not be
	// resolved or the binding is not a buffer.
	MinSize uint64
}

func (b Binding) String() string {
	return fmt.Sprintf("@group(%d) @binding(%d) %s: %s", b.Group, b.Index, b.Name, b.Type)
}

// vertexFormatInfo holds a vertex format and its byte size.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslTypeLayout is the byte size and alignment of a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one field of a parsed WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is one struct block of a WGSL source.
type parsedStruct struct {
	name   string
	fields []parsedField
}
