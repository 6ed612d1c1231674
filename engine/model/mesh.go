package model

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrEmptyMesh is returned when a mesh has no vertices or no indices.
	ErrEmptyMesh = errors.New("model: empty mesh")

	// ErrInvalidIndices is returned when the index count is not a multiple of three or an
	// index is out of range.
	ErrInvalidIndices = errors.New("model: invalid index data")
)

type mesh struct {
	name         string
	vertexBuffer backend.Buffer
	indexBuffer  backend.Buffer
	vertexCount  uint32
	indexCount   uint32
	boundsMin    [3]float32
	boundsMax    [3]float32
}

// Mesh is uploaded triangle list geometry: a GPUVertex buffer and a uint32 index buffer.
type Mesh interface {
	// Name returns the mesh identifier.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// VertexBuffer returns the vertex buffer bound at slot 0.
	//
	// Returns:
	//   - backend.Buffer: the vertex buffer
	VertexBuffer() backend.Buffer

	// IndexBuffer returns the uint32 index buffer.
	//
	// Returns:
	//   - backend.Buffer: the index buffer
	IndexBuffer() backend.Buffer

	// VertexCount returns the number of vertices.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// IndexCount returns the number of indices drawn.
	//
	// Returns:
	//   - uint32: the index count
	IndexCount() uint32

	// Bounds returns the model-space bounding box.
	//
	// Returns:
	//   - [3]float32: the minimum corner
	//   - [3]float32: the maximum corner
	Bounds() ([3]float32, [3]float32)

	// Release destroys the buffers.
	Release()
}

var _ Mesh = &mesh{}

// NewMesh validates and uploads mesh data.
//
// Parameters:
//   - dev: the backend owning the buffers
//   - data: the geometry
//
// Returns:
//   - Mesh: the uploaded mesh
//   - error: ErrEmptyMesh, ErrInvalidIndices or a device error
func NewMesh(dev backend.Backend, data MeshData) (Mesh, error) {
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return nil, fmt.Errorf("%w: %q has %d vertices and %d indices", ErrEmptyMesh, data.Name, len(data.Vertices), len(data.Indices))
	}
	if len(data.Indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %q has %d indices", ErrInvalidIndices, data.Name, len(data.Indices))
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Vertices) {
			return nil, fmt.Errorf("%w: %q index %d with %d vertices", ErrInvalidIndices, data.Name, idx, len(data.Vertices))
		}
	}

	m := &mesh{
		name:        data.Name,
		vertexCount: uint32(len(data.Vertices)),
		indexCount:  uint32(len(data.Indices)),
	}
	m.boundsMin, m.boundsMax = data.Bounds()

	vertices := MarshalVertices(data.Vertices)
	vb, err := dev.CreateBuffer(&backend.BufferDescriptor{
		Label: data.Name + " Vertex Buffer",
		Size:  uint64(len(vertices)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("model: failed to create vertex buffer: %w", err)
	}
	m.vertexBuffer = vb

	indices := common.SliceToBytes(data.Indices)
	ib, err := dev.CreateBuffer(&backend.BufferDescriptor{
		Label: data.Name + " Index Buffer",
		Size:  uint64(len(indices)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		m.Release()
		return nil, fmt.Errorf("model: failed to create index buffer: %w", err)
	}
	m.indexBuffer = ib

	if err := dev.WriteBuffer(vb, 0, vertices); err != nil {
		m.Release()
		return nil, fmt.Errorf("model: failed to write vertex buffer: %w", err)
	}
	if err := dev.WriteBuffer(ib, 0, indices); err != nil {
		m.Release()
		return nil, fmt.Errorf("model: failed to write index buffer: %w", err)
	}
	return m, nil
}

func (m *mesh) Name() string                 { return m.name }
func (m *mesh) VertexBuffer() backend.Buffer { return m.vertexBuffer }
func (m *mesh) IndexBuffer() backend.Buffer  { return m.indexBuffer }
func (m *mesh) VertexCount() uint32          { return m.vertexCount }
func (m *mesh) IndexCount() uint32           { return m.indexCount }

func (m *mesh) Bounds() ([3]float32, [3]float32) {
	return m.boundsMin, m.boundsMax
}

func (m *mesh) Release() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Release()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Release()
		m.indexBuffer = nil
	}
}
