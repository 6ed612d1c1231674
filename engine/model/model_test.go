package model

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faceNormal returns the unnormalized normal of triangle t.
func faceNormal(d MeshData, t int) [3]float32 {
	p0 := d.Vertices[d.Indices[t*3]].Position
	p1 := d.Vertices[d.Indices[t*3+1]].Position
	p2 := d.Vertices[d.Indices[t*3+2]].Position
	return common.Cross3(common.Sub3(p1, p0), common.Sub3(p2, p0))
}

func TestShapes_Winding(t *testing.T) {
	tests := []struct {
		name      string
		data      MeshData
		vertices  int
		triangles int
	}{
		{"quad", Quad(2, 1), 4, 2},
		{"plane", Plane(4, 3), 16, 18},
		{"cube", Cube(2), 24, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.data.Vertices, tt.vertices)
			require.Len(t, tt.data.Indices, tt.triangles*3)
			for tri := range tt.triangles {
				n := faceNormal(tt.data, tri)
				declared := tt.data.Vertices[tt.data.Indices[tri*3]].Normal
				assert.Greater(t, common.Dot3(n, declared), float32(0), "triangle %d faces away from its normal", tri)
			}
		})
	}
}

func TestMeshData_Bounds(t *testing.T) {
	d := Cube(2)
	lo, hi := d.Bounds()
	assert.Equal(t, [3]float32{-1, -1, -1}, lo)
	assert.Equal(t, [3]float32{1, 1, 1}, hi)

	empty := MeshData{}
	lo, hi = empty.Bounds()
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestMeshData_GenerateNormals(t *testing.T) {
	d := Plane(2, 2)
	for i := range d.Vertices {
		d.Vertices[i].Normal = [3]float32{}
	}
	d.Vertices = append(d.Vertices, GPUVertex{})
	d.GenerateNormals()
	for i, v := range d.Vertices {
		assert.InDelta(t, 1, v.Normal[1], 1e-6, "vertex %d", i)
	}
}

func TestGPUModelUniform(t *testing.T) {
	tr := Transform{Translation: [3]float32{1, 2, 3}, Scale: [3]float32{2, 2, 2}}
	u := NewModelUniform(tr.Matrix())
	assert.Equal(t, float32(1), u.Model[12])
	assert.Equal(t, float32(2), u.Model[0])
	assert.InDelta(t, 0.5, u.Normal[0], 1e-6)
	assert.Zero(t, u.Normal[12])
	require.Len(t, u.Marshal(), 128)

	singular := NewModelUniform([16]float32{})
	assert.Equal(t, IdentityTransform().Matrix(), singular.Normal)
}

func TestNewMesh(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	m, err := NewMesh(dev, Quad(1, 1))
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, uint32(4), m.VertexCount())
	assert.Equal(t, uint32(6), m.IndexCount())
	assert.Equal(t, "quad Vertex Buffer", m.VertexBuffer().Label())
	assert.Equal(t, uint64(4*GPUVertexSize), m.VertexBuffer().Size())

	ib, err := dev.ReadBuffer(m.IndexBuffer())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ib[8:]))

	_, err = NewMesh(dev, MeshData{Name: "empty"})
	assert.ErrorIs(t, err, ErrEmptyMesh)

	bad := Quad(1, 1)
	bad.Indices[5] = 9
	_, err = NewMesh(dev, bad)
	assert.ErrorIs(t, err, ErrInvalidIndices)

	bad.Indices = bad.Indices[:4]
	_, err = NewMesh(dev, bad)
	assert.ErrorIs(t, err, ErrInvalidIndices)
}

func TestModel(t *testing.T) {
	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	quad, err := NewMesh(dev, Quad(1, 1))
	require.NoError(t, err)
	cube, err := NewMesh(dev, Cube(4))
	require.NoError(t, err)
	red := material.NewMaterial(material.WithName("red"))
	require.NoError(t, red.Flush(dev))

	m := NewModel(WithName("pair"), WithPrimitive(quad, red), WithPrimitives(Primitive{Mesh: cube, Material: red}))
	assert.Equal(t, "pair", m.Name())
	require.Len(t, m.Primitives(), 2)
	assert.Len(t, m.Materials(), 1)

	lo, hi := m.Bounds()
	assert.Equal(t, [3]float32{-2, -2, -2}, lo)
	assert.Equal(t, [3]float32{2, 2, 2}, hi)

	m.Release()
	assert.Nil(t, red.Bindings())
	assert.Nil(t, quad.VertexBuffer())
}
