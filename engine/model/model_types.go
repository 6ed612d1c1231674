package model

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
)

// Transform is a decomposed node transform.
type Transform struct {
	// Translation is the position offset.
	Translation [3]float32

	// Rotation is the Euler rotation in radians, applied Y, then X, then Z.
	Rotation [3]float32

	// Scale is the scale factor along each axis.
	Scale [3]float32
}

// IdentityTransform returns a transform with no translation or rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: [3]float32{1, 1, 1}}
}

// Matrix composes the transform into a column-major model matrix.
//
// Returns:
//   - [16]float32: the model matrix
func (t Transform) Matrix() [16]float32 {
	var m [16]float32
	common.BuildModelMatrix(m[:], t.Translation, t.Rotation, t.Scale)
	return m
}

// MeshData is CPU-side triangle list geometry ready for upload.
type MeshData struct {
	// Name is the mesh identifier.
	Name string

	// Vertices are the mesh vertices.
	Vertices []GPUVertex

	// Indices are the triangle indices, three per triangle.
	Indices []uint32
}

// Bounds computes the axis-aligned bounding box of the mesh positions. An empty mesh has
// a zero box.
//
// Returns:
//   - [3]float32: the minimum corner
//   - [3]float32: the maximum corner
func (d *MeshData) Bounds() ([3]float32, [3]float32) {
	if len(d.Vertices) == 0 {
		return [3]float32{}, [3]float32{}
	}
	bmin := [3]float32{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	bmax := [3]float32{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for _, v := range d.Vertices {
		for j := range 3 {
			bmin[j] = math32.Min(bmin[j], v.Position[j])
			bmax[j] = math32.Max(bmax[j], v.Position[j])
		}
	}
	return bmin, bmax
}

// GenerateNormals computes smooth vertex normals from the triangle geometry. Face normals
// are accumulated area-weighted onto every vertex of their triangle and normalized.
// Vertices no triangle touches get the up vector.
func (d *MeshData) GenerateNormals() {
	n := len(d.Vertices)
	accum := make([][3]float32, n)

	for i := 0; i+2 < len(d.Indices); i += 3 {
		i0, i1, i2 := d.Indices[i], d.Indices[i+1], d.Indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		p0, p1, p2 := d.Vertices[i0].Position, d.Vertices[i1].Position, d.Vertices[i2].Position
		face := common.Cross3(common.Sub3(p1, p0), common.Sub3(p2, p0))
		for _, idx := range [3]uint32{i0, i1, i2} {
			for k := range 3 {
				accum[idx][k] += face[k]
			}
		}
	}

	for i := range n {
		if common.Length3(accum[i]) < 1e-6 {
			d.Vertices[i].Normal = [3]float32{0, 1, 0}
			continue
		}
		d.Vertices[i].Normal = common.Normalize3(accum[i])
	}
}
