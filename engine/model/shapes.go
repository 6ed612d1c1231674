package model

// Quad builds a width by height rectangle in the XY plane centered on the origin, facing +Z.
//
// Parameters:
//   - width: the extent along X
//   - height: the extent along Y
//
// Returns:
//   - MeshData: four vertices and two triangles
func Quad(width, height float32) MeshData {
	w, h := width/2, height/2
	n := [3]float32{0, 0, 1}
	return MeshData{
		Name: "quad",
		Vertices: []GPUVertex{
			{Position: [3]float32{-w, -h, 0}, Normal: n, TexCoord: [2]float32{0, 1}},
			{Position: [3]float32{w, -h, 0}, Normal: n, TexCoord: [2]float32{1, 1}},
			{Position: [3]float32{w, h, 0}, Normal: n, TexCoord: [2]float32{1, 0}},
			{Position: [3]float32{-w, h, 0}, Normal: n, TexCoord: [2]float32{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// Plane builds a size by size square in the XZ plane centered on the origin, facing +Y,
// split into divisions by divisions cells.
//
// Parameters:
//   - size: the edge length
//   - divisions: the number of cells per edge, at least 1
//
// Returns:
//   - MeshData: (divisions+1)^2 vertices and 2*divisions^2 triangles
func Plane(size float32, divisions int) MeshData {
	divisions = max(divisions, 1)
	stride := divisions + 1
	half := size / 2
	step := size / float32(divisions)

	d := MeshData{Name: "plane"}
	for r := range stride {
		for c := range stride {
			d.Vertices = append(d.Vertices, GPUVertex{
				Position: [3]float32{-half + float32(c)*step, 0, half - float32(r)*step},
				Normal:   [3]float32{0, 1, 0},
				TexCoord: [2]float32{float32(c) / float32(divisions), 1 - float32(r)/float32(divisions)},
			})
		}
	}
	for r := range divisions {
		for c := range divisions {
			a := uint32(r*stride + c)
			b := a + 1
			far := a + uint32(stride)
			d.Indices = append(d.Indices, a, b, far+1, a, far+1, far)
		}
	}
	return d
}

// cubeFaces lists each face as its outward normal followed by the right and up axes of
// the face as seen from outside.
var cubeFaces = [6][3][3]float32{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

// Cube builds an axis-aligned cube of the given edge length centered on the origin, with
// flat per-face normals and counter-clockwise outward faces.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - MeshData: 24 vertices and 12 triangles
func Cube(size float32) MeshData {
	h := size / 2
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	d := MeshData{Name: "cube"}
	for f, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		for i, c := range corners {
			var p [3]float32
			for k := range 3 {
				p[k] = (n[k] + c[0]*u[k] + c[1]*v[k]) * h
			}
			d.Vertices = append(d.Vertices, GPUVertex{Position: p, Normal: n, TexCoord: uvs[i]})
		}
		base := uint32(f * 4)
		d.Indices = append(d.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return d
}
