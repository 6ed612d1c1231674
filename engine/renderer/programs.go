package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/chewxy/math32"
)

// Shader keys of the built-in passes. The software backend runs the CPU programs below
// under these keys.
const (
	GeometryVertexKey   = "geometry.vert"
	GeometryFragmentKey = "geometry.frag"
	ResolveVertexKey    = "resolve.vert"
	ResolveFragmentKey  = "resolve.frag"
)

// registerPrograms installs the CPU versions of the geometry and resolve stages.
func registerPrograms(reg backend.ProgramRegistry) {
	reg.RegisterVertexProgram(GeometryVertexKey, GeometryVertex)
	reg.RegisterFragmentProgram(GeometryFragmentKey, GeometryFragment)
	reg.RegisterVertexProgram(ResolveVertexKey, ResolveVertex)
	reg.RegisterFragmentProgram(ResolveFragmentKey, ResolveFragment)
}

func attribute(in backend.VertexInput, location int, out []float32) {
	if location >= len(in.Attributes) {
		return
	}
	copy(out, in.Attributes[location])
}

// GeometryVertex transforms a mesh vertex to clip space and passes the world position,
// world normal and texture coordinate on as varyings.
//
// Parameters:
//   - b: the bound scene and model sets
//   - in: the vertex attributes
//
// Returns:
//   - backend.VertexOutput: the clip position and eight varyings
func GeometryVertex(b *backend.Bindings, in backend.VertexInput) backend.VertexOutput {
	cam := b.Buffer(contract.GroupScene, 0)
	mdl := b.Buffer(contract.GroupModel, 0)
	if len(cam) < contract.CameraUniformSize || len(mdl) < contract.ModelUniformSize {
		return backend.VertexOutput{Varyings: make([]float32, 8)}
	}

	var pos, normal [3]float32
	var uv [2]float32
	attribute(in, 0, pos[:])
	attribute(in, 1, normal[:])
	attribute(in, 2, uv[:])

	model := backend.Mat4At(mdl, 0)
	normalMatrix := backend.Mat4At(mdl, 64)
	viewProj := backend.Mat4At(cam, 0)

	world := common.MulVec4(model[:], [4]float32{pos[0], pos[1], pos[2], 1})
	n := common.MulVec4(normalMatrix[:], [4]float32{normal[0], normal[1], normal[2], 0})
	return backend.VertexOutput{
		Position: common.MulVec4(viewProj[:], world),
		Varyings: []float32{world[0], world[1], world[2], n[0], n[1], n[2], uv[0], uv[1]},
	}
}

// GeometryFragment writes world position, normal and albedo to the three G-buffer targets.
// Albedo alpha is 1 on every covered pixel.
//
// Parameters:
//   - b: the bound material set
//   - in: the interpolated varyings
//   - out: the position, normal and albedo targets
//
// Returns:
//   - bool: always false
func GeometryFragment(b *backend.Bindings, in backend.FragmentInput, out [][4]float32) bool {
	v := in.Varyings
	if len(v) < 8 || len(out) < 3 {
		return true
	}
	base := [4]float32{1, 1, 1, 1}
	if mat := b.Buffer(contract.GroupMaterial, 0); len(mat) >= contract.MaterialUniformSize {
		for i := range 4 {
			base[i] = backend.Float32At(mat, i*4)
		}
	}
	texel := b.Sample(contract.GroupMaterial, 1, 2, v[6], v[7])
	n := common.Normalize3([3]float32{v[3], v[4], v[5]})

	out[0] = [4]float32{v[0], v[1], v[2], 1}
	out[1] = [4]float32{n[0], n[1], n[2], 1}
	out[2] = [4]float32{base[0] * texel[0], base[1] * texel[1], base[2] * texel[2], 1}
	return false
}

// fullScreen holds the two triangles covering clip space.
var fullScreen = [6][2]float32{{-1, -1}, {1, -1}, {-1, 1}, {-1, 1}, {1, -1}, {1, 1}}

// ResolveVertex emits the full-screen quad from the vertex index.
//
// Parameters:
//   - b: unused
//   - in: the vertex index
//
// Returns:
//   - backend.VertexOutput: a clip-space corner
func ResolveVertex(_ *backend.Bindings, in backend.VertexInput) backend.VertexOutput {
	c := fullScreen[in.VertexIndex%6]
	return backend.VertexOutput{Position: [4]float32{c[0], c[1], 0, 1}}
}

// ResolveFragment shades one pixel from the G-buffer with the lights of its cluster.
// Pixels with zero albedo alpha are discarded.
//
// Parameters:
//   - b: the bound resolve set
//   - in: the fragment position
//   - out: the output target
//
// Returns:
//   - bool: true if the pixel was never covered by the geometry pass
func ResolveFragment(b *backend.Bindings, in backend.FragmentInput, out [][4]float32) bool {
	x, y := int(in.Position[0]), int(in.Position[1])
	albedo := b.Load(0, contract.ResolveAlbedo, x, y)
	if albedo[3] == 0 {
		return true
	}
	p := b.Load(0, contract.ResolvePosition, x, y)
	nt := b.Load(0, contract.ResolveNormal, x, y)
	position := [3]float32{p[0], p[1], p[2]}
	normal := common.Normalize3([3]float32{nt[0], nt[1], nt[2]})

	cam := b.Buffer(0, contract.ResolveCamera)
	lightSet := b.Buffer(0, contract.ResolveLights)
	clusters := b.Buffer(0, contract.ResolveClusters)
	if len(cam) < contract.CameraUniformSize || len(lightSet) < contract.LightSetHeaderSize || len(clusters) < contract.ClusterHeaderSize {
		out[0] = [4]float32{0, 0, 0, 1}
		return false
	}

	ambient := backend.Vec3At(lightSet, 0)
	color := [3]float32{ambient[0] * albedo[0], ambient[1] * albedo[1], ambient[2] * albedo[2]}

	grid := light.ReadClusterGrid(clusters)
	if grid.Validate() == nil && uint64(len(clusters)) >= grid.BufferSize() {
		view := backend.Mat4At(cam, 64)
		near, far := backend.Float32At(cam, 204), backend.Float32At(cam, 216)
		width, height := backend.Float32At(cam, 208), backend.Float32At(cam, 212)
		if width <= 0 || height <= 0 {
			w, h := b.TextureSize(0, contract.ResolveAlbedo)
			width, height = float32(w), float32(h)
		}
		vp := common.MulVec4(view[:], [4]float32{position[0], position[1], position[2], 1})

		count := backend.Uint32At(lightSet, 12)
		capacity := uint32((len(lightSet) - contract.LightSetHeaderSize) / contract.LightSize)
		index := grid.ClusterAt(in.Position[0], in.Position[1], width, height, -vp[2], near, far)
		for _, li := range grid.Lights(clusters, index) {
			if li >= count || li >= capacity {
				continue
			}
			l := light.UnmarshalGPULight(lightSet[contract.LightSetHeaderSize+int(li)*contract.LightSize:])
			contrib := shade(l, position, normal)
			for k := range 3 {
				color[k] += albedo[k] * l.Color[k] * l.Intensity * contrib
			}
		}
	}
	out[0] = [4]float32{color[0], color[1], color[2], 1}
	return false
}

// shade returns the diffuse term of one light at a surface point, attenuation included.
func shade(l light.GPULight, position, normal [3]float32) float32 {
	delta := common.Sub3(l.Position, position)
	dist := common.Length3(delta)
	if dist >= l.Range || dist == 0 {
		return 0
	}
	toLight := [3]float32{delta[0] / dist, delta[1] / dist, delta[2] / dist}
	diffuse := math32.Max(common.Dot3(normal, toLight), 0)

	atten := common.Clamp(1-dist/l.Range, 0, 1)
	atten *= atten
	if l.Kind == uint32(light.LightTypeSpot) {
		dir := common.Normalize3(l.Direction)
		cosAngle := -common.Dot3(toLight, dir)
		atten *= smoothstep(l.OuterCos, l.InnerCos, cosAngle)
	}
	return diffuse * atten
}

func smoothstep(edge0, edge1, x float32) float32 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := common.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
