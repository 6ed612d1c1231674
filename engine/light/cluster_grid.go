package light

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/chewxy/math32"
)

// ClusterWorkgroupSize is the workgroup edge of the clustering kernel in every dimension.
const ClusterWorkgroupSize = 4

// ClusterGrid is the froxel grid the view frustum is divided into: X by Y screen tiles and
// Z exponential depth slices between the near and far planes.
//
// The cluster buffer is the header (X, Y, Z, MaxLightsPerCluster as u32) followed by one
// record per cluster. A record is a light count followed by MaxLightsPerCluster light
// indices, so record i starts at word i*(MaxLightsPerCluster+1). Cluster (x, y, z) has
// index x + y*X + z*X*Y, with y counted from the top of the screen. When more than
// MaxLightsPerCluster lights touch a cluster, the lights with the lowest indices are kept.
type ClusterGrid struct {
	X                   uint32
	Y                   uint32
	Z                   uint32
	MaxLightsPerCluster uint32
}

// DefaultClusterGrid returns a 16x9x24 grid holding up to 128 lights per cluster.
func DefaultClusterGrid() ClusterGrid {
	return ClusterGrid{X: 16, Y: 9, Z: 24, MaxLightsPerCluster: 128}
}

// Validate reports a grid with a zero dimension or capacity.
//
// Returns:
//   - error: ErrInvalidGrid if any field is zero
func (g ClusterGrid) Validate() error {
	if g.X == 0 || g.Y == 0 || g.Z == 0 || g.MaxLightsPerCluster == 0 {
		return fmt.Errorf("%w: %dx%dx%d with %d lights per cluster", ErrInvalidGrid, g.X, g.Y, g.Z, g.MaxLightsPerCluster)
	}
	return nil
}

// Count returns the number of clusters.
func (g ClusterGrid) Count() uint32 {
	return g.X * g.Y * g.Z
}

// RecordStride returns the number of u32 words in one cluster record.
func (g ClusterGrid) RecordStride() uint32 {
	return g.MaxLightsPerCluster + 1
}

// BufferSize returns the byte size of the cluster buffer, never less than the minimum
// binding size of the cluster layouts.
//
// Returns:
//   - uint64: header plus every record, in bytes
func (g ClusterGrid) BufferSize() uint64 {
	return max(contract.ClusterHeaderSize+uint64(g.Count())*uint64(g.RecordStride())*4, contract.ClusterSetMinSize)
}

// Workgroups returns the dispatch size covering every cluster.
//
// Returns:
//   - [3]uint32: the workgroup counts in x, y and z
func (g ClusterGrid) Workgroups() [3]uint32 {
	return [3]uint32{
		common.CeilDiv(g.X, ClusterWorkgroupSize),
		common.CeilDiv(g.Y, ClusterWorkgroupSize),
		common.CeilDiv(g.Z, ClusterWorkgroupSize),
	}
}

// Index returns the linear index of cluster (x, y, z).
func (g ClusterGrid) Index(x, y, z uint32) uint32 {
	return x + y*g.X + z*g.X*g.Y
}

// MarshalHeader serializes the grid into the cluster buffer header.
//
// Returns:
//   - []byte: ClusterHeaderSize bytes
func (g ClusterGrid) MarshalHeader() []byte {
	buf := make([]byte, contract.ClusterHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], g.X)
	binary.LittleEndian.PutUint32(buf[4:], g.Y)
	binary.LittleEndian.PutUint32(buf[8:], g.Z)
	binary.LittleEndian.PutUint32(buf[12:], g.MaxLightsPerCluster)
	return buf
}

// ReadClusterGrid decodes the grid from a cluster buffer header.
//
// Parameters:
//   - buf: the cluster buffer, at least ClusterHeaderSize bytes
//
// Returns:
//   - ClusterGrid: the decoded grid
func ReadClusterGrid(buf []byte) ClusterGrid {
	return ClusterGrid{
		X:                   binary.LittleEndian.Uint32(buf[0:]),
		Y:                   binary.LittleEndian.Uint32(buf[4:]),
		Z:                   binary.LittleEndian.Uint32(buf[8:]),
		MaxLightsPerCluster: binary.LittleEndian.Uint32(buf[12:]),
	}
}

// SliceDepth returns the view depth of the boundary at the start of slice k.
//
// Parameters:
//   - k: the slice boundary, 0 is the near plane and slices is the far plane
//   - slices: the number of depth slices
//   - near, far: the clip plane distances
//
// Returns:
//   - float32: the positive view depth
func SliceDepth(k, slices uint32, near, far float32) float32 {
	return near * math32.Pow(far/near, float32(k)/float32(slices))
}

// Slice returns the depth slice holding a positive view depth. Depths outside the clip
// range clamp to the first or last slice.
func (g ClusterGrid) Slice(viewDepth, near, far float32) uint32 {
	s := math32.Log(math32.Max(viewDepth, near)/near) / math32.Log(far/near)
	return min(uint32(math32.Max(s, 0)*float32(g.Z)), g.Z-1)
}

// ClusterAt returns the index of the cluster holding a fragment.
//
// Parameters:
//   - fragX, fragY: framebuffer coordinates, y down
//   - width, height: the framebuffer size
//   - viewDepth: the positive view depth of the fragment
//   - near, far: the clip plane distances
//
// Returns:
//   - uint32: the cluster index
func (g ClusterGrid) ClusterAt(fragX, fragY, width, height, viewDepth, near, far float32) uint32 {
	cx := min(uint32(math32.Max(fragX/width, 0)*float32(g.X)), g.X-1)
	cy := min(uint32(math32.Max(fragY/height, 0)*float32(g.Y)), g.Y-1)
	return g.Index(cx, cy, g.Slice(viewDepth, near, far))
}

// Bounds returns the view-space bounding box of cluster (x, y, z).
//
// Parameters:
//   - x, y, z: the cluster coordinates
//   - invProj: the inverse projection matrix
//   - near, far: the clip plane distances
//
// Returns:
//   - [3]float32: the box minimum
//   - [3]float32: the box maximum
func (g ClusterGrid) Bounds(x, y, z uint32, invProj [16]float32, near, far float32) ([3]float32, [3]float32) {
	x0 := float32(x)/float32(g.X)*2 - 1
	x1 := float32(x+1)/float32(g.X)*2 - 1
	y0 := 1 - float32(y+1)/float32(g.Y)*2
	y1 := 1 - float32(y)/float32(g.Y)*2
	d0 := SliceDepth(z, g.Z, near, far)
	d1 := SliceDepth(z+1, g.Z, near, far)

	lo := [3]float32{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	hi := [3]float32{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for _, c := range [4][2]float32{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		for _, d := range [2]float32{d0, d1} {
			p := viewPoint(invProj, c, d)
			for i := range 3 {
				lo[i] = math32.Min(lo[i], p[i])
				hi[i] = math32.Max(hi[i], p[i])
			}
		}
	}
	return lo, hi
}

// viewPoint returns the point on the view ray through an NDC position at view depth d.
func viewPoint(invProj [16]float32, ndc [2]float32, d float32) [3]float32 {
	p := common.MulVec4(invProj[:], [4]float32{ndc[0], ndc[1], 0, 1})
	v := [3]float32{p[0] / p[3], p[1] / p[3], p[2] / p[3]}
	s := d / -v[2]
	return [3]float32{v[0] * s, v[1] * s, v[2] * s}
}

// Assign fills the records of a cluster buffer with the lights whose bounding spheres
// touch each cluster. The header of buf is left untouched.
//
// Parameters:
//   - buf: the cluster buffer, at least BufferSize bytes
//   - view: the view matrix
//   - invProj: the inverse projection matrix
//   - near, far: the clip plane distances
//   - lights: the light list in index order
func (g ClusterGrid) Assign(buf []byte, view, invProj [16]float32, near, far float32, lights []GPULight) {
	centers := make([][3]float32, len(lights))
	for i, l := range lights {
		c := common.MulVec4(view[:], [4]float32{l.Position[0], l.Position[1], l.Position[2], 1})
		centers[i] = [3]float32{c[0], c[1], c[2]}
	}

	for z := range g.Z {
		for y := range g.Y {
			for x := range g.X {
				lo, hi := g.Bounds(x, y, z, invProj, near, far)
				g.assignCluster(buf, g.Index(x, y, z), lo, hi, centers, lights)
			}
		}
	}
}

func (g ClusterGrid) assignCluster(buf []byte, index uint32, lo, hi [3]float32, centers [][3]float32, lights []GPULight) {
	record := contract.ClusterHeaderSize + int(index*g.RecordStride())*4
	var count uint32
	for i, center := range centers {
		var closest [3]float32
		for k := range 3 {
			closest[k] = common.Clamp(center[k], lo[k], hi[k])
		}
		delta := common.Sub3(center, closest)
		r := lights[i].Range
		if common.Dot3(delta, delta) > r*r {
			continue
		}
		if count < g.MaxLightsPerCluster {
			binary.LittleEndian.PutUint32(buf[record+4+int(count)*4:], uint32(i))
			count++
		}
	}
	binary.LittleEndian.PutUint32(buf[record:], count)
}

// Lights returns the light indices stored in one cluster record.
//
// Parameters:
//   - buf: the cluster buffer
//   - index: the cluster index
//
// Returns:
//   - []uint32: the light indices, in ascending order
func (g ClusterGrid) Lights(buf []byte, index uint32) []uint32 {
	record := contract.ClusterHeaderSize + int(index*g.RecordStride())*4
	count := min(binary.LittleEndian.Uint32(buf[record:]), g.MaxLightsPerCluster)
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[record+4+i*4:])
	}
	return out
}
