package light

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
)

// AssignClusters is the clustering kernel as a CPU program for the software backend. It
// reads the camera uniform, light list and cluster buffer bound at group 0 and rewrites
// every cluster record in place.
//
// Parameters:
//   - b: the bindings of the dispatch
//   - workgroups: the dispatched workgroup counts
//
// Returns:
//   - error: an error if a buffer is missing or the dispatch does not cover the grid
func AssignClusters(b *backend.Bindings, workgroups [3]uint32) error {
	cam := b.Buffer(0, 0)
	lightSet := b.Buffer(0, 1)
	clusters := b.Buffer(0, 2)
	if len(cam) < contract.CameraUniformSize || len(lightSet) < contract.LightSetHeaderSize || len(clusters) < contract.ClusterHeaderSize {
		return ErrMissingBinding
	}

	grid := ReadClusterGrid(clusters)
	if err := grid.Validate(); err != nil {
		return err
	}
	if uint64(len(clusters)) < grid.BufferSize() {
		return fmt.Errorf("light: cluster buffer of %d bytes cannot hold a %dx%dx%d grid", len(clusters), grid.X, grid.Y, grid.Z)
	}
	if need := grid.Workgroups(); workgroups[0] < need[0] || workgroups[1] < need[1] || workgroups[2] < need[2] {
		return fmt.Errorf("light: dispatch %v does not cover grid %dx%dx%d", workgroups, grid.X, grid.Y, grid.Z)
	}

	capacity := (len(lightSet) - contract.LightSetHeaderSize) / contract.LightSize
	count := min(int(backend.Uint32At(lightSet, 12)), capacity)
	lights := make([]GPULight, count)
	for i := range lights {
		lights[i] = UnmarshalGPULight(lightSet[contract.LightSetHeaderSize+i*contract.LightSize:])
	}

	grid.Assign(clusters,
		backend.Mat4At(cam, 64),
		backend.Mat4At(cam, 128),
		backend.Float32At(cam, 204),
		backend.Float32At(cam, 216),
		lights,
	)
	return nil
}
