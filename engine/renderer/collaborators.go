package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// ComputeRecorder is the narrow recorder handed to the light clusterer.
type ComputeRecorder = pipeline.ComputeRecorder

// SceneVisitor receives the geometry pass draw stream from the scene traversal.
type SceneVisitor = pipeline.GeometryVisitor

// SceneTraversal walks the drawable scene for the geometry pass.
type SceneTraversal interface {
	// Iterate visits every drawable node synchronously in node, material, primitive order.
	//
	// Parameters:
	//   - v: the visitor recording the draws
	//
	// Returns:
	//   - error: the first error from v, or a traversal error
	Iterate(v SceneVisitor) error
}

// LightClusterer owns the light list and the cluster buffer and records the clustering
// dispatch. Both buffers bind to the resolve set and must keep their identity.
type LightClusterer interface {
	LightBuffer() backend.Buffer
	ClusterBuffer() backend.Buffer
	DoLightClustering(rec ComputeRecorder) error
}

// CameraSource provides the camera uniform buffer bound at slot 0 of the scene and
// resolve sets.
type CameraSource interface {
	Buffer() backend.Buffer
}
