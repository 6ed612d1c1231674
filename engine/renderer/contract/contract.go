// Package contract declares the binding layouts shared between the passes and their
// collaborators. Every producer and consumer of a slot builds its binding set against the
// layout variables declared here, so there is exactly one definition per schema.
package contract

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// Byte sizes of the buffers bound through these layouts.
const (
	// CameraUniformSize is view-projection, view and inverse projection matrices followed by
	// position and near, then resolution, far and padding.
	CameraUniformSize = 224

	// ModelUniformSize is the model matrix followed by the normal matrix.
	ModelUniformSize = 128

	// MaterialUniformSize is the base color.
	MaterialUniformSize = 16

	// LightSetHeaderSize is the ambient color and light count preceding the light array.
	LightSetHeaderSize = 16

	// LightSize is the stride of one light in the light array.
	LightSize = 64

	// ClusterHeaderSize is the grid dimensions and per-cluster capacity preceding the
	// cluster records.
	ClusterHeaderSize = 16

	// LightSetMinSize is the light list header followed by one light.
	LightSetMinSize = LightSetHeaderSize + LightSize

	// ClusterSetMinSize is the header followed by one record word, rounded up to the
	// 16-byte alignment of the ClusterSet struct.
	ClusterSetMinSize = (ClusterHeaderSize + 4 + 15) &^ 15
)

// Bind group indices of the geometry pipeline.
const (
	GroupScene    = 0
	GroupModel    = 1
	GroupMaterial = 2
)

// Slot indices of the Resolve layout.
const (
	ResolveCamera   = 0
	ResolveLights   = 1
	ResolveClusters = 2
	ResolvePosition = 3
	ResolveNormal   = 4
	ResolveAlbedo   = 5
)

// Scene is the geometry pass scene layout: the camera uniform.
var Scene = binding.MustLayout("scene", 1,
	binding.Slot{Index: 0, Visibility: wgpu.ShaderStageVertex, Kind: binding.KindUniformBuffer, MinBindingSize: CameraUniformSize},
)

// Model is the per-node layout: the model uniform.
var Model = binding.MustLayout("model", 1,
	binding.Slot{Index: 0, Visibility: wgpu.ShaderStageVertex, Kind: binding.KindUniformBuffer, MinBindingSize: ModelUniformSize},
)

// Material is the per-material layout: base color uniform, albedo texture and sampler.
var Material = binding.MustLayout("material", 1,
	binding.Slot{Index: 0, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindUniformBuffer, MinBindingSize: MaterialUniformSize},
	binding.Slot{Index: 1, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture},
	binding.Slot{Index: 2, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampler},
)

// Resolve is the resolve pass layout. The G-buffer textures are read with textureLoad.
var Resolve = binding.MustLayout("resolve", 1,
	binding.Slot{Index: ResolveCamera, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindUniformBuffer, MinBindingSize: CameraUniformSize},
	binding.Slot{Index: ResolveLights, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindReadOnlyStorageBuffer, MinBindingSize: LightSetMinSize},
	binding.Slot{Index: ResolveClusters, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindReadOnlyStorageBuffer, MinBindingSize: ClusterSetMinSize},
	binding.Slot{Index: ResolvePosition, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture},
	binding.Slot{Index: ResolveNormal, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture},
	binding.Slot{Index: ResolveAlbedo, Visibility: wgpu.ShaderStageFragment, Kind: binding.KindSampledTexture},
)

// Cluster is the light clustering compute layout.
var Cluster = binding.MustLayout("cluster", 1,
	binding.Slot{Index: 0, Visibility: wgpu.ShaderStageCompute, Kind: binding.KindUniformBuffer, MinBindingSize: CameraUniformSize},
	binding.Slot{Index: 1, Visibility: wgpu.ShaderStageCompute, Kind: binding.KindReadOnlyStorageBuffer, MinBindingSize: LightSetMinSize},
	binding.Slot{Index: 2, Visibility: wgpu.ShaderStageCompute, Kind: binding.KindStorageBuffer, MinBindingSize: ClusterSetMinSize},
)

// GeometryLayouts returns the geometry pipeline layouts in bind group order.
func GeometryLayouts() []*binding.Layout {
	return []*binding.Layout{Scene, Model, Material}
}

// ResolveLayouts returns the resolve pipeline layouts in bind group order.
func ResolveLayouts() []*binding.Layout {
	return []*binding.Layout{Resolve}
}

// ClusterLayouts returns the clustering pipeline layouts in bind group order.
func ClusterLayouts() []*binding.Layout {
	return []*binding.Layout{Cluster}
}
