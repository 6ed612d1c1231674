package contract

import "github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"

// WGSL struct sources matching the byte layouts above. They are registered as shader
// includes under the names of the constants below.
const (
	IncludeCamera   = "camera"
	IncludeModel    = "model"
	IncludeMaterial = "material"
	IncludeLight    = "light"
	IncludeCluster  = "cluster"
)

// CameraWGSL is the camera uniform, CameraUniformSize bytes.
const CameraWGSL = `struct Camera {
    view_proj: mat4x4<f32>,
    view: mat4x4<f32>,
    inv_proj: mat4x4<f32>,
    position: vec3<f32>,
    near: f32,
    resolution: vec2<f32>,
    far: f32,
    _pad: f32,
}`

// ModelWGSL is the per-node uniform, ModelUniformSize bytes.
const ModelWGSL = `struct Model {
    model: mat4x4<f32>,
    normal: mat4x4<f32>,
}`

// MaterialWGSL is the per-material uniform, MaterialUniformSize bytes.
const MaterialWGSL = `struct Material {
    base_color: vec4<f32>,
}`

// LightWGSL is one light of LightSize bytes and the light list header. Kind 0 is a point
// light, kind 1 a spot light.
const LightWGSL = `struct Light {
    position: vec3<f32>,
    range: f32,
    color: vec3<f32>,
    intensity: f32,
    direction: vec3<f32>,
    kind: u32,
    inner_cos: f32,
    outer_cos: f32,
    _pad: vec2<f32>,
}

struct LightSet {
    ambient: vec3<f32>,
    count: u32,
    lights: array<Light>,
}`

// ClusterWGSL is the cluster buffer: the grid size and per-cluster capacity, then one
// record per cluster holding a light count followed by capacity light indices.
const ClusterWGSL = `struct ClusterSet {
    grid: vec4<u32>,
    records: array<u32>,
}`

func init() {
	shader.RegisterInclude(IncludeCamera, CameraWGSL)
	shader.RegisterInclude(IncludeModel, ModelWGSL)
	shader.RegisterInclude(IncludeMaterial, MaterialWGSL)
	shader.RegisterInclude(IncludeLight, LightWGSL)
	shader.RegisterInclude(IncludeCluster, ClusterWGSL)
}
