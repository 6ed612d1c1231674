// Package assets embeds the WGSL sources of the built-in passes.
package assets

import (
	"embed"
	"fmt"
)

// Embedded source names.
const (
	GeometryVertex   = "geometry.vert.wgsl"
	GeometryFragment = "geometry.frag.wgsl"
	ResolveVertex    = "resolve.vert.wgsl"
	ResolveFragment  = "resolve.frag.wgsl"
	ClusterCompute   = "cluster.comp.wgsl"
)

//go:embed *.wgsl
var shaders embed.FS

// Source returns the embedded WGSL source called name.
//
// Parameters:
//   - name: one of the source name constants
//
// Returns:
//   - string: the annotated WGSL source
//   - error: an error if no source has that name
func Source(name string) (string, error) {
	data, err := shaders.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("assets: %w", err)
	}
	return string(data), nil
}

// Names returns the names of every embedded source.
func Names() []string {
	return []string{GeometryVertex, GeometryFragment, ResolveVertex, ResolveFragment, ClusterCompute}
}
