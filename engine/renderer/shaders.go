package renderer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/assets"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// ShaderSources holds the WGSL of the geometry and resolve stages.
type ShaderSources struct {
	GeometryVertex   string
	GeometryFragment string
	ResolveVertex    string
	ResolveFragment  string
}

// DefaultShaderSources returns the embedded sources.
//
// Returns:
//   - ShaderSources: the built-in sources
//   - error: an error if an embedded source is missing
func DefaultShaderSources() (ShaderSources, error) {
	return LoadShaderSources("")
}

// LoadShaderSources reads the stage sources from dir by their embedded file names. A file
// missing from dir, or an empty dir, falls back to the embedded source.
//
// Parameters:
//   - dir: the directory holding overriding .wgsl files, or ""
//
// Returns:
//   - ShaderSources: the sources
//   - error: an error if a present file cannot be read
func LoadShaderSources(dir string) (ShaderSources, error) {
	var src ShaderSources
	for _, entry := range []struct {
		name string
		dst  *string
	}{
		{assets.GeometryVertex, &src.GeometryVertex},
		{assets.GeometryFragment, &src.GeometryFragment},
		{assets.ResolveVertex, &src.ResolveVertex},
		{assets.ResolveFragment, &src.ResolveFragment},
	} {
		if dir != "" {
			data, err := os.ReadFile(filepath.Join(dir, entry.name))
			if err == nil {
				*entry.dst = string(data)
				continue
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return ShaderSources{}, fmt.Errorf("renderer: %w", err)
			}
		}
		s, err := assets.Source(entry.name)
		if err != nil {
			return ShaderSources{}, err
		}
		*entry.dst = s
	}
	return src, nil
}

// buildPipelines compiles the geometry and resolve pipelines from src. Nothing is kept
// on error.
func (r *renderer) buildPipelines(src ShaderSources) (pipeline.Pipeline, pipeline.Pipeline, error) {
	opt := shader.WithValidation(r.validate)
	gv, err := shader.NewShader(GeometryVertexKey, shader.ShaderTypeVertex, src.GeometryVertex, opt)
	if err != nil {
		return nil, nil, err
	}
	gf, err := shader.NewShader(GeometryFragmentKey, shader.ShaderTypeFragment, src.GeometryFragment, opt)
	if err != nil {
		return nil, nil, err
	}
	rv, err := shader.NewShader(ResolveVertexKey, shader.ShaderTypeVertex, src.ResolveVertex, opt)
	if err != nil {
		return nil, nil, err
	}
	rf, err := shader.NewShader(ResolveFragmentKey, shader.ShaderTypeFragment, src.ResolveFragment, opt)
	if err != nil {
		return nil, nil, err
	}

	formats := r.surface.Formats()
	geometry := pipeline.NewPipeline("geometry", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(gv),
		pipeline.WithFragmentShader(gf),
		pipeline.WithBindingLayouts(contract.GeometryLayouts()...),
		pipeline.WithVertexLayouts(model.VertexBufferLayout()),
		pipeline.WithColorTargets(formats.Color()...),
		pipeline.WithDepthFormat(formats.Depth),
		pipeline.WithDepthTestEnabled(true),
		pipeline.WithDepthWriteEnabled(true),
		pipeline.WithBlendEnabled(false),
		pipeline.WithCullMode(r.cullMode),
	)
	if err := geometry.Build(r.dev); err != nil {
		return nil, nil, err
	}

	resolve := pipeline.NewPipeline("resolve", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(rv),
		pipeline.WithFragmentShader(rf),
		pipeline.WithBindingLayouts(contract.ResolveLayouts()...),
		pipeline.WithColorTargets(r.dev.OutputFormat()),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithBlendEnabled(false),
	)
	if err := resolve.Build(r.dev); err != nil {
		geometry.Release()
		return nil, nil, err
	}
	return geometry, resolve, nil
}
