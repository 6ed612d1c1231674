package contract_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/assets"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssets_Validate(t *testing.T) {
	for _, name := range assets.Names() {
		src, err := assets.Source(name)
		require.NoError(t, err, name)
		expanded, err := shader.NewPreProcessor(nil).Process(src)
		require.NoError(t, err, name)
		assert.NoError(t, shader.Validate(expanded), name)
	}
}

func TestAssets_AgreeWithLayouts(t *testing.T) {
	pipelines := []struct {
		name    string
		layouts []*binding.Layout
		stages  map[string]shader.ShaderType
	}{
		{"geometry", contract.GeometryLayouts(), map[string]shader.ShaderType{
			assets.GeometryVertex:   shader.ShaderTypeVertex,
			assets.GeometryFragment: shader.ShaderTypeFragment,
		}},
		{"resolve", contract.ResolveLayouts(), map[string]shader.ShaderType{
			assets.ResolveVertex:   shader.ShaderTypeVertex,
			assets.ResolveFragment: shader.ShaderTypeFragment,
		}},
		{"cluster", contract.ClusterLayouts(), map[string]shader.ShaderType{
			assets.ClusterCompute: shader.ShaderTypeCompute,
		}},
	}

	covered := make(map[string]bool)
	for _, p := range pipelines {
		t.Run(p.name, func(t *testing.T) {
			var stages []shader.Shader
			for name, stage := range p.stages {
				src, err := assets.Source(name)
				require.NoError(t, err)
				s, err := shader.NewShader(name, stage, src, shader.WithValidation(true))
				require.NoError(t, err)
				stages = append(stages, s)
				covered[name] = true
			}
			assert.NoError(t, shader.CheckLayouts(p.layouts, stages...))
		})
	}
	for _, name := range assets.Names() {
		assert.True(t, covered[name], "%s is not checked against any pipeline", name)
	}
}

func TestMinBindingSizes(t *testing.T) {
	// A header plus one element, rounded to the struct alignment of 16.
	assert.Equal(t, 80, contract.LightSetMinSize)
	assert.Equal(t, 32, contract.ClusterSetMinSize)

	for _, l := range []*binding.Layout{contract.Resolve, contract.Cluster} {
		slot, ok := l.SlotByIndex(2)
		require.True(t, ok)
		assert.Equal(t, uint64(contract.ClusterSetMinSize), slot.MinBindingSize, l.Key())
	}
}
