package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	formats, err := cfg.Formats()
	require.NoError(t, err)
	assert.Equal(t, gbuffer.DefaultFormats(), formats)
	assert.Equal(t, light.DefaultClusterGrid(), cfg.Grid())

	bt, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, backend.BackendTypeWGPU, bt)
}

func TestParse_MergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
width = 800
height = 600

[renderer]
backend = "software"
present_mode = "uncapped"
workers = 2

[gbuffer]
albedo = "rgba16float"
depth = "depth32float"

[clustering]
grid_z = 8

[lighting]
ambient = [0.1, 0.2, 0.3]
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, "oxy-deferred", cfg.Window.Title)
	assert.Equal(t, 2, cfg.Renderer.Workers)
	assert.True(t, cfg.Renderer.ShaderValidation)

	bt, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, backend.BackendTypeSoftware, bt)
	mode, err := cfg.PresentMode()
	require.NoError(t, err)
	assert.Equal(t, backend.PresentModeUncapped, mode)

	formats, err := cfg.Formats()
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, formats.Albedo)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, formats.Depth)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, formats.Position)

	grid := cfg.Grid()
	assert.Equal(t, uint32(8), grid.Z)
	assert.Equal(t, uint32(16), grid.X)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, cfg.Lighting.Ambient)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "[window]\ncolour = 1\n"},
		{"unknown backend", "[renderer]\nbackend = \"vulkan\"\n"},
		{"depth format as albedo", "[gbuffer]\nalbedo = \"depth24plus\"\n"},
		{"unknown format", "[gbuffer]\nnormal = \"r11g11b10\"\n"},
		{"unorm normal", "[gbuffer]\nnormal = \"rgba8unorm\"\n"},
		{"zero grid", "[clustering]\ngrid_x = 0\n"},
		{"zero window", "[window]\nwidth = 0\n"},
		{"log level", "[logging]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("[renderer]\nworkers = -1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oxy.toml")

	cfg := Default()
	cfg.Renderer.Backend = "software"
	cfg.Clustering.MaxLights = 16
	data, err := cfg.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
