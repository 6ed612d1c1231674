package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[renderer]
workers = 2
shader_validation = false

[logging]
level = "warn"
`), 0o644))
	return path
}

func TestRun_WritesResizedSnapshot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, run(options{configPath: writeConfig(t), width: 40, height: 30, resize: "64x48", frames: 2, lights: 4, output: out}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestRun_Rejects(t *testing.T) {
	dir := t.TempDir()
	base := options{configPath: writeConfig(t), width: 40, height: 30, frames: 1, lights: 1, output: filepath.Join(dir, "a.png")}

	for name, mutate := range map[string]func(*options){
		"no frames":      func(o *options) { o.frames = 0 },
		"bad resize":     func(o *options) { o.resize = "64by48" },
		"bad format":     func(o *options) { o.output = filepath.Join(dir, "c.gif") },
		"missing config": func(o *options) { o.configPath = filepath.Join(dir, "missing.toml") },
		"missing model":  func(o *options) { o.modelPath = filepath.Join(dir, "missing.glb") },
	} {
		o := base
		mutate(&o)
		assert.Error(t, run(o), name)
	}
	assert.NoFileExists(t, base.output)
}
