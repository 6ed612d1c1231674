//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/magefile/mage/mg"
)

type Shaders mg.Namespace

// Check validates the WGSL sources and their binding layouts by building the clustering,
// geometry and resolve pipelines on the software backend. OXY_SHADER_DIR overrides the
// embedded sources.
func (Shaders) Check() error {
	dir := os.Getenv("OXY_SHADER_DIR")
	src, err := renderer.LoadShaderSources(dir)
	if err != nil {
		return err
	}

	dev := backend.NewSoftwareBackend()
	defer dev.Release()
	cam := camera.NewCamera(camera.WithViewport(64, 64))
	defer cam.Release()
	if err := cam.Flush(dev); err != nil {
		return err
	}
	clusterer, err := light.NewClusterer(dev, cam, light.WithShaderValidation(true))
	if err != nil {
		return fmt.Errorf("cluster shader: %w", err)
	}
	defer clusterer.Release()

	scn := scene.NewScene()
	defer scn.Release()
	r, err := renderer.New(dev, cam, clusterer, scn,
		renderer.WithSize(64, 64),
		renderer.WithShaderValidation(true),
		renderer.WithShaderSources(src),
	)
	if err != nil {
		return fmt.Errorf("pass shaders: %w", err)
	}
	r.Release()
	fmt.Println("shaders ok")
	return nil
}
