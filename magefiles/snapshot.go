//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Snapshot mg.Namespace

// Render writes snapshot.png from the demo scene on the software backend.
func (Snapshot) Render() error {
	mg.Deps(Shaders.Check)
	_, err := executeCmd("go", withArgs("run", "./cmd/oxy-snapshot", "-width", "640", "-height", "360", "-output", "snapshot.png"), withStream())
	return err
}

// Resize renders at 640x360, resizes to 1280x720 before the last frame and writes
// snapshot-resized.png.
func (Snapshot) Resize() error {
	_, err := executeCmd("go", withArgs("run", "./cmd/oxy-snapshot", "-width", "640", "-height", "360", "-resize", "1280x720", "-frames", "3", "-output", "snapshot-resized.png"), withStream())
	return err
}
