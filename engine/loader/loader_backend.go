package loader

import (
	"io"
)

// loaderBackend loads one model file format into CPU-side data.
type loaderBackend interface {
	// Load imports the model at path.
	Load(path string) (*importedModel, error)

	// LoadReader imports a model from r. External references resolve against baseDir.
	LoadReader(name string, r io.Reader, isBinary bool, baseDir string) (*importedModel, error)
}
