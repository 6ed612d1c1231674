package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	dev              backend.Backend
	baseDir          string
	defaultBaseColor [4]float32

	modelCache map[string]model.Model
	gltf       loaderBackend
}

// Loader imports static models from files into GPU meshes and materials, and caches them
// by path or name. Node hierarchies are baked into model space; skins, animations and
// morph targets are ignored.
type Loader interface {
	// Load imports a .gltf or .glb file, or returns the cached model for path.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - model.Model: the model, one primitive per instanced glTF primitive
	//   - error: error if the format is unsupported, or parsing or upload fails
	Load(path string) (model.Model, error)

	// LoadReader imports a model from r and caches it under name. External buffers and
	// images resolve against the WithBaseDir directory.
	//
	// Parameters:
	//   - name: the cache key and model name
	//   - r: the document bytes
	//   - isGLB: true for the binary container
	//
	// Returns:
	//   - model.Model: the model
	//   - error: error if parsing or upload fails
	LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error)

	// Get retrieves a cached model by path or name.
	//
	// Parameters:
	//   - name: the cache key
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by path or name
	Models() map[string]model.Model

	// Release destroys every cached model and empties the cache.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a Loader that uploads meshes to dev.
//
// Parameters:
//   - dev: the backend meshes are created on
//   - options: LoaderBuilderOption functions to configure the loader
//
// Returns:
//   - Loader: the loader
func NewLoader(dev backend.Backend, options ...LoaderBuilderOption) Loader {
	l := &loader{
		dev:              dev,
		defaultBaseColor: [4]float32{1, 1, 1, 1},
		modelCache:       make(map[string]model.Model),
		gltf:             newGLTFLoaderBackend(),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if m := l.Get(path); m != nil {
		return m, nil
	}
	format, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	imported, err := format.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.store(path, imported)
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error) {
	if m := l.Get(name); m != nil {
		return m, nil
	}
	imported, err := l.gltf.LoadReader(name, r, isGLB, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	return l.store(name, imported)
}

// store uploads imported and caches it under key. When another goroutine stored the same
// key first, the new upload is released and the cached model returned.
func (l *loader) store(key string, imported *importedModel) (model.Model, error) {
	m, err := l.importedToModel(imported)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.modelCache[key]; ok {
		m.Release()
		return cached, nil
	}
	l.modelCache[key] = m
	logger.Debug("model loaded", "key", key, "primitives", len(m.Primitives()))
	return m, nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, m := range l.modelCache {
		m.Release()
		delete(l.modelCache, key)
	}
}

// resolveBackend selects the loader backend for a file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return l.gltf, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", ext)
	}
}

// importedToModel uploads each baked primitive as its own mesh. Primitives without a
// material share one default material of the configured base color.
func (l *loader) importedToModel(imported *importedModel) (model.Model, error) {
	if len(imported.primitives) == 0 {
		return nil, fmt.Errorf("model %q has no triangle primitives", imported.name)
	}

	var fallback material.Material
	primitives := make([]model.Primitive, 0, len(imported.primitives))
	for _, p := range imported.primitives {
		mesh, err := model.NewMesh(l.dev, p.data)
		if err != nil {
			model.NewModel(model.WithPrimitives(primitives...)).Release()
			return nil, fmt.Errorf("failed to upload %q: %w", p.data.Name, err)
		}
		mat := fallback
		if p.material >= 0 {
			mat = imported.materials[p.material]
		} else if mat == nil {
			fallback = material.NewMaterial(
				material.WithName(imported.name+"_default"),
				material.WithBaseColor(l.defaultBaseColor),
			)
			mat = fallback
		}
		primitives = append(primitives, model.Primitive{Mesh: mesh, Material: mat})
	}
	return model.NewModel(model.WithName(imported.name), model.WithPrimitives(primitives...)), nil
}
