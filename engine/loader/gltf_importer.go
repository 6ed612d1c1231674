package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// importedModel is the CPU side of a static model: baked primitives and the materials
// they index.
type importedModel struct {
	name       string
	primitives []importedPrimitive
	materials  []material.Material
}

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter runs the parser and the extractors over one glTF or GLB document.
type gltfImporter interface {
	// Import loads a .gltf or .glb file.
	//
	// Parameters:
	//   - path: the file path
	//
	// Returns:
	//   - *importedModel: the baked primitives and their materials
	//   - error: error if parsing or extraction fails
	Import(path string) (*importedModel, error)

	// ImportReader loads a document from r.
	//
	// Parameters:
	//   - name: the model name
	//   - r: the document bytes
	//   - isGLB: true for the binary container
	//   - baseDir: the directory external URIs resolve against, or "" to reject them
	//
	// Returns:
	//   - *importedModel: the baked primitives and their materials
	//   - error: error if parsing or extraction fails
	ImportReader(name string, r io.Reader, isGLB bool, baseDir string) (*importedModel, error)
}

var _ gltfImporter = &gltfImporterImpl{}

func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (i *gltfImporterImpl) Import(path string) (*importedModel, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return i.extract(name, parser)
}

func (i *gltfImporterImpl) ImportReader(name string, r io.Reader, isGLB bool, baseDir string) (*importedModel, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB, baseDir); err != nil {
		return nil, err
	}
	return i.extract(name, parser)
}

func (i *gltfImporterImpl) extract(name string, parser gltfParser) (*importedModel, error) {
	primitives, err := newGLTFMeshExtractor(parser).ExtractScene()
	if err != nil {
		return nil, fmt.Errorf("failed to extract meshes: %w", err)
	}

	doc := parser.Document()
	materials := make([]material.Material, len(doc.Materials))
	extractor := newGLTFMaterialExtractor(parser)
	for idx := range doc.Materials {
		mat, err := extractor.ExtractMaterial(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to extract materials: %w", err)
		}
		materials[idx] = mat
	}
	for _, p := range primitives {
		if p.material >= len(materials) {
			return nil, fmt.Errorf("primitive %q: material index %d out of range", p.data.Name, p.material)
		}
	}
	return &importedModel{name: name, primitives: primitives, materials: materials}, nil
}
