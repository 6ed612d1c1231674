package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
)

// importedPrimitive is one triangle primitive baked into model space with the index of
// its glTF material, -1 when it has none.
type importedPrimitive struct {
	data     model.MeshData
	material int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor turns the meshes a glTF scene instantiates into static vertex data.
type gltfMeshExtractor interface {
	// ExtractScene walks the default scene (or the first one, or every root node when the
	// document has no scenes) and bakes each instanced primitive by its node's world
	// transform.
	//
	// Returns:
	//   - []importedPrimitive: one entry per instanced triangle primitive
	//   - error: error if an accessor cannot be read or a primitive is not triangles
	ExtractScene() ([]importedPrimitive, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractScene() ([]importedPrimitive, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		roots = rootNodes(doc)
	}

	var out []importedPrimitive
	var identity [16]float32
	common.Identity(identity[:])
	visited := make(map[int]bool)
	for _, root := range roots {
		if err := e.walk(root, identity, visited, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rootNodes returns the nodes no other node lists as a child.
func rootNodes(doc *gltfDocument) []int {
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

func (e *gltfMeshExtractorImpl) walk(nodeIndex int, parent [16]float32, visited map[int]bool, out *[]importedPrimitive) error {
	doc := e.parser.Document()
	if nodeIndex < 0 || nodeIndex >= len(doc.Nodes) {
		return fmt.Errorf("node index %d out of range", nodeIndex)
	}
	if visited[nodeIndex] {
		return fmt.Errorf("node %d: cycle in node hierarchy", nodeIndex)
	}
	visited[nodeIndex] = true
	defer delete(visited, nodeIndex)

	node := &doc.Nodes[nodeIndex]
	local := localMatrix(node)
	var world [16]float32
	common.Mul4(world[:], parent[:], local[:])

	if node.Mesh != nil {
		if *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
			return fmt.Errorf("node %d: mesh index %d out of range", nodeIndex, *node.Mesh)
		}
		mesh := &doc.Meshes[*node.Mesh]
		for i := range mesh.Primitives {
			prim, err := e.extractPrimitive(&mesh.Primitives[i], world)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", *node.Mesh, i, err)
			}
			prim.data.Name = primitiveName(node, mesh, i)
			*out = append(*out, prim)
		}
	}
	for _, c := range node.Children {
		if err := e.walk(c, world, visited, out); err != nil {
			return err
		}
	}
	return nil
}

func primitiveName(node *gltfNode, mesh *gltfMesh, index int) string {
	name := mesh.Name
	if name == "" {
		name = node.Name
	}
	if name == "" {
		name = "mesh"
	}
	return fmt.Sprintf("%s_%d", name, index)
}

// localMatrix returns a node's column-major local transform: its matrix, or T * R * S.
func localMatrix(n *gltfNode) [16]float32 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	t := [3]float32{}
	if n.Translation != nil {
		t = *n.Translation
	}
	q := [4]float32{0, 0, 0, 1}
	if n.Rotation != nil {
		q = *n.Rotation
	}
	s := [3]float32{1, 1, 1}
	if n.Scale != nil {
		s = *n.Scale
	}

	x, y, z, w := q[0], q[1], q[2], q[3]
	return [16]float32{
		(1 - 2*(y*y+z*z)) * s[0], 2 * (x*y + z*w) * s[0], 2 * (x*z - y*w) * s[0], 0,
		2 * (x*y - z*w) * s[1], (1 - 2*(x*x+z*z)) * s[1], 2 * (y*z + x*w) * s[1], 0,
		2 * (x*z + y*w) * s[2], 2 * (y*z - x*w) * s[2], (1 - 2*(x*x+y*y)) * s[2], 0,
		t[0], t[1], t[2], 1,
	}
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, world [16]float32) (importedPrimitive, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return importedPrimitive{}, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return importedPrimitive{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadFloats(posAccessor, 3)
	if err != nil {
		return importedPrimitive{}, fmt.Errorf("failed to read positions: %w", err)
	}
	count := len(positions) / 3
	vertices := make([]model.GPUVertex, count)

	var normals, uvs []float32
	if a, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = e.parser.ReadFloats(a, 3); err != nil {
			return importedPrimitive{}, fmt.Errorf("failed to read normals: %w", err)
		}
	}
	if a, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = e.parser.ReadFloats(a, 2); err != nil {
			return importedPrimitive{}, fmt.Errorf("failed to read texcoords: %w", err)
		}
	}

	var inverse [16]float32
	if !common.Invert4(inverse[:], world[:]) {
		common.Identity(inverse[:])
	}
	for i := range vertices {
		p := common.MulVec4(world[:], [4]float32{positions[i*3], positions[i*3+1], positions[i*3+2], 1})
		vertices[i].Position = [3]float32{p[0], p[1], p[2]}
		if len(normals) >= (i+1)*3 {
			n := [3]float32{normals[i*3], normals[i*3+1], normals[i*3+2]}
			// Normals transform by the inverse transpose.
			var t [3]float32
			for r := range 3 {
				t[r] = inverse[r*4]*n[0] + inverse[r*4+1]*n[1] + inverse[r*4+2]*n[2]
			}
			vertices[i].Normal = common.Normalize3(t)
		}
		if len(uvs) >= (i+1)*2 {
			vertices[i].TexCoord = [2]float32{uvs[i*2], uvs[i*2+1]}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.ReadIndices(*prim.Indices); err != nil {
			return importedPrimitive{}, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= count {
				return importedPrimitive{}, fmt.Errorf("index %d out of range for %d vertices", idx, count)
			}
		}
	} else {
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return importedPrimitive{}, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}

	data := model.MeshData{Vertices: vertices, Indices: indices}
	if normals == nil {
		data.GenerateNormals()
	}
	material := -1
	if prim.Material != nil {
		material = *prim.Material
	}
	return importedPrimitive{data: data, material: material}, nil
}
