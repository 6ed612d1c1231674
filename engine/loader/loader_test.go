package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAsset builds a two-node document: a red textured triangle translated to z = -2 and
// a child instance of an untextured triangle scaled by 2.
func testAsset(t *testing.T) (map[string]any, []byte) {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)))
	}
	for _, i := range []uint16{0, 1, 2, 0} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, i))
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, img))
	imageOffset := buf.Len()
	buf.Write(encoded.Bytes())
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}

	doc := map[string]any{
		"asset":  map[string]any{"version": "2.0"},
		"scene":  0,
		"scenes": []any{map[string]any{"nodes": []int{0}}},
		"nodes": []any{
			map[string]any{"name": "root", "mesh": 0, "translation": []float32{0, 0, -2}, "children": []int{1}},
			map[string]any{"name": "child", "mesh": 1, "scale": []float32{2, 2, 2}},
		},
		"meshes": []any{
			map[string]any{"name": "red", "primitives": []any{map[string]any{"attributes": map[string]int{"POSITION": 0}, "indices": 1, "material": 0}}},
			map[string]any{"primitives": []any{map[string]any{"attributes": map[string]int{"POSITION": 0}, "indices": 1}}},
		},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 3, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
			map[string]any{"buffer": 0, "byteOffset": imageOffset, "byteLength": encoded.Len()},
		},
		"buffers":  []any{map[string]any{"byteLength": buf.Len()}},
		"images":   []any{map[string]any{"bufferView": 2, "mimeType": "image/png"}},
		"samplers": []any{map[string]any{"magFilter": gltfFilterNearest, "wrapS": gltfWrapClampToEdge}},
		"textures": []any{map[string]any{"source": 0, "sampler": 0}},
		"materials": []any{map[string]any{
			"name": "red",
			"pbrMetallicRoughness": map[string]any{
				"baseColorFactor":  []float32{1, 0, 0, 1},
				"baseColorTexture": map[string]any{"index": 0},
			},
		}},
	}
	return doc, buf.Bytes()
}

func gltfJSON(t *testing.T, doc map[string]any, bin []byte) []byte {
	t.Helper()
	doc["buffers"] = []any{map[string]any{
		"byteLength": len(bin),
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(bin),
	}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func glb(t *testing.T, doc map[string]any, bin []byte) []byte {
	t.Helper()
	jsonData, err := json.Marshal(doc)
	require.NoError(t, err)
	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}

	var out bytes.Buffer
	total := 12 + 8 + len(jsonData) + 8 + len(bin)
	for _, v := range []uint32{gltfGLBMagic, gltfGLBVersion, uint32(total), uint32(len(jsonData)), gltfGLBChunkJSON} {
		require.NoError(t, binary.Write(&out, binary.LittleEndian, v))
	}
	out.Write(jsonData)
	for _, v := range []uint32{uint32(len(bin)), gltfGLBChunkBIN} {
		require.NoError(t, binary.Write(&out, binary.LittleEndian, v))
	}
	out.Write(bin)
	return out.Bytes()
}

func TestLoader_LoadGLTF(t *testing.T) {
	doc, bin := testAsset(t)
	path := filepath.Join(t.TempDir(), "triangles.gltf")
	require.NoError(t, os.WriteFile(path, gltfJSON(t, doc, bin), 0o644))

	l := NewLoader(backend.NewSoftwareBackend())
	defer l.Release()
	m, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "triangles", m.Name())

	prims := m.Primitives()
	require.Len(t, prims, 2)
	assert.Equal(t, uint32(3), prims[0].Mesh.IndexCount())
	assert.Equal(t, "red_0", prims[0].Mesh.Name())
	assert.Equal(t, [4]float32{1, 0, 0, 1}, prims[0].Material.BaseColor())
	assert.Equal(t, [4]float32{1, 1, 1, 1}, prims[1].Material.BaseColor())
	assert.Len(t, m.Materials(), 2)

	lo, hi := prims[0].Mesh.Bounds()
	assert.Equal(t, [3]float32{0, 0, -2}, lo)
	assert.Equal(t, [3]float32{1, 1, -2}, hi)
	lo, hi = prims[1].Mesh.Bounds()
	assert.Equal(t, [3]float32{0, 0, -2}, lo)
	assert.Equal(t, [3]float32{2, 2, -2}, hi)

	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Len(t, l.Models(), 1)
}

func TestLoader_LoadReaderGLB(t *testing.T) {
	doc, bin := testAsset(t)
	l := NewLoader(backend.NewSoftwareBackend(), WithDefaultBaseColor([4]float32{0, 0, 1, 1}))
	defer l.Release()

	m, err := l.LoadReader("glb", bytes.NewReader(glb(t, doc, bin)), true)
	require.NoError(t, err)
	require.Len(t, m.Primitives(), 2)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, m.Primitives()[1].Material.BaseColor())
	assert.NotNil(t, l.Get("glb"))

	l.Release()
	assert.Nil(t, l.Get("glb"))
}

func TestLoader_GeneratedNormals(t *testing.T) {
	doc, bin := testAsset(t)
	p := newGLTFParser()
	require.NoError(t, p.ParseReader(bytes.NewReader(gltfJSON(t, doc, bin)), false, ""))
	prims, err := newGLTFMeshExtractor(p).ExtractScene()
	require.NoError(t, err)
	require.Len(t, prims, 2)
	for _, v := range prims[0].data.Vertices {
		assert.InDeltaSlice(t, []float32{0, 0, 1}, v.Normal[:], 1e-6)
	}
	assert.Equal(t, 0, prims[0].material)
	assert.Equal(t, -1, prims[1].material)
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(backend.NewSoftwareBackend())
	defer l.Release()

	_, err := l.Load("model.obj")
	assert.ErrorContains(t, err, "unsupported model format")

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.gltf"))
	assert.Error(t, err)

	doc, bin := testAsset(t)
	doc["asset"] = map[string]any{"version": "1.0"}
	_, err = l.LoadReader("old", bytes.NewReader(gltfJSON(t, doc, bin)), false)
	assert.ErrorIs(t, err, errInvalidGLTFVersion)

	doc, bin = testAsset(t)
	doc["extensionsRequired"] = []string{"KHR_draco_mesh_compression"}
	_, err = l.LoadReader("draco", bytes.NewReader(gltfJSON(t, doc, bin)), false)
	assert.ErrorContains(t, err, "KHR_draco_mesh_compression")

	doc, bin = testAsset(t)
	doc["meshes"].([]any)[0].(map[string]any)["primitives"] = []any{map[string]any{"attributes": map[string]int{"NORMAL": 0}}}
	_, err = l.LoadReader("nopos", bytes.NewReader(gltfJSON(t, doc, bin)), false)
	assert.ErrorContains(t, err, "POSITION")

	doc, bin = testAsset(t)
	_, err = l.LoadReader("badglb", bytes.NewReader(gltfJSON(t, doc, bin)), true)
	assert.ErrorIs(t, err, errInvalidGLBMagic)

	// External URIs need a base directory.
	doc, bin = testAsset(t)
	doc["buffers"] = []any{map[string]any{"byteLength": len(bin), "uri": "triangles.bin"}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	_, err = l.LoadReader("external", bytes.NewReader(data), false)
	assert.ErrorContains(t, err, "base directory")

	assert.Empty(t, l.Models())
}

func TestLoader_ExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	doc, bin := testAsset(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triangles.bin"), bin, 0o644))
	doc["buffers"] = []any{map[string]any{"byteLength": len(bin), "uri": "triangles.bin"}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	l := NewLoader(backend.NewSoftwareBackend(), WithBaseDir(dir))
	defer l.Release()
	m, err := l.LoadReader("external", bytes.NewReader(data), false)
	require.NoError(t, err)
	assert.Len(t, m.Primitives(), 2)
}

func TestConvertSampler(t *testing.T) {
	nearest, clamp, mirror := gltfFilterNearest, gltfWrapClampToEdge, gltfWrapMirroredRepeat
	s := convertSampler(&gltfSampler{MagFilter: &nearest, MinFilter: &nearest, WrapS: &clamp, WrapT: &mirror})
	assert.Equal(t, defaultSampler().AddressModeW, s.AddressModeW)
	assert.NotEqual(t, defaultSampler().MagFilter, s.MagFilter)
	assert.NotEqual(t, s.AddressModeU, s.AddressModeV)
	assert.Equal(t, defaultSampler(), convertSampler(&gltfSampler{}))
}
