package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/webp"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser
	// images caches decoded images by glTF image index; textures often share one.
	images map[int]common.TextureStagingData
}

// gltfMaterialExtractor converts glTF metallic-roughness materials into albedo materials.
// Only the base color factor and texture are read.
type gltfMaterialExtractor interface {
	// ExtractMaterial builds the material at materialIndex.
	//
	// Parameters:
	//   - materialIndex: the glTF material index
	//
	// Returns:
	//   - material.Material: the material, GPU resources not yet created
	//   - error: error if the base color image cannot be loaded or decoded
	ExtractMaterial(materialIndex int) (material.Material, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

func newGLTFMaterialExtractor(parser gltfParser) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, images: make(map[int]common.TextureStagingData)}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (material.Material, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", materialIndex)
	}
	mat := &doc.Materials[materialIndex]

	name := mat.Name
	if name == "" {
		name = fmt.Sprintf("material_%d", materialIndex)
	}
	options := []material.MaterialBuilderOption{material.WithName(name)}

	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			options = append(options, material.WithBaseColor(*pbr.BaseColorFactor))
		}
		if pbr.BaseColorTexture != nil {
			tex, sampler, err := e.loadTexture(pbr.BaseColorTexture.Index)
			if err != nil {
				return nil, fmt.Errorf("material %q: base color texture: %w", name, err)
			}
			options = append(options, material.WithAlbedoTexture(tex), material.WithSampler(sampler))
		}
	}
	return material.NewMaterial(options...), nil
}

func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int) (common.TextureStagingData, common.SamplerStagingData, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return common.TextureStagingData{}, common.SamplerStagingData{}, fmt.Errorf("texture index %d out of range", textureIndex)
	}
	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return common.TextureStagingData{}, common.SamplerStagingData{}, fmt.Errorf("texture %d has no source image", textureIndex)
	}

	sampler := defaultSampler()
	if tex.Sampler != nil && *tex.Sampler >= 0 && *tex.Sampler < len(doc.Samplers) {
		sampler = convertSampler(&doc.Samplers[*tex.Sampler])
	}

	staged, err := e.loadImage(*tex.Source)
	if err != nil {
		return common.TextureStagingData{}, common.SamplerStagingData{}, err
	}
	return staged, sampler, nil
}

func (e *gltfMaterialExtractorImpl) loadImage(imageIndex int) (common.TextureStagingData, error) {
	if staged, ok := e.images[imageIndex]; ok {
		return staged, nil
	}
	doc := e.parser.Document()
	if imageIndex < 0 || imageIndex >= len(doc.Images) {
		return common.TextureStagingData{}, fmt.Errorf("image index %d out of range", imageIndex)
	}
	img := &doc.Images[imageIndex]

	var data []byte
	var err error
	switch {
	case img.BufferView != nil:
		data, err = e.parser.BufferViewData(*img.BufferView)
	case img.URI != "":
		data, err = e.parser.ResolveURI(img.URI)
	default:
		err = fmt.Errorf("image %d has neither uri nor bufferView", imageIndex)
	}
	if err != nil {
		return common.TextureStagingData{}, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to decode image %d (%s): %w", imageIndex, img.MimeType, err)
	}
	staged := common.TextureFromImage(decoded)
	e.images[imageIndex] = staged
	return staged, nil
}

func defaultSampler() common.SamplerStagingData {
	return common.SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// convertSampler maps glTF sampler enums onto the wgpu modes, defaulting to linear and
// repeat.
func convertSampler(s *gltfSampler) common.SamplerStagingData {
	out := defaultSampler()
	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		out.MagFilter = wgpu.FilterModeNearest
	}
	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest:
			out.MinFilter, out.MipmapFilter = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
		case gltfFilterNearestMipmapLinear:
			out.MinFilter = wgpu.FilterModeNearest
		case gltfFilterLinearMipmapNearest:
			out.MipmapFilter = wgpu.MipmapFilterModeNearest
		case gltfFilterLinear, gltfFilterLinearMipmapLinear:
		}
	}
	out.AddressModeU = convertWrap(s.WrapS)
	out.AddressModeV = convertWrap(s.WrapT)
	return out
}

func convertWrap(mode *int) wgpu.AddressMode {
	if mode == nil {
		return wgpu.AddressModeRepeat
	}
	switch *mode {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeRepeat
}
