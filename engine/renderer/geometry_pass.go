package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/contract"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// geometryVisitor binds the sets the traversal hands it and records one indexed draw per
// primitive into the open geometry pass.
type geometryVisitor struct {
	dev      backend.Backend
	pass     backend.RenderPassEncoder
	pipeline pipeline.Pipeline

	nodeBound     bool
	materialBound bool
	draws         int
}

var _ SceneVisitor = &geometryVisitor{}

func (v *geometryVisitor) bind(group int, set *binding.Set) error {
	if err := checkSet(v.pipeline, group, set); err != nil {
		return err
	}
	g, err := set.BindGroup(v.dev)
	if err != nil {
		return err
	}
	v.pass.SetBindGroup(uint32(group), g)
	return nil
}

func (v *geometryVisitor) VisitNode(set *binding.Set) error {
	if err := v.bind(contract.GroupModel, set); err != nil {
		return err
	}
	v.nodeBound = true
	v.materialBound = false
	return nil
}

func (v *geometryVisitor) VisitMaterial(set *binding.Set) error {
	if !v.nodeBound {
		return fmt.Errorf("%w: material before node", ErrVisitOrder)
	}
	if err := v.bind(contract.GroupMaterial, set); err != nil {
		return err
	}
	v.materialBound = true
	return nil
}

func (v *geometryVisitor) VisitPrimitive(vertex, index backend.Buffer, indexCount uint32) error {
	if !v.nodeBound || !v.materialBound {
		return fmt.Errorf("%w: primitive before node and material", ErrVisitOrder)
	}
	if vertex == nil || index == nil {
		return errors.New("primitive has no vertex or index buffer")
	}
	if indexCount == 0 {
		return nil
	}
	v.pass.SetVertexBuffer(0, vertex)
	v.pass.SetIndexBuffer(index, wgpu.IndexFormatUint32)
	v.pass.DrawIndexed(indexCount, 1, 0, 0, 0)
	v.draws++
	return nil
}

// executeGeometryPass records the geometry pass into enc. The three color targets are
// cleared to transparent black and depth to 1, then the traversal draws the scene.
func (r *renderer) executeGeometryPass(enc backend.CommandEncoder, targets *gbuffer.TargetSet, sceneSet *binding.Set, traversal SceneTraversal) (int, error) {
	if err := checkSet(r.geometry, contract.GroupScene, sceneSet); err != nil {
		return 0, err
	}
	sceneGroup, err := sceneSet.BindGroup(r.dev)
	if err != nil {
		return 0, err
	}

	views := targets.ColorViews()
	colors := make([]backend.ColorAttachment, len(views))
	for i, view := range views {
		colors[i] = backend.ColorAttachment{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}
	}
	pass, err := enc.BeginRenderPass(&backend.RenderPassDescriptor{
		Label:            "Geometry Pass",
		ColorAttachments: colors,
		DepthStencilAttachment: &backend.DepthAttachment{
			View:            targets.Depth().View(),
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	if err != nil {
		return 0, err
	}

	pass.SetPipeline(r.geometry.RenderPipeline())
	pass.SetBindGroup(contract.GroupScene, sceneGroup)

	v := &geometryVisitor{dev: r.dev, pass: pass, pipeline: r.geometry}
	if err := traversal.Iterate(v); err != nil {
		_ = pass.End()
		return v.draws, err
	}
	return v.draws, pass.End()
}
