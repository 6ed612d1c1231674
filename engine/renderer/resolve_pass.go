package renderer

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// resolveVertexCount is the vertex count of the procedural full-screen quad.
const resolveVertexCount = 6

// executeResolvePass records the resolve pass into enc: one full-screen draw into the
// output view, cleared to transparent black, with no depth attachment.
func (r *renderer) executeResolvePass(enc backend.CommandEncoder, output backend.TextureView, resolveSet *binding.Set) error {
	if err := checkSets("Resolve Pass", r.resolve, []*binding.Set{resolveSet}); err != nil {
		return err
	}
	group, err := resolveSet.BindGroup(r.dev)
	if err != nil {
		return err
	}

	pass, err := enc.BeginRenderPass(&backend.RenderPassDescriptor{
		Label: "Resolve Pass",
		ColorAttachments: []backend.ColorAttachment{{
			View:       output,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
	})
	if err != nil {
		return err
	}
	pass.SetPipeline(r.resolve.RenderPipeline())
	pass.SetBindGroup(0, group)
	pass.Draw(resolveVertexCount, 1, 0, 0)
	return pass.End()
}
