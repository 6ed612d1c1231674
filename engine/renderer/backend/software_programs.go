package backend

// VertexInput is the per-vertex input of a VertexProgram. Attributes is indexed by shader
// location and holds the decoded components of each attribute.
type VertexInput struct {
	VertexIndex   uint32
	InstanceIndex uint32
	Attributes    [][]float32
}

// VertexOutput is the clip-space position and the varyings a VertexProgram produces.
// Every vertex of a draw must produce the same number of varyings.
type VertexOutput struct {
	Position [4]float32
	Varyings []float32
}

// FragmentInput is the per-fragment input of a FragmentProgram. Position holds the pixel
// center in framebuffer coordinates, the depth and 1/w.
type FragmentInput struct {
	Position    [4]float32
	Varyings    []float32
	FrontFacing bool
}

// VertexProgram is a CPU implementation of a vertex entry point.
type VertexProgram func(b *Bindings, in VertexInput) VertexOutput

// FragmentProgram is a CPU implementation of a fragment entry point. It writes one value per
// color target into out and returns true to discard the fragment.
type FragmentProgram func(b *Bindings, in FragmentInput, out [][4]float32) (discard bool)

// ComputeProgram is a CPU implementation of a compute entry point, invoked once per dispatch.
type ComputeProgram func(b *Bindings, workgroups [3]uint32) error

// ProgramRegistry is implemented by backends that execute shader stages as CPU programs.
// Programs are looked up by ShaderStage.Key when a pipeline is created.
type ProgramRegistry interface {
	RegisterVertexProgram(key string, p VertexProgram)
	RegisterFragmentProgram(key string, p FragmentProgram)
	RegisterComputeProgram(key string, p ComputeProgram)
}

// Bindings exposes the bind groups set on a pass to a CPU program. Buffers are returned as
// their live storage, so compute programs write results in place.
type Bindings struct {
	groups []*swBindGroup
}

func (b *Bindings) entry(group, binding uint32) (BindGroupEntry, bool) {
	if int(group) >= len(b.groups) || b.groups[group] == nil {
		return BindGroupEntry{}, false
	}
	e, ok := b.groups[group].entries[binding]
	return e, ok
}

// Buffer returns the storage of the buffer bound at (group, binding), or nil.
func (b *Bindings) Buffer(group, binding uint32) []byte {
	e, ok := b.entry(group, binding)
	if !ok || e.Buffer == nil {
		return nil
	}
	if sb, ok := e.Buffer.(*swBuffer); ok {
		return sb.data
	}
	return nil
}

func (b *Bindings) texture(group, binding uint32) *swTexture {
	e, ok := b.entry(group, binding)
	if !ok || e.View == nil {
		return nil
	}
	if v, ok := e.View.(*swTextureView); ok {
		return v.texture
	}
	return nil
}

// TextureSize returns the size of the texture bound at (group, binding), or zero.
func (b *Bindings) TextureSize(group, binding uint32) (int, int) {
	t := b.texture(group, binding)
	if t == nil {
		return 0, 0
	}
	return int(t.desc.Width), int(t.desc.Height)
}

// Load reads one texel of the texture bound at (group, binding). Out of range coordinates
// read zero, matching textureLoad robustness.
func (b *Bindings) Load(group, binding uint32, x, y int) [4]float32 {
	t := b.texture(group, binding)
	if t == nil || x < 0 || y < 0 || x >= int(t.desc.Width) || y >= int(t.desc.Height) {
		return [4]float32{}
	}
	return t.load(x, y)
}

// Sample filters the texture bound at (group, texture) with the sampler bound at
// (group, sampler).
func (b *Bindings) Sample(group, texture, sampler uint32, u, v float32) [4]float32 {
	t := b.texture(group, texture)
	if t == nil {
		return [4]float32{}
	}
	s := &swSampler{}
	if e, ok := b.entry(group, sampler); ok && e.Sampler != nil {
		if ss, ok := e.Sampler.(*swSampler); ok {
			s = ss
		}
	}
	return s.sample(t, u, v)
}
