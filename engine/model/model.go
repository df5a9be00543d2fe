package model

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/go-gl/mathgl/mgl32"
)

// submeshKey is the per-submesh state a set of render meshes was built from.
type submeshKey struct {
	visible  bool
	material string
}

// model is the implementation of the Model interface.
type model struct {
	name          string
	instance      animesh.AnimatedMeshInstance
	includeHidden bool

	meshes    []RenderMesh
	built     bool
	skinCount uint64
	submeshes []submeshKey
	rebuilds  uint64
}

// Model is the render-emission boundary of an animated mesh instance. It turns the instance's
// skinned buffers into RenderMeshes and rebuilds them only when the skinned output, submesh
// visibility or submesh materials changed since the last call.
//
// A Model is not safe for concurrent use; it is driven by the same goroutine as its instance.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Instance returns the instance this model emits.
	//
	// Returns:
	//   - animesh.AnimatedMeshInstance: the source instance
	Instance() animesh.AnimatedMeshInstance

	// Meshes brings the instance up to date and returns one RenderMesh per visible submesh.
	// The returned slice is reused across calls.
	//
	// Returns:
	//   - []RenderMesh: the current render meshes
	Meshes() []RenderMesh

	// Rebuilds returns how many times Meshes actually rebuilt its output.
	//
	// Returns:
	//   - uint64: the rebuild count
	Rebuilds() uint64
}

var _ Model = &model{}

// NewModel creates a Model over an instance.
//
// Parameters:
//   - instance: the animated mesh instance to emit
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the new model
func NewModel(instance animesh.AnimatedMeshInstance, options ...ModelBuilderOption) Model {
	m := &model{
		name:     instance.Name(),
		instance: instance,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Instance() animesh.AnimatedMeshInstance {
	return m.instance
}

func (m *model) Rebuilds() uint64 {
	return m.rebuilds
}

func (m *model) Meshes() []RenderMesh {
	inst := m.instance
	inst.Update(RequiredOutputs(inst.Factory()))

	n := len(inst.Factory().Submeshes())
	changed := !m.built || inst.SkinCount() != m.skinCount || len(m.submeshes) != n
	if !changed {
		for i := range n {
			if m.submeshes[i] != (submeshKey{inst.SubmeshVisible(i), inst.SubmeshMaterial(i)}) {
				changed = true
				break
			}
		}
	}
	if !changed {
		return m.meshes
	}

	m.rebuilds++
	m.meshes = buildInto(m.meshes[:0], inst, m.includeHidden, m.rebuilds)
	m.built = true
	m.skinCount = inst.SkinCount()
	m.submeshes = m.submeshes[:0]
	for i := range n {
		m.submeshes = append(m.submeshes, submeshKey{inst.SubmeshVisible(i), inst.SubmeshMaterial(i)})
	}
	return m.meshes
}

// RequiredOutputs returns the skinned outputs a render mesh needs for a factory: positions always,
// plus normals and tangents when the factory supplies them.
//
// Parameters:
//   - f: the mesh factory
//
// Returns:
//   - animesh.SkinOutputs: the outputs to request from the instance
func RequiredOutputs(f animesh.AnimatedMeshFactory) animesh.SkinOutputs {
	want := animesh.OutputPositions
	if f.Normals() != nil {
		want |= animesh.OutputNormals
	}
	if f.Tangents() != nil {
		want |= animesh.OutputTangents
	}
	return want
}

// BuildRenderMeshes flattens every visible submesh of an instance into a RenderMesh. The instance
// is updated first so the buffers reflect the current pose and morph weights. Each mesh's
// Revision is the instance's skin count.
//
// Parameters:
//   - inst: the instance to emit
//
// Returns:
//   - []RenderMesh: one mesh per visible submesh, in submesh order
func BuildRenderMeshes(inst animesh.AnimatedMeshInstance) []RenderMesh {
	inst.Update(RequiredOutputs(inst.Factory()))
	return buildInto(nil, inst, false, inst.SkinCount())
}

func buildInto(dst []RenderMesh, inst animesh.AnimatedMeshInstance, includeHidden bool, revision uint64) []RenderMesh {
	f := inst.Factory()
	positions := inst.Positions()
	normals, hasNormals := inst.Normals()
	tangents, hasTangents := inst.Tangents()
	binormals, _ := inst.Binormals()
	uvs, colors := f.TexCoords(), f.Colors()

	remap := make([]int32, len(positions))
	for si, sub := range f.Submeshes() {
		if !includeHidden && !inst.SubmeshVisible(si) {
			continue
		}
		for i := range remap {
			remap[i] = -1
		}

		rm := RenderMesh{
			Name:     sub.Name,
			Submesh:  si,
			Material: inst.SubmeshMaterial(si),
			Indices:  make([]uint32, len(sub.Indices)),
			Revision: revision,
		}
		var used []mgl32.Vec3
		for k, src := range sub.Indices {
			if remap[src] < 0 {
				remap[src] = int32(len(rm.Vertices))
				v := GPUVertex{
					Position: positions[src],
					Color:    [4]float32{1, 1, 1, 1},
				}
				if hasNormals {
					v.Normal = normals[src]
				}
				if hasTangents {
					v.Tangent = tangentWithHandedness(normals[src], tangents[src], binormals[src])
				}
				if uvs != nil {
					v.TexCoord = uvs[src]
				}
				if colors != nil {
					v.Color = colors[src]
				}
				rm.Vertices = append(rm.Vertices, v)
				used = append(used, positions[src])
			}
			rm.Indices[k] = uint32(remap[src])
		}
		rm.Bounds = common.BoundsOf(used)
		dst = append(dst, rm)
	}
	return dst
}

// tangentWithHandedness packs a tangent with w = ±1 telling the shader which way the bitangent
// points relative to cross(normal, tangent).
func tangentWithHandedness(n, t, b mgl32.Vec3) [4]float32 {
	w := float32(1)
	if n.Cross(t).Dot(b) < 0 {
		w = -1
	}
	return [4]float32{t[0], t[1], t[2], w}
}

// BuildSkinnedVertices packs a factory's bind-pose geometry with its first four influences per
// vertex, for renderers that skin on the GPU from Skeleton.SkinningPalette.
//
// Parameters:
//   - f: the mesh factory
//
// Returns:
//   - []GPUSkinnedVertex: one vertex per factory vertex
func BuildSkinnedVertices(f animesh.AnimatedMeshFactory) []GPUSkinnedVertex {
	positions, normals := f.Positions(), f.Normals()
	tangents, binormals := f.Tangents(), f.Binormals()
	uvs, colors := f.TexCoords(), f.Colors()
	influences, k := f.Influences(), f.InfluencesPerVertex()

	out := make([]GPUSkinnedVertex, len(positions))
	for i := range out {
		v := &out[i]
		v.Position = positions[i]
		v.Color = [4]float32{1, 1, 1, 1}
		if normals != nil {
			v.Normal = normals[i]
		}
		if tangents != nil {
			v.Tangent = tangentWithHandedness(normals[i], tangents[i], binormals[i])
		}
		if uvs != nil {
			v.TexCoord = uvs[i]
		}
		if colors != nil {
			v.Color = colors[i]
		}
		if influences == nil {
			continue
		}
		for s := 0; s < k && s < 4; s++ {
			inf := influences[i*k+s]
			if inf.Weight == 0 {
				continue
			}
			v.BoneIndices[s] = uint32(inf.Bone)
			v.BoneWeights[s] = inf.Weight
		}
	}
	return out
}
