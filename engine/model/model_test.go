package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/animesh"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad builds a four vertex mesh on one bone with a visible submesh "front" over vertices 1..3
// and a hidden submesh "back" over 0..2.
func quad(t *testing.T) (animesh.AnimatedMeshInstance, skeleton.Skeleton) {
	t.Helper()
	sf, err := skeleton.NewSkeletonFactory([]common.BoneDefinition{
		{Name: "root", Parent: common.NoBone, Bind: common.IdentityTransform()},
	})
	require.NoError(t, err)

	up := mgl32.Vec3{0, 1, 0}
	f, err := animesh.NewAnimatedMeshFactory(
		animesh.WithSkeletonFactory(sf),
		animesh.WithPositions([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}),
		animesh.WithNormals([]mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}),
		animesh.WithTangents(
			[]mgl32.Vec3{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}, {1, 0, 0}},
			[]mgl32.Vec3{{0, -1, 0}, up, up, up},
		),
		animesh.WithTexCoords([]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}),
		animesh.WithInfluences([]animesh.BoneInfluence{{Bone: 0, Weight: 1}, {Bone: 0, Weight: 1}, {Bone: 0, Weight: 1}, {Bone: 0, Weight: 1}}, 1),
		animesh.WithSubmesh(animesh.Submesh{Name: "front", Indices: []uint32{2, 3, 1}, Material: "cloth", Visible: true}),
		animesh.WithSubmesh(animesh.Submesh{Name: "back", Indices: []uint32{0, 1, 2}, Material: "lining"}),
	)
	require.NoError(t, err)

	skel := sf.NewInstance()
	inst, err := animesh.NewAnimatedMeshInstance(f, skel, animesh.WithInstanceName("quad"))
	require.NoError(t, err)
	return inst, skel
}

func TestBuildRenderMeshesFlattensVisibleSubmeshes(t *testing.T) {
	inst, skel := quad(t)
	require.NoError(t, skel.SetBoneLocalTransform(0, common.TranslationTransform(0, 0, 5)))

	meshes := BuildRenderMeshes(inst)
	require.Len(t, meshes, 1)
	m := meshes[0]
	assert.Equal(t, "front", m.Name)
	assert.Equal(t, 0, m.Submesh)
	assert.Equal(t, "cloth", m.Material)
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices, "indices are rebased onto the flattened vertices")
	require.Len(t, m.Vertices, 3)

	assert.Equal(t, [3]float32{1, 1, 5}, m.Vertices[0].Position, "vertices come out skinned")
	assert.Equal(t, [2]float32{1, 1}, m.Vertices[0].TexCoord)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.Vertices[0].Color, "missing colors default to white")
	assert.Equal(t, [4]float32{1, 0, 0, 1}, m.Vertices[0].Tangent)
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, m.Bounds.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 5}, m.Bounds.Max)
	assert.Equal(t, inst.SkinCount(), m.Revision)
}

func TestHandednessFollowsBinormal(t *testing.T) {
	inst, _ := quad(t)
	require.NoError(t, inst.SetSubmeshVisible(1, true))

	meshes := BuildRenderMeshes(inst)
	require.Len(t, meshes, 2)
	back := meshes[1]
	assert.Equal(t, "back", back.Name)
	assert.Equal(t, float32(-1), back.Vertices[0].Tangent[3])
	assert.Equal(t, float32(1), back.Vertices[1].Tangent[3])
}

func TestModelRebuildsOnlyOnChange(t *testing.T) {
	inst, skel := quad(t)
	m := NewModel(inst)
	assert.Equal(t, "quad", m.Name())

	first := m.Meshes()
	require.Len(t, first, 1)
	assert.Equal(t, uint64(1), m.Rebuilds())

	m.Meshes()
	assert.Equal(t, uint64(1), m.Rebuilds(), "nothing changed")

	require.NoError(t, inst.SetSubmeshMaterial(0, "velvet"))
	assert.Equal(t, "velvet", m.Meshes()[0].Material)
	assert.Equal(t, uint64(2), m.Rebuilds())

	require.NoError(t, skel.SetBoneLocalTransform(0, common.TranslationTransform(2, 0, 0)))
	assert.Equal(t, [3]float32{3, 1, 0}, m.Meshes()[0].Vertices[0].Position)
	assert.Equal(t, uint64(3), m.Rebuilds())

	require.NoError(t, inst.SetSubmeshVisible(0, false))
	assert.Empty(t, m.Meshes())
}

func TestModelIncludeHidden(t *testing.T) {
	inst, _ := quad(t)
	m := NewModel(inst, WithName("all"), WithIncludeHidden(true))
	assert.Equal(t, "all", m.Name())
	assert.Len(t, m.Meshes(), 2)
}

func TestMarshalIsLittleEndian(t *testing.T) {
	v := GPUSkinnedVertex{
		GPUVertex:   GPUVertex{Position: [3]float32{1, 2, 3}, Tangent: [4]float32{0, 0, 0, -1}},
		BoneIndices: [4]uint32{7, 0, 0, 0},
		BoneWeights: [4]float32{0.5, 0.5, 0, 0},
	}
	buf := v.Marshal()
	require.Len(t, buf, v.Size())
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(buf[64:]))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[84:])))

	base := v.GPUVertex
	assert.Len(t, base.Marshal(), base.Size())

	md := NewModelData(common.TranslationTransform(4, 5, 6))
	mb := md.Marshal()
	require.Len(t, mb, md.Size())
	assert.Equal(t, float32(5), math.Float32frombits(binary.LittleEndian.Uint32(mb[13*4:])))
}

func TestRenderMeshBytes(t *testing.T) {
	inst, _ := quad(t)
	m := BuildRenderMeshes(inst)[0]
	assert.Len(t, m.VertexBytes(), len(m.Vertices)*64)
	ib := m.IndexBytes()
	require.Len(t, ib, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ib[8:]))
}

func TestBuildSkinnedVertices(t *testing.T) {
	inst, _ := quad(t)
	vs := BuildSkinnedVertices(inst.Factory())
	require.Len(t, vs, 4)
	assert.Equal(t, [4]float32{1, 0, 0, 0}, vs[2].BoneWeights)
	assert.Equal(t, [4]uint32{0, 0, 0, 0}, vs[2].BoneIndices)
	assert.Equal(t, [3]float32{1, 1, 0}, vs[2].Position, "bind pose, not skinned")
	assert.Equal(t, float32(-1), vs[0].Tangent[3])
}
