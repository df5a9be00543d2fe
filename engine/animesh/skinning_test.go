package animesh

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-5

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], tol, "component %d: want %v got %v", i, want, got)
	}
}

func TestSkinWeightedSum(t *testing.T) {
	palette := []mgl32.Mat4{mgl32.Translate3D(1, 0, 0), mgl32.Translate3D(0, 1, 0)}
	influences := []BoneInfluence{{Bone: 0, Weight: 0.3}, {Bone: 1, Weight: 0.7}}

	var out SkinOutput
	Skin(SkinPosition, SkinInput{Positions: []mgl32.Vec3{{0, 0, 0}}}, palette, influences, 2, &out)

	require.Len(t, out.Positions, 1)
	assertVec3(t, mgl32.Vec3{0.3, 0.7, 0}, out.Positions[0])
	assert.Empty(t, out.Normals, "position-only path must not touch normals")
}

func TestSkinRenormalizesNormals(t *testing.T) {
	// bone 0 leaves +X alone, bone 1 turns +X into +Y
	palette := []mgl32.Mat4{mgl32.Ident4(), mgl32.HomogRotate3DZ(mgl32.DegToRad(90))}
	influences := []BoneInfluence{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.5}}
	in := SkinInput{
		Positions: []mgl32.Vec3{{0, 0, 0}},
		Normals:   []mgl32.Vec3{{1, 0, 0}},
	}

	var out SkinOutput
	Skin(SkinPositionNormal, in, palette, influences, 2, &out)

	require.Len(t, out.Normals, 1)
	assert.InDelta(t, 1, out.Normals[0].Len(), tol)
	assertVec3(t, mgl32.Vec3{0.70710678, 0.70710678, 0}, out.Normals[0])
}

func TestSkinNormalsIgnoreTranslation(t *testing.T) {
	palette := []mgl32.Mat4{mgl32.Translate3D(100, 200, 300)}
	in := SkinInput{
		Positions: []mgl32.Vec3{{1, 1, 1}},
		Normals:   []mgl32.Vec3{{0, 0, 1}},
		Tangents:  []mgl32.Vec3{{1, 0, 0}},
		Binormals: []mgl32.Vec3{{0, 1, 0}},
	}

	var out SkinOutput
	Skin(SkinPositionNormalTangent, in, palette, []BoneInfluence{{Bone: 0, Weight: 1}}, 1, &out)

	assertVec3(t, mgl32.Vec3{101, 201, 301}, out.Positions[0])
	assertVec3(t, mgl32.Vec3{0, 0, 1}, out.Normals[0])
	assertVec3(t, mgl32.Vec3{1, 0, 0}, out.Tangents[0])
	assertVec3(t, mgl32.Vec3{0, 1, 0}, out.Binormals[0])
}

func TestSkinZeroWeightsKeepInput(t *testing.T) {
	palette := []mgl32.Mat4{mgl32.Translate3D(5, 5, 5)}
	in := SkinInput{Positions: []mgl32.Vec3{{1, 2, 3}}, Normals: []mgl32.Vec3{{0, 1, 0}}}
	influences := []BoneInfluence{{Bone: 0, Weight: 0}, {Bone: 0, Weight: 0}}

	var out SkinOutput
	Skin(SkinPositionNormal, in, palette, influences, 2, &out)

	assert.Equal(t, mgl32.Vec3{1, 2, 3}, out.Positions[0])
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, out.Normals[0])
}

func TestSkinClampsOutOfRangeBones(t *testing.T) {
	palette := []mgl32.Mat4{mgl32.Translate3D(1, 0, 0), mgl32.Translate3D(0, 0, 7)}
	in := SkinInput{Positions: []mgl32.Vec3{{0, 0, 0}, {0, 0, 0}}}
	influences := []BoneInfluence{
		{Bone: 42, Weight: 1},
		{Bone: -3, Weight: 1},
	}

	var out SkinOutput
	assert.NotPanics(t, func() {
		Skin(SkinPosition, in, palette, influences, 1, &out)
	})
	assertVec3(t, mgl32.Vec3{0, 0, 7}, out.Positions[0])
	assertVec3(t, mgl32.Vec3{1, 0, 0}, out.Positions[1])

	assert.NotPanics(t, func() {
		Skin(SkinPosition, in, nil, influences, 1, &out)
	})
	assertVec3(t, mgl32.Vec3{}, out.Positions[0])
}

func TestSkinNoneCopiesInputs(t *testing.T) {
	in := SkinInput{
		Positions: []mgl32.Vec3{{1, 2, 3}},
		Normals:   []mgl32.Vec3{{0, 0, 1}},
	}

	var out SkinOutput
	Skin(SkinNone, in, []mgl32.Mat4{mgl32.Translate3D(9, 9, 9)}, []BoneInfluence{{Bone: 0, Weight: 1}}, 1, &out)

	assert.Equal(t, in.Positions, out.Positions)
	assert.Equal(t, in.Normals, out.Normals)
	assert.NotSame(t, &in.Positions[0], &out.Positions[0])
	assert.Empty(t, out.Tangents)
}

func TestSkinIsIdempotent(t *testing.T) {
	palette := []mgl32.Mat4{
		common.NewTransform(mgl32.Vec3{1, 2, 3}, mgl32.QuatRotate(0.4, mgl32.Vec3{0, 1, 0})).Mat4(),
		common.NewTransform(mgl32.Vec3{-1, 0, 2}, mgl32.QuatRotate(1.3, mgl32.Vec3{1, 0, 0})).Mat4(),
	}
	in := SkinInput{
		Positions: []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0.5}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	}
	influences := []BoneInfluence{
		{0, 0.25}, {1, 0.75},
		{0, 1}, {1, 0},
		{0, 0.5}, {1, 0.5},
	}

	var first, second SkinOutput
	Skin(SkinPositionNormal, in, palette, influences, 2, &first)
	Skin(SkinPositionNormal, in, palette, influences, 2, &second)
	assert.Equal(t, first, second)

	// running into the same buffers again must overwrite, not accumulate
	before := append([]mgl32.Vec3(nil), first.Positions...)
	Skin(SkinPositionNormal, in, palette, influences, 2, &first)
	assert.Equal(t, before, first.Positions)
}

func TestSkinReusesOutputBuffers(t *testing.T) {
	in := SkinInput{Positions: make([]mgl32.Vec3, 64)}
	influences := make([]BoneInfluence, 64*4)
	palette := []mgl32.Mat4{mgl32.Ident4()}

	var out SkinOutput
	Skin(SkinPosition, in, palette, influences, 4, &out)
	first := &out.Positions[0]

	allocs := testing.AllocsPerRun(10, func() {
		Skin(SkinPosition, in, palette, influences, 4, &out)
	})
	assert.Zero(t, allocs)
	assert.Same(t, first, &out.Positions[0])
}

func TestSelectSkinningMode(t *testing.T) {
	cases := []struct {
		name                      string
		want                      SkinOutputs
		haveNormals, haveTangents bool
		expected                  SkinningMode
	}{
		{"nothing requested", 0, true, true, SkinNone},
		{"positions", OutputPositions, true, true, SkinPosition},
		{"normals", OutputPositions | OutputNormals, true, true, SkinPositionNormal},
		{"normals missing", OutputPositions | OutputNormals, false, false, SkinPosition},
		{"tangents", OutputAll, true, true, SkinPositionNormalTangent},
		{"tangents missing", OutputAll, true, false, SkinPositionNormal},
		{"tangents only", OutputTangents, true, true, SkinPositionNormalTangent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SelectSkinningMode(tc.want, tc.haveNormals, tc.haveTangents))
		})
	}
}
