package animesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMorphsIsAdditive(t *testing.T) {
	base := []mgl32.Vec3{{0, 0, 0}}
	targets := []MorphTarget{
		{Name: "t1", Offsets: []mgl32.Vec3{{1, 0, 0}}},
		{Name: "t2", Offsets: []mgl32.Vec3{{0, 2, 0}}},
	}

	working := ApplyMorphs(base, targets, []float32{0.5, 0.25}, nil)

	require.Len(t, working, 1)
	assertVec3(t, mgl32.Vec3{0.5, 0.5, 0}, working[0])
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, base[0], "base must not be modified")
}

func TestApplyMorphsZeroWeightsAliasBase(t *testing.T) {
	base := []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}}
	targets := []MorphTarget{{Name: "smile", Offsets: []mgl32.Vec3{{1, 1, 1}, {1, 1, 1}}}}
	dst := make([]mgl32.Vec3, 2)

	working := ApplyMorphs(base, targets, []float32{0}, dst)

	assert.Same(t, &base[0], &working[0])
	assert.Equal(t, []mgl32.Vec3{{}, {}}, dst, "no copy into the working buffer")

	assert.Same(t, &base[0], &ApplyMorphs(base, nil, nil, dst)[0])
	assert.Same(t, &base[0], &ApplyMorphs(base, targets, nil, dst)[0])
}

func TestApplyMorphsReusesDestination(t *testing.T) {
	base := []mgl32.Vec3{{0, 0, 0}}
	targets := []MorphTarget{{Name: "a", Offsets: []mgl32.Vec3{{0, 0, 4}}}}
	dst := make([]mgl32.Vec3, 1)

	working := ApplyMorphs(base, targets, []float32{0.5}, dst)
	assert.Same(t, &dst[0], &working[0])
	assertVec3(t, mgl32.Vec3{0, 0, 2}, working[0])

	// a second pass starts again from base
	working = ApplyMorphs(base, targets, []float32{0.5}, working)
	assertVec3(t, mgl32.Vec3{0, 0, 2}, working[0])
}

func TestApplyMorphsIgnoresExtraWeights(t *testing.T) {
	base := []mgl32.Vec3{{1, 1, 1}}
	targets := []MorphTarget{{Name: "a", Offsets: []mgl32.Vec3{{1, 0, 0}}}}

	working := ApplyMorphs(base, targets, []float32{0, 3}, nil)
	assert.Same(t, &base[0], &working[0])
}
