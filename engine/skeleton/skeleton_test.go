package skeleton

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain returns root -> mid -> tip, each offset one unit along +Y from its parent, declared out of order.
func chain() []common.BoneDefinition {
	return []common.BoneDefinition{
		{Name: "tip", Parent: 2, Bind: common.TranslationTransform(0, 1, 0)},
		{Name: "root", Parent: common.NoBone, Bind: common.TranslationTransform(0, 0, 0)},
		{Name: "mid", Parent: 1, Bind: common.TranslationTransform(0, 1, 0)},
	}
}

func TestFactoryOrdersParentsFirst(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)

	require.Equal(t, 3, f.BoneCount())
	for id := common.BoneID(0); int(id) < f.BoneCount(); id++ {
		assert.Less(t, f.Parent(id), id, "bone %s must follow its parent", f.BoneName(id))
	}

	root, ok := f.BoneIndex("root")
	require.True(t, ok)
	assert.Equal(t, common.BoneID(0), root)
	assert.Equal(t, []common.BoneID{0}, f.Roots())

	remap := f.Remap()
	assert.Equal(t, "tip", f.BoneName(remap[0]))
	assert.Equal(t, "root", f.BoneName(remap[1]))
	assert.Equal(t, "mid", f.BoneName(remap[2]))

	tip, _ := f.BoneIndex("tip")
	assert.InDelta(t, 2, f.BindWorld(tip).Translation.Y(), 1e-6)
	assert.True(t, common.Compose(f.BindWorld(tip), f.InverseBind(tip)).ApproxEqual(common.IdentityTransform(), 1e-5))
}

func TestFactoryRejectsBadHierarchies(t *testing.T) {
	cases := []struct {
		name string
		defs []common.BoneDefinition
		want error
	}{
		{
			name: "parent out of range",
			defs: []common.BoneDefinition{{Name: "a", Parent: 5}},
			want: ErrInvalidHierarchy,
		},
		{
			name: "self parent",
			defs: []common.BoneDefinition{{Name: "a", Parent: 0}},
			want: ErrInvalidHierarchy,
		},
		{
			name: "cycle",
			defs: []common.BoneDefinition{
				{Name: "root", Parent: common.NoBone},
				{Name: "a", Parent: 2},
				{Name: "b", Parent: 1},
			},
			want: ErrInvalidHierarchy,
		},
		{
			name: "duplicate name",
			defs: []common.BoneDefinition{
				{Name: "a", Parent: common.NoBone},
				{Name: "a", Parent: 0},
			},
			want: ErrDuplicateBone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSkeletonFactory(tc.defs)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInverseBindOverrideLengthMismatch(t *testing.T) {
	_, err := NewSkeletonFactory(chain(), WithInverseBindTransforms([]common.Transform{common.IdentityTransform()}))
	assert.ErrorIs(t, err, ErrInvalidHierarchy)
}

func TestForwardKinematicsAndVersion(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)
	s := f.NewInstance()

	root, _ := f.BoneIndex("root")
	tip, _ := f.BoneIndex("tip")

	v0 := s.GetVersion()
	require.NoError(t, s.SetBoneLocalTransform(root, common.NewTransform(
		mgl32.Vec3{5, 0, 0},
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
	)))
	assert.Greater(t, s.GetVersion(), v0)

	// root rotates +Y onto -X, so the tip two units up ends at (5-2, 0, 0)
	w, ok := s.GetBoneWorldTransform(tip)
	require.True(t, ok)
	assert.InDelta(t, 3, w.Translation.X(), 1e-5)
	assert.InDelta(t, 0, w.Translation.Y(), 1e-5)

	before := s.GetVersion()
	s.UpdateWorldTransforms()
	assert.Equal(t, before, s.GetVersion(), "reading must not advance the version")
}

func TestWorldOverrideBypassesParent(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)
	s := f.NewInstance()

	root, _ := f.BoneIndex("root")
	mid, _ := f.BoneIndex("mid")
	tip, _ := f.BoneIndex("tip")

	require.NoError(t, s.SetBoneWorldOverride(mid, common.TranslationTransform(10, 10, 10)))
	require.NoError(t, s.SetBoneLocalTransform(root, common.TranslationTransform(-100, 0, 0)))

	w, _ := s.GetBoneWorldTransform(mid)
	assert.Equal(t, mgl32.Vec3{10, 10, 10}, w.Translation)

	// tip is not overridden, so it still composes on top of the pinned parent
	w, _ = s.GetBoneWorldTransform(tip)
	assert.InDelta(t, 11, w.Translation.Y(), 1e-5)
	assert.True(t, s.HasWorldOverride(mid))

	s.ClearBoneWorldOverride(mid)
	assert.False(t, s.HasWorldOverride(mid))
	w, _ = s.GetBoneWorldTransform(mid)
	assert.InDelta(t, -100, w.Translation.X(), 1e-5)
}

func TestOutOfRange(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)
	s := f.NewInstance()

	assert.ErrorIs(t, s.SetBoneLocalTransform(3, common.IdentityTransform()), ErrBoneOutOfRange)
	assert.ErrorIs(t, s.SetBoneWorldOverride(-1, common.IdentityTransform()), ErrBoneOutOfRange)
	_, ok := s.GetBoneWorldTransform(99)
	assert.False(t, ok)
}

func TestSkinningPaletteIsIdentityAtBindPose(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)
	s := f.NewInstance()

	palette := s.SkinningPalette(nil)
	require.Len(t, palette, 3)
	for i, m := range palette {
		assert.True(t, m.ApproxEqualThreshold(mgl32.Ident4(), 1e-5), "bone %d", i)
	}

	reused := s.SkinningPalette(palette)
	assert.Same(t, &palette[0], &reused[0])
}

func TestResetToBindPose(t *testing.T) {
	f, err := NewSkeletonFactory(chain())
	require.NoError(t, err)
	s := f.NewInstance()

	require.NoError(t, s.SetBoneLocalTransform(0, common.TranslationTransform(1, 2, 3)))
	require.NoError(t, s.SetBoneWorldOverride(1, common.TranslationTransform(1, 2, 3)))
	s.ResetToBindPose()

	assert.False(t, s.HasWorldOverride(1))
	local, _ := s.BoneLocalTransform(0)
	assert.Equal(t, f.BindLocal(0), local)
}
