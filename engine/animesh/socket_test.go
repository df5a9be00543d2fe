package animesh

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNode struct {
	calls int
	last  common.Transform
}

func (n *recordingNode) SetTransform(t common.Transform) {
	n.calls++
	n.last = t
}

func oneBoneSkeleton(t *testing.T) skeleton.Skeleton {
	t.Helper()
	f, err := skeleton.NewSkeletonFactory([]common.BoneDefinition{
		{Name: "hand", Parent: common.NoBone, Bind: common.IdentityTransform()},
	})
	require.NoError(t, err)
	return f.NewInstance()
}

func TestUpdateSocketComposition(t *testing.T) {
	world := UpdateSocket(common.TranslationTransform(10, 0, 0), common.TranslationTransform(0, 5, 0))
	assertVec3(t, mgl32.Vec3{10, 5, 0}, world.Apply(mgl32.Vec3{}))
}

func TestUpdateSocketAppliesOffsetInBoneSpace(t *testing.T) {
	bone := common.NewTransform(mgl32.Vec3{10, 0, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	world := UpdateSocket(bone, common.TranslationTransform(0, 5, 0))

	// +Y offset is rotated onto -X before the bone's translation applies
	assertVec3(t, mgl32.Vec3{5, 0, 0}, world.Translation)
}

func TestSocketTracksBoneLazily(t *testing.T) {
	skel := oneBoneSkeleton(t)
	s := newSocket(SocketFactory{Name: "grip", Bone: 0, Offset: common.TranslationTransform(0, 5, 0)})
	node := &recordingNode{}
	s.Attach(node)
	assert.Zero(t, node.calls, "nothing to push before the first update")

	require.NoError(t, skel.SetBoneLocalTransform(0, common.TranslationTransform(10, 0, 0)))
	assert.True(t, s.Update(skel))
	assert.Equal(t, 1, node.calls)
	assertVec3(t, mgl32.Vec3{10, 5, 0}, node.last.Translation)

	assert.False(t, s.Update(skel), "unchanged skeleton version must not recompute")
	assert.Equal(t, 1, node.calls)

	require.NoError(t, skel.SetBoneLocalTransform(0, common.TranslationTransform(0, 0, 1)))
	assert.True(t, s.Update(skel))
	assertVec3(t, mgl32.Vec3{0, 5, 1}, s.WorldTransform().Translation)
	assert.Equal(t, 2, node.calls)
}

func TestSocketOffsetChangeForcesUpdate(t *testing.T) {
	skel := oneBoneSkeleton(t)
	s := newSocket(SocketFactory{Name: "grip", Bone: 0, Offset: common.IdentityTransform()})
	s.Update(skel)

	s.SetOffset(common.TranslationTransform(1, 0, 0))
	assert.True(t, s.Update(skel))
	assertVec3(t, mgl32.Vec3{1, 0, 0}, s.WorldTransform().Translation)
}

func TestSocketAttachPushesCachedTransform(t *testing.T) {
	skel := oneBoneSkeleton(t)
	s := newSocket(SocketFactory{Name: "grip", Bone: 0, Offset: common.TranslationTransform(0, 0, 3)})
	s.Update(skel)

	node := &recordingNode{}
	s.Attach(node)
	assert.Equal(t, 1, node.calls)
	assertVec3(t, mgl32.Vec3{0, 0, 3}, node.last.Translation)

	s.Detach()
	assert.Nil(t, s.Node())
	require.NoError(t, skel.SetBoneLocalTransform(0, common.TranslationTransform(1, 1, 1)))
	s.Update(skel)
	assert.Equal(t, 1, node.calls, "detached nodes are not notified")
}
