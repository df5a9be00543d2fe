package ragdoll

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBody struct {
	pose      common.Transform
	kinematic bool
	enabled   bool
}

func (b *fakeBody) GetWorldTransform() common.Transform  { return b.pose }
func (b *fakeBody) SetWorldTransform(t common.Transform) { b.pose = t }
func (b *fakeBody) SetKinematic(k bool)                  { b.kinematic = k }
func (b *fakeBody) SetEnabled(e bool)                    { b.enabled = e }

type fakeJoint struct {
	desc    JointDescriptor
	enabled bool
}

func (j *fakeJoint) SetEnabled(e bool) { j.enabled = e }

// fakeSystem moves every enabled dynamic body by drift per step.
type fakeSystem struct {
	bodies      []*fakeBody
	joints      []*fakeJoint
	createCalls int
	steps       int
	drift       mgl32.Vec3
	failBodies  bool
}

func (s *fakeSystem) CreateBody(desc BodyDescriptor) (RigidBody, error) {
	s.createCalls++
	if s.failBodies {
		return nil, errors.New("out of bodies")
	}
	b := &fakeBody{pose: desc.Transform, kinematic: desc.Kinematic, enabled: true}
	s.bodies = append(s.bodies, b)
	return b, nil
}

func (s *fakeSystem) CreateJoint(desc JointDescriptor) (Joint, error) {
	j := &fakeJoint{desc: desc, enabled: true}
	s.joints = append(s.joints, j)
	return j, nil
}

func (s *fakeSystem) Step(dt float32) {
	s.steps++
	for _, b := range s.bodies {
		if b.enabled && !b.kinematic {
			b.pose.Translation = b.pose.Translation.Add(s.drift)
		}
	}
}

// humanoid builds hips -> spine -> head and hips -> thigh.
func humanoid(t *testing.T) skeleton.Skeleton {
	t.Helper()
	f, err := skeleton.NewSkeletonFactory([]common.BoneDefinition{
		{Name: "hips", Parent: common.NoBone, Bind: common.TranslationTransform(0, 1, 0)},
		{Name: "spine", Parent: 0, Bind: common.TranslationTransform(0, 0.5, 0)},
		{Name: "head", Parent: 1, Bind: common.TranslationTransform(0, 0.3, 0)},
		{Name: "thigh", Parent: 0, Bind: common.TranslationTransform(0.1, -0.5, 0)},
	})
	require.NoError(t, err)
	return f.NewInstance()
}

func bone(t *testing.T, skel skeleton.Skeleton, name string) common.BoneID {
	t.Helper()
	id, ok := skel.Factory().BoneIndex(name)
	require.True(t, ok, name)
	return id
}

func torso() ChainDefinition {
	return ChainDefinition{
		Name:   "torso",
		Bones:  []string{"spine", "hips"},
		Joints: []JointDefinition{{Parent: "hips", Child: "spine", SwingLimit: 0.5}},
	}
}

func newTestBridge(t *testing.T, sys DynamicSystem, opts ...BridgeBuilderOption) (Bridge, skeleton.Skeleton) {
	t.Helper()
	skel := humanoid(t)
	b, err := NewBridge(skel, sys, opts...)
	require.NoError(t, err)
	return b, skel
}

func TestRagdollStateString(t *testing.T) {
	assert.Equal(t, "inactive", StateInactive.String())
	assert.Equal(t, "dynamic", StateDynamic.String())
	assert.Equal(t, "kinematic", StateKinematic.String())
	assert.Equal(t, "unknown", RagdollState(9).String())
}

func TestAddChainValidation(t *testing.T) {
	cases := []struct {
		name string
		def  ChainDefinition
		err  error
	}{
		{"unknown bone", ChainDefinition{Name: "x", Bones: []string{"tail"}}, ErrUnknownBone},
		{"empty", ChainDefinition{Name: "x"}, ErrInvalidChain},
		{"unnamed", ChainDefinition{Bones: []string{"hips"}}, ErrInvalidChain},
		{"joint outside chain", ChainDefinition{Name: "x", Bones: []string{"hips"}, Joints: []JointDefinition{{Parent: "hips", Child: "spine"}}}, ErrInvalidChain},
		{"joint not parent to child", ChainDefinition{Name: "x", Bones: []string{"head", "thigh"}, Joints: []JointDefinition{{Parent: "head", Child: "thigh"}}}, ErrInvalidChain},
		{"overlap", ChainDefinition{Name: "x", Bones: []string{"hips"}}, ErrChainOverlap},
		{"duplicate name", ChainDefinition{Name: "torso", Bones: []string{"thigh"}}, ErrInvalidChain},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newTestBridge(t, &fakeSystem{}, WithChains(torso()))
			_, err := b.AddChain(tc.def)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, 1, b.ChainCount())
		})
	}
}

func TestAddChainRejectsReversedJoint(t *testing.T) {
	b, _ := newTestBridge(t, &fakeSystem{})
	_, err := b.AddChain(ChainDefinition{
		Name:   "torso",
		Bones:  []string{"hips", "spine"},
		Joints: []JointDefinition{{Parent: "spine", Child: "hips"}},
	})
	assert.ErrorIs(t, err, ErrInvalidChain)
	assert.ErrorContains(t, err, "nearest chain ancestor")
	assert.Zero(t, b.ChainCount())

	id, err := b.AddChain(torso())
	require.NoError(t, err, "a rejected chain claims no bones")
	assert.Equal(t, ChainID(0), id)
}

func TestAddChainOrdersBonesParentFirst(t *testing.T) {
	sys := &fakeSystem{}
	b, skel := newTestBridge(t, sys)
	id, err := b.AddChain(torso())
	require.NoError(t, err)

	assert.Equal(t, []common.BoneID{bone(t, skel, "hips"), bone(t, skel, "spine")}, b.ChainBones(id))
	got, ok := b.Chain("torso")
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Zero(t, sys.createCalls, "bodies are built on first activation")
}

func TestDynamicActivationIsContinuous(t *testing.T) {
	sys := &fakeSystem{}
	b, skel := newTestBridge(t, sys, WithChains(torso()))
	hips, spine := bone(t, skel, "hips"), bone(t, skel, "spine")

	// animate away from the bind pose first
	require.NoError(t, skel.SetBoneLocalTransform(hips, common.NewTransform(mgl32.Vec3{2, 1, 0}, mgl32.QuatRotate(0.7, mgl32.Vec3{0, 0, 1}))))
	before := append([]common.Transform(nil), skel.WorldTransforms()...)

	require.NoError(t, b.SetBodyChainState(0, StateDynamic))
	assert.Equal(t, StateDynamic, b.ActualState(0))

	after := skel.WorldTransforms()
	for i := range before {
		assert.True(t, before[i].ApproxEqual(after[i], 1e-5), "bone %d moved on activation", i)
	}
	assert.True(t, skel.HasWorldOverride(hips))
	assert.True(t, skel.HasWorldOverride(spine))

	body, ok := b.Body(0, spine)
	require.True(t, ok)
	assert.True(t, body.GetWorldTransform().ApproxEqual(before[spine], 1e-5), "bodies are seeded from the animated pose")
	require.Len(t, sys.joints, 1)
	assert.InDelta(t, 0.5, sys.joints[0].desc.ParentAnchor.Len(), 1e-5)
}

func TestDynamicChainDrivesBones(t *testing.T) {
	sys := &fakeSystem{drift: mgl32.Vec3{0, -1, 0}}
	b, skel := newTestBridge(t, sys, WithChains(torso()))
	hips, spine, thigh := bone(t, skel, "hips"), bone(t, skel, "spine"), bone(t, skel, "thigh")
	require.NoError(t, b.SetBodyChainState(0, StateDynamic))

	// animation keeps writing locals; the chain ignores them while dynamic
	require.NoError(t, skel.SetBoneLocalTransform(spine, common.TranslationTransform(5, 5, 5)))
	b.Update(1.0 / 60)

	hipsWorld, _ := skel.GetBoneWorldTransform(hips)
	spineWorld, _ := skel.GetBoneWorldTransform(spine)
	thighWorld, _ := skel.GetBoneWorldTransform(thigh)
	assert.InDelta(t, 0, hipsWorld.Translation.Y(), 1e-5)
	assert.InDelta(t, 0.5, spineWorld.Translation.Y(), 1e-5)
	// thigh is not simulated and follows its physics-driven parent through forward kinematics
	assert.InDelta(t, -0.5, thighWorld.Translation.Y(), 1e-5)
	assert.Equal(t, 1, sys.steps)
}

func TestBuildHappensOnce(t *testing.T) {
	sys := &fakeSystem{}
	b, _ := newTestBridge(t, sys, WithChains(torso()))

	require.NoError(t, b.SetBodyChainState(0, StateDynamic))
	require.NoError(t, b.SetBodyChainState(0, StateDynamic))
	require.NoError(t, b.SetBodyChainState(0, StateInactive))
	require.NoError(t, b.SetBodyChainState(0, StateKinematic))
	require.NoError(t, b.SetBodyChainState(0, StateDynamic))

	assert.Equal(t, 2, sys.createCalls)
	assert.Len(t, sys.joints, 1)
}

func TestMissingJointFallsBackToForwardKinematics(t *testing.T) {
	var logs bytes.Buffer
	sys := &fakeSystem{}
	b, skel := newTestBridge(t, sys, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	id, err := b.AddChain(ChainDefinition{Name: "loose", Bones: []string{"hips", "spine"}})
	require.NoError(t, err)

	err = b.SetBodyChainState(id, StateDynamic)
	assert.ErrorIs(t, err, ErrMissingJoint)
	assert.Equal(t, StateDynamic, b.RequestedState(id))
	assert.Equal(t, StateInactive, b.ActualState(id))
	assert.ErrorIs(t, b.ChainError(id), ErrMissingJoint)
	assert.Contains(t, logs.String(), "loose")
	assert.False(t, skel.HasWorldOverride(bone(t, skel, "hips")))

	b.Update(1.0 / 60)
	assert.Zero(t, sys.steps, "a failed chain does not run the simulation")
}

func TestBodyCreationFailureIsCached(t *testing.T) {
	sys := &fakeSystem{failBodies: true}
	b, _ := newTestBridge(t, sys, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))), WithChains(torso()))

	assert.Error(t, b.SetBodyChainState(0, StateDynamic))
	assert.Error(t, b.SetBodyChainState(0, StateKinematic))
	assert.Equal(t, 1, sys.createCalls, "construction is not retried")
	assert.Equal(t, StateKinematic, b.RequestedState(0))
	assert.Equal(t, StateInactive, b.ActualState(0))
}

func TestKinematicChainFollowsAnimation(t *testing.T) {
	sys := &fakeSystem{drift: mgl32.Vec3{0, -1, 0}}
	b, skel := newTestBridge(t, sys, WithChains(torso()))
	spine := bone(t, skel, "spine")
	require.NoError(t, b.SetBodyChainState(0, StateKinematic))

	require.NoError(t, skel.SetBoneLocalTransform(spine, common.TranslationTransform(0, 2, 0)))
	b.Update(1.0 / 60)

	body, _ := b.Body(0, spine)
	assertTranslation(t, mgl32.Vec3{0, 3, 0}, body.GetWorldTransform().Translation)
	assert.True(t, sys.bodies[0].kinematic)
	assert.False(t, skel.HasWorldOverride(spine))
	world, _ := skel.GetBoneWorldTransform(spine)
	assertTranslation(t, mgl32.Vec3{0, 3, 0}, world.Translation)
}

func TestDeactivationKeepsLastSimulatedPose(t *testing.T) {
	sys := &fakeSystem{drift: mgl32.Vec3{1, 0, 0}}
	b, skel := newTestBridge(t, sys, WithChains(torso()))
	hips, spine := bone(t, skel, "hips"), bone(t, skel, "spine")
	require.NoError(t, b.SetBodyChainState(0, StateDynamic))
	b.Update(1.0 / 60)
	simulated := append([]common.Transform(nil), skel.WorldTransforms()...)

	require.NoError(t, b.SetBodyChainState(0, StateInactive))
	assert.False(t, skel.HasWorldOverride(hips))
	assert.False(t, skel.HasWorldOverride(spine))
	for i, w := range skel.WorldTransforms() {
		assert.True(t, simulated[i].ApproxEqual(w, 1e-5), "bone %d popped on deactivation", i)
	}

	steps := sys.steps
	b.Update(1.0 / 60)
	assert.Equal(t, steps, sys.steps)
	for _, body := range sys.bodies {
		assert.False(t, body.enabled)
	}
}

func TestChainMaySkipIntermediateBones(t *testing.T) {
	sys := &fakeSystem{}
	b, skel := newTestBridge(t, sys)
	id, err := b.AddChain(ChainDefinition{
		Name:   "sparse",
		Bones:  []string{"hips", "head"},
		Joints: []JointDefinition{{Parent: "hips", Child: "head"}},
	})
	require.NoError(t, err)
	require.NoError(t, b.SetBodyChainState(id, StateDynamic))

	require.Len(t, sys.joints, 1)
	assert.InDelta(t, 0.8, sys.joints[0].desc.ParentAnchor.Len(), 1e-5)
	_, ok := b.Body(id, bone(t, skel, "spine"))
	assert.False(t, ok)
}

func TestUnknownChain(t *testing.T) {
	b, _ := newTestBridge(t, &fakeSystem{})
	assert.ErrorIs(t, b.SetBodyChainState(3, StateDynamic), ErrUnknownChain)
	assert.ErrorIs(t, b.ChainError(3), ErrUnknownChain)
	assert.Equal(t, StateInactive, b.ActualState(3))
	assert.Nil(t, b.ChainBones(3))
}

func assertTranslation(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-5), "want %v got %v", want, got)
}
