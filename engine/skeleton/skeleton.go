package skeleton

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
)

// skeleton is the implementation of the Skeleton interface.
type skeleton struct {
	factory *skeletonFactory

	local    []common.Transform
	world    []common.Transform
	override []common.Transform
	// overridden marks bones whose world transform is supplied externally instead of by forward kinematics.
	overridden []bool

	version uint64
	dirty   bool
}

// Skeleton is a live, mutable pose over a SkeletonFactory's bone arena.
//
// Bone local transforms are written by the animation system; world transforms are produced by
// forward kinematics in ascending id order. Individual bones may instead carry a world override
// (used by the ragdoll bridge), in which case the override replaces parent composition for that
// bone while its non-overridden children keep composing relative to it.
//
// A Skeleton is not safe for concurrent use; one updater drives it at a time.
type Skeleton interface {
	// Factory returns the template this skeleton was created from.
	//
	// Returns:
	//   - SkeletonFactory: the backing factory
	Factory() SkeletonFactory

	// BoneCount returns the number of bones.
	//
	// Returns:
	//   - int: the bone count
	BoneCount() int

	// SetBoneLocalTransform sets a bone's transform relative to its parent.
	//
	// Parameters:
	//   - id: the bone to modify
	//   - t: the new local transform
	//
	// Returns:
	//   - error: ErrBoneOutOfRange (wrapped) if id is invalid
	SetBoneLocalTransform(id common.BoneID, t common.Transform) error

	// BoneLocalTransform returns a bone's current local transform.
	//
	// Parameters:
	//   - id: the bone to read
	//
	// Returns:
	//   - common.Transform: the local transform, identity when id is invalid
	//   - bool: false if id is invalid
	BoneLocalTransform(id common.BoneID) (common.Transform, bool)

	// GetBoneWorldTransform returns a bone's model-space transform, running forward kinematics first
	// if any bone changed since the last update.
	//
	// Parameters:
	//   - id: the bone to read
	//
	// Returns:
	//   - common.Transform: the world transform, identity when id is invalid
	//   - bool: false if id is invalid
	GetBoneWorldTransform(id common.BoneID) (common.Transform, bool)

	// GetVersion returns a counter that increases every time any bone's local transform or world
	// override changes. It never decreases.
	//
	// Returns:
	//   - uint64: the current version
	GetVersion() uint64

	// SetBoneWorldOverride pins a bone's world transform, bypassing parent composition.
	//
	// Parameters:
	//   - id: the bone to pin
	//   - t: the world transform to use
	//
	// Returns:
	//   - error: ErrBoneOutOfRange (wrapped) if id is invalid
	SetBoneWorldOverride(id common.BoneID, t common.Transform) error

	// ClearBoneWorldOverride releases a pinned bone back to forward kinematics. The bone resumes from
	// its last local transform. No-op for invalid or unpinned bones.
	//
	// Parameters:
	//   - id: the bone to release
	ClearBoneWorldOverride(id common.BoneID)

	// HasWorldOverride reports whether a bone is currently pinned.
	//
	// Parameters:
	//   - id: the bone to check
	//
	// Returns:
	//   - bool: true if the bone carries a world override
	HasWorldOverride(id common.BoneID) bool

	// UpdateWorldTransforms runs forward kinematics for every bone, parents before children.
	// No-op if nothing changed since the previous update.
	UpdateWorldTransforms()

	// WorldTransforms returns the flattened per-bone world transforms after bringing them up to date.
	// The slice is owned by the skeleton and is overwritten by later updates.
	//
	// Returns:
	//   - []common.Transform: one world transform per bone, indexed by BoneID
	WorldTransforms() []common.Transform

	// SkinningPalette fills dst with world × inverseBind for every bone, growing dst only if its
	// capacity is too small.
	//
	// Parameters:
	//   - dst: destination slice, reused when large enough
	//
	// Returns:
	//   - []mgl32.Mat4: the palette, one column-major matrix per bone
	SkinningPalette(dst []mgl32.Mat4) []mgl32.Mat4

	// ResetToBindPose restores every local transform to the bind pose and clears all overrides.
	ResetToBindPose()
}

var _ Skeleton = &skeleton{}

func newSkeleton(f *skeletonFactory) *skeleton {
	n := len(f.names)
	s := &skeleton{
		factory:    f,
		local:      make([]common.Transform, n),
		world:      make([]common.Transform, n),
		override:   make([]common.Transform, n),
		overridden: make([]bool, n),
	}
	copy(s.local, f.bindLocal)
	copy(s.world, f.bindWorld)
	return s
}

func (s *skeleton) Factory() SkeletonFactory {
	return s.factory
}

func (s *skeleton) BoneCount() int {
	return len(s.local)
}

func (s *skeleton) SetBoneLocalTransform(id common.BoneID, t common.Transform) error {
	if !id.Valid(len(s.local)) {
		return fmt.Errorf("%w: %d (bones: %d)", ErrBoneOutOfRange, id, len(s.local))
	}
	s.local[id] = t
	s.touch()
	return nil
}

func (s *skeleton) BoneLocalTransform(id common.BoneID) (common.Transform, bool) {
	if !id.Valid(len(s.local)) {
		return common.IdentityTransform(), false
	}
	return s.local[id], true
}

func (s *skeleton) GetBoneWorldTransform(id common.BoneID) (common.Transform, bool) {
	if !id.Valid(len(s.world)) {
		return common.IdentityTransform(), false
	}
	s.UpdateWorldTransforms()
	return s.world[id], true
}

func (s *skeleton) GetVersion() uint64 {
	return s.version
}

func (s *skeleton) SetBoneWorldOverride(id common.BoneID, t common.Transform) error {
	if !id.Valid(len(s.override)) {
		return fmt.Errorf("%w: %d (bones: %d)", ErrBoneOutOfRange, id, len(s.override))
	}
	s.override[id] = t
	s.overridden[id] = true
	s.touch()
	return nil
}

func (s *skeleton) ClearBoneWorldOverride(id common.BoneID) {
	if !id.Valid(len(s.overridden)) || !s.overridden[id] {
		return
	}
	s.overridden[id] = false
	s.touch()
}

func (s *skeleton) HasWorldOverride(id common.BoneID) bool {
	return id.Valid(len(s.overridden)) && s.overridden[id]
}

func (s *skeleton) UpdateWorldTransforms() {
	if !s.dirty {
		return
	}
	parents := s.factory.parents
	for i := range s.local {
		switch {
		case s.overridden[i]:
			s.world[i] = s.override[i]
		case parents[i] == common.NoBone:
			s.world[i] = s.local[i]
		default:
			s.world[i] = common.Compose(s.world[parents[i]], s.local[i])
		}
	}
	s.dirty = false
}

func (s *skeleton) WorldTransforms() []common.Transform {
	s.UpdateWorldTransforms()
	return s.world
}

func (s *skeleton) SkinningPalette(dst []mgl32.Mat4) []mgl32.Mat4 {
	s.UpdateWorldTransforms()
	n := len(s.world)
	if cap(dst) < n {
		dst = make([]mgl32.Mat4, n)
	}
	dst = dst[:n]
	for i := range s.world {
		dst[i] = common.Compose(s.world[i], s.factory.inverseBind[i]).Mat4()
	}
	return dst
}

func (s *skeleton) ResetToBindPose() {
	copy(s.local, s.factory.bindLocal)
	for i := range s.overridden {
		s.overridden[i] = false
	}
	s.touch()
}

// touch records a change: the version moves forward and forward kinematics must rerun.
func (s *skeleton) touch() {
	s.version++
	s.dirty = true
}
