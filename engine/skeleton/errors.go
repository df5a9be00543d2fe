package skeleton

import "errors"

var (
	// ErrBoneOutOfRange is returned when a BoneID does not index the skeleton's bone arena.
	ErrBoneOutOfRange = errors.New("skeleton: bone id out of range")

	// ErrInvalidHierarchy is returned when parent references are out of range, self-referential, or cyclic.
	ErrInvalidHierarchy = errors.New("skeleton: invalid bone hierarchy")

	// ErrDuplicateBone is returned when two bones share a name.
	ErrDuplicateBone = errors.New("skeleton: duplicate bone name")
)
