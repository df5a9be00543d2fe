package ragdoll

import "errors"

var (
	// ErrUnknownBone is returned when a chain or joint names a bone the skeleton does not have.
	ErrUnknownBone = errors.New("ragdoll: unknown bone")

	// ErrMissingJoint is returned when a bone and its skeleton parent are both in a chain but no joint connects them.
	ErrMissingJoint = errors.New("ragdoll: missing joint")

	// ErrUnknownChain is returned for a ChainID the bridge did not issue.
	ErrUnknownChain = errors.New("ragdoll: unknown chain")

	// ErrChainOverlap is returned when a bone is claimed by two chains.
	ErrChainOverlap = errors.New("ragdoll: bone already belongs to a chain")

	// ErrInvalidChain is returned for malformed chain definitions (empty, duplicate names, bad joints).
	ErrInvalidChain = errors.New("ragdoll: invalid chain definition")
)
