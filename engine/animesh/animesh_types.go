package animesh

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultInfluencesPerVertex is the influence count K used when none is configured.
const DefaultInfluencesPerVertex = 4

// BoneInfluence is one (bone, weight) pair of a vertex's fixed-size influence array. Unused slots
// carry weight 0. Weights are relative; the skinning engine does not normalize them.
type BoneInfluence struct {
	Bone   common.BoneID
	Weight float32
}

// Submesh is a triangle-list partition of the factory's vertex buffers.
type Submesh struct {
	// Name identifies the submesh; unique within a factory.
	Name string

	// Indices is a triangle list into the factory's vertex buffers. Length must be a multiple of 3.
	Indices []uint32

	// BoneRemap optionally lists the subset of skeleton bones this submesh touches, so renderers
	// can upload a smaller palette. Entry i is the skeleton BoneID for submesh-local bone i.
	BoneRemap []common.BoneID

	// Material is an opaque reference resolved by the renderer.
	Material string

	// Visible is the default visibility for instances.
	Visible bool
}

// GlobalBone resolves a submesh-local bone index through BoneRemap. Without a remap table local
// indices are skeleton ids already.
//
// Parameters:
//   - local: the submesh-local bone index
//
// Returns:
//   - common.BoneID: the skeleton bone id, or common.NoBone if local is outside the remap table
func (s Submesh) GlobalBone(local int) common.BoneID {
	if s.BoneRemap == nil {
		return common.BoneID(local)
	}
	if local < 0 || local >= len(s.BoneRemap) {
		return common.NoBone
	}
	return s.BoneRemap[local]
}

// MorphTarget is a named dense set of per-vertex position deltas.
type MorphTarget struct {
	Name    string
	Offsets []mgl32.Vec3
}

// SocketFactory defines an attachment point rigidly offset from a bone.
type SocketFactory struct {
	Name   string
	Bone   common.BoneID
	Offset common.Transform
}

// SkinOutputs is a bit set of the skinned buffers a caller consumes this frame.
type SkinOutputs uint8

const (
	// OutputPositions requests skinned positions.
	OutputPositions SkinOutputs = 1 << iota
	// OutputNormals requests skinned normals.
	OutputNormals
	// OutputTangents requests skinned tangents and binormals.
	OutputTangents

	// OutputAll requests every skinned buffer the factory can provide.
	OutputAll = OutputPositions | OutputNormals | OutputTangents
)

// Has reports whether every bit of o is set.
func (s SkinOutputs) Has(o SkinOutputs) bool {
	return s&o == o
}
