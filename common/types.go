// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "github.com/go-gl/mathgl/mgl32"

// BoneID is a dense, non-negative index into a skeleton's bone arena.
type BoneID int32

// NoBone is the parent id carried by root bones.
const NoBone BoneID = -1

// Valid reports whether id can index an arena of count bones.
func (id BoneID) Valid(count int) bool {
	return id >= 0 && int(id) < count
}

// BoneDefinition describes one bone as an importer hands it to the skeleton factory. Parents are
// referenced by position in the same definition slice; order need not be topological.
type BoneDefinition struct {
	// Name is the bone's unique name within its skeleton.
	Name string
	// Parent is the index of the parent definition, or NoBone for a root.
	Parent BoneID
	// Bind is the bone's bind-pose transform relative to its parent.
	Bind Transform
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// BoundsOf returns the bounding box of the given points. An empty slice yields the zero box.
//
// Parameters:
//   - points: the points to enclose
//
// Returns:
//   - AABB: the tightest axis-aligned box containing every point
func BoundsOf(points []mgl32.Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	b := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < b.Min[i] {
				b.Min[i] = p[i]
			}
			if p[i] > b.Max[i] {
				b.Max[i] = p[i]
			}
		}
	}
	return b
}

// Radius returns the distance from the origin to the farthest corner of the box, matching the
// bounding-radius convention used for instance culling.
func (b AABB) Radius() float32 {
	var far mgl32.Vec3
	for i := 0; i < 3; i++ {
		far[i] = max(mgl32.Abs(b.Min[i]), mgl32.Abs(b.Max[i]))
	}
	return far.Len()
}
