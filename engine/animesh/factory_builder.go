package animesh

import (
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// AnimatedMeshFactoryBuilderOption is a functional option for configuring an AnimatedMeshFactory during construction.
// Options only record data; NewAnimatedMeshFactory validates everything once all options are applied.
type AnimatedMeshFactoryBuilderOption func(*animatedMeshFactory)

// WithPositions is an option builder that sets the base positions. Their length defines the vertex count N.
//
// Parameters:
//   - positions: the base vertex positions
//
// Returns:
//   - AnimatedMeshFactoryBuilderOption: a function that applies the positions option
func WithPositions(positions []mgl32.Vec3) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.positions = positions
	}
}

// WithNormals is an option builder that sets the base normals.
//
// Parameters:
//   - normals: N unit normals
//
// Returns:
//   - AnimatedMeshFactoryBuilderOption: a function that applies the normals option
func WithNormals(normals []mgl32.Vec3) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.normals = normals
	}
}

// WithTangents is an option builder that sets the tangent frame.
//
// Parameters:
//   - tangents: N unit tangents
//   - binormals: N unit binormals
//
// Returns:
//   - AnimatedMeshFactoryBuilderOption: a function that applies the tangent frame option
func WithTangents(tangents, binormals []mgl32.Vec3) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.tangents, f.binormals = tangents, binormals
	}
}

// WithTexCoords is an option builder that sets the texture coordinates.
func WithTexCoords(texCoords []mgl32.Vec2) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.texCoords = texCoords
	}
}

// WithColors is an option builder that sets RGBA vertex colors.
func WithColors(colors []mgl32.Vec4) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.colors = colors
	}
}

// WithInfluences is an option builder that sets the influence table and the per-vertex slot count K.
//
// Parameters:
//   - influences: N×K influences, vertex-major
//   - perVertex: K, the number of slots per vertex
//
// Returns:
//   - AnimatedMeshFactoryBuilderOption: a function that applies the influences option
func WithInfluences(influences []BoneInfluence, perVertex int) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.influences = influences
		f.k = perVertex
	}
}

// WithSubmesh is an option builder that appends a submesh.
func WithSubmesh(submesh Submesh) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.submeshes = append(f.submeshes, submesh)
	}
}

// WithMorphTarget is an option builder that appends a morph target.
func WithMorphTarget(target MorphTarget) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.morphs = append(f.morphs, target)
	}
}

// WithSocket is an option builder that appends a socket definition.
func WithSocket(socket SocketFactory) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.sockets = append(f.sockets, socket)
	}
}

// WithSkeletonFactory is an option builder that binds the skeleton template. When bound, influence,
// remap and socket bone ids are range-checked against it.
//
// Parameters:
//   - sf: the skeleton template
//
// Returns:
//   - AnimatedMeshFactoryBuilderOption: a function that applies the skeleton option
func WithSkeletonFactory(sf skeleton.SkeletonFactory) AnimatedMeshFactoryBuilderOption {
	return func(f *animatedMeshFactory) {
		f.skeleton = sf
	}
}
