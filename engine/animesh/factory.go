package animesh

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// animatedMeshFactory is the implementation of the AnimatedMeshFactory interface.
type animatedMeshFactory struct {
	mu *sync.RWMutex

	k int

	positions, normals, tangents, binormals []mgl32.Vec3
	texCoords                               []mgl32.Vec2
	colors                                  []mgl32.Vec4

	influences []BoneInfluence
	maxBone    common.BoneID

	submeshes []Submesh
	morphs    []MorphTarget
	sockets   []SocketFactory

	skeleton skeleton.SkeletonFactory

	version uint64
	pending bool
}

// AnimatedMeshFactory is the immutable per-model template shared by every AnimatedMeshInstance of a
// model: static vertex buffers, the per-vertex bone influence table, submeshes, morph targets and
// socket definitions.
//
// All setters validate eagerly and leave the previous state untouched when they fail. A successful
// setter leaves the factory pending; callers must follow up with Invalidate before instances are
// updated again, which bumps Version so instances know to recompute.
//
// Returned slices are shared with the factory and must be treated as read-only.
type AnimatedMeshFactory interface {
	// VertexCount returns N, the number of vertices in every per-vertex buffer.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// InfluencesPerVertex returns K, the fixed number of influence slots per vertex.
	//
	// Returns:
	//   - int: the influence count per vertex
	InfluencesPerVertex() int

	// Positions returns the base vertex positions.
	//
	// Returns:
	//   - []mgl32.Vec3: N positions
	Positions() []mgl32.Vec3

	// Normals returns the base vertex normals, or nil when the mesh has none.
	//
	// Returns:
	//   - []mgl32.Vec3: N normals or nil
	Normals() []mgl32.Vec3

	// Tangents returns the base vertex tangents, or nil when the mesh has none.
	//
	// Returns:
	//   - []mgl32.Vec3: N tangents or nil
	Tangents() []mgl32.Vec3

	// Binormals returns the base vertex binormals, or nil when the mesh has none.
	//
	// Returns:
	//   - []mgl32.Vec3: N binormals or nil
	Binormals() []mgl32.Vec3

	// TexCoords returns the vertex texture coordinates, or nil.
	//
	// Returns:
	//   - []mgl32.Vec2: N texture coordinates or nil
	TexCoords() []mgl32.Vec2

	// Colors returns the RGBA vertex colors, or nil.
	//
	// Returns:
	//   - []mgl32.Vec4: N colors or nil
	Colors() []mgl32.Vec4

	// Influences returns the flattened influence table of length N×K.
	//
	// Returns:
	//   - []BoneInfluence: the influence table, vertex-major
	Influences() []BoneInfluence

	// MaxInfluenceBone returns the largest bone id referenced by a non-zero influence, or
	// common.NoBone when no vertex is influenced.
	//
	// Returns:
	//   - common.BoneID: the largest referenced bone id
	MaxInfluenceBone() common.BoneID

	// Submeshes returns the submesh list.
	//
	// Returns:
	//   - []Submesh: the submeshes in declaration order
	Submeshes() []Submesh

	// MorphTargets returns the morph targets in declaration order.
	//
	// Returns:
	//   - []MorphTarget: the morph targets
	MorphTargets() []MorphTarget

	// MorphTargetIndex looks up a morph target by name.
	//
	// Parameters:
	//   - name: the morph target name
	//
	// Returns:
	//   - int: the target's index
	//   - bool: true if found
	MorphTargetIndex(name string) (int, bool)

	// SocketFactories returns the socket definitions.
	//
	// Returns:
	//   - []SocketFactory: the socket definitions
	SocketFactories() []SocketFactory

	// SkeletonFactory returns the skeleton template bound at construction, or nil.
	//
	// Returns:
	//   - skeleton.SkeletonFactory: the skeleton template or nil
	SkeletonFactory() skeleton.SkeletonFactory

	// SetPositions replaces the base positions. The length must stay N.
	//
	// Parameters:
	//   - positions: the new positions
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) on a length mismatch
	SetPositions(positions []mgl32.Vec3) error

	// SetNormals replaces the base normals. Pass nil to remove them.
	//
	// Parameters:
	//   - normals: N normals or nil
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) on a length mismatch
	SetNormals(normals []mgl32.Vec3) error

	// SetTangents replaces the tangent frame. Both slices must be N long, or both nil to remove the frame.
	//
	// Parameters:
	//   - tangents: N tangents or nil
	//   - binormals: N binormals or nil
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) on a length mismatch
	SetTangents(tangents, binormals []mgl32.Vec3) error

	// SetInfluences replaces the influence table.
	//
	// Parameters:
	//   - influences: N×K influences
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) on a length mismatch, an out-of-range bone, or a non-finite weight
	SetInfluences(influences []BoneInfluence) error

	// SetMorphTarget replaces the morph target with the same name, or appends a new one.
	//
	// Parameters:
	//   - target: the morph target
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) if the offset count is not N
	SetMorphTarget(target MorphTarget) error

	// AddSubmesh appends a submesh.
	//
	// Parameters:
	//   - submesh: the submesh to add
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for duplicate names, bad index counts, or indices ≥ N
	AddSubmesh(submesh Submesh) error

	// AddSocket appends a socket definition.
	//
	// Parameters:
	//   - socket: the socket definition
	//
	// Returns:
	//   - error: ErrInvalidArgument (wrapped) for duplicate names or an out-of-range bone
	AddSocket(socket SocketFactory) error

	// NormalizeInfluences rescales every vertex's weights so they sum to 1. Vertices whose weights
	// sum to 0 are left untouched. Like any setter, it leaves the factory pending.
	NormalizeInfluences()

	// Invalidate publishes pending changes by bumping Version.
	Invalidate()

	// Pending reports whether a setter ran since the last Invalidate.
	//
	// Returns:
	//   - bool: true if changes have not been published
	Pending() bool

	// Version returns the counter bumped by Invalidate.
	//
	// Returns:
	//   - uint64: the factory version
	Version() uint64
}

var _ AnimatedMeshFactory = &animatedMeshFactory{}

// NewAnimatedMeshFactory builds a factory from the given options and validates the complete result.
// The vertex count N is taken from the positions buffer.
//
// Parameters:
//   - options: functional options supplying buffers, influences, submeshes, morphs and sockets
//
// Returns:
//   - AnimatedMeshFactory: the validated factory
//   - error: ErrInvalidArgument (wrapped) describing the first violation found
func NewAnimatedMeshFactory(options ...AnimatedMeshFactoryBuilderOption) (AnimatedMeshFactory, error) {
	f := &animatedMeshFactory{
		mu:      &sync.RWMutex{},
		k:       DefaultInfluencesPerVertex,
		maxBone: common.NoBone,
	}
	for _, opt := range options {
		opt(f)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks the whole factory after construction and records the largest influenced bone.
func (f *animatedMeshFactory) validate() error {
	n := len(f.positions)
	if f.k < 1 {
		return fmt.Errorf("%w: influences per vertex %d", ErrInvalidArgument, f.k)
	}
	if err := checkLen("normals", len(f.normals), n, true); err != nil {
		return err
	}
	if err := f.checkTangentFrame(f.tangents, f.binormals); err != nil {
		return err
	}
	if err := checkLen("texcoords", len(f.texCoords), n, true); err != nil {
		return err
	}
	if err := checkLen("colors", len(f.colors), n, true); err != nil {
		return err
	}
	if f.influences != nil {
		maxBone, err := f.checkInfluences(f.influences)
		if err != nil {
			return err
		}
		f.maxBone = maxBone
	}

	submeshes, morphs, sockets := f.submeshes, f.morphs, f.sockets
	f.submeshes, f.morphs, f.sockets = nil, nil, nil
	for _, s := range submeshes {
		if err := f.checkSubmesh(s); err != nil {
			return err
		}
		f.submeshes = append(f.submeshes, s)
	}
	for _, m := range morphs {
		if _, dup := f.morphIndex(m.Name); dup {
			return fmt.Errorf("%w: duplicate morph target %q", ErrInvalidArgument, m.Name)
		}
		if err := checkLen("morph target "+m.Name, len(m.Offsets), n, false); err != nil {
			return err
		}
		f.morphs = append(f.morphs, m)
	}
	for _, s := range sockets {
		if err := f.checkSocket(s); err != nil {
			return err
		}
		f.sockets = append(f.sockets, s)
	}
	return nil
}

// checkLen verifies a per-vertex buffer length; optional buffers may be empty.
func checkLen(name string, got, n int, optional bool) error {
	if optional && got == 0 {
		return nil
	}
	if got != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrInvalidArgument, name, got, n)
	}
	return nil
}

func (f *animatedMeshFactory) checkTangentFrame(tangents, binormals []mgl32.Vec3) error {
	if (len(tangents) == 0) != (len(binormals) == 0) {
		return fmt.Errorf("%w: tangents and binormals must be set together", ErrInvalidArgument)
	}
	if len(tangents) > 0 && len(f.normals) == 0 {
		return fmt.Errorf("%w: a tangent frame requires normals", ErrInvalidArgument)
	}
	if err := checkLen("tangents", len(tangents), len(f.positions), true); err != nil {
		return err
	}
	return checkLen("binormals", len(binormals), len(f.positions), true)
}

// boneLimit returns the skeleton's bone count, or -1 when no skeleton is bound.
func (f *animatedMeshFactory) boneLimit() int {
	if f.skeleton == nil {
		return -1
	}
	return f.skeleton.BoneCount()
}

func (f *animatedMeshFactory) checkInfluences(influences []BoneInfluence) (common.BoneID, error) {
	n := len(f.positions)
	if len(influences) != n*f.k {
		return common.NoBone, fmt.Errorf("%w: influence table has %d entries, want %d×%d", ErrInvalidArgument, len(influences), n, f.k)
	}
	limit := f.boneLimit()
	maxBone := common.NoBone
	for i, inf := range influences {
		if math32.IsNaN(inf.Weight) || math32.IsInf(inf.Weight, 0) {
			return common.NoBone, fmt.Errorf("%w: vertex %d slot %d has non-finite weight", ErrInvalidArgument, i/f.k, i%f.k)
		}
		if inf.Weight == 0 {
			continue
		}
		if inf.Bone < 0 || (limit >= 0 && int(inf.Bone) >= limit) {
			return common.NoBone, fmt.Errorf("%w: vertex %d slot %d references bone %d", ErrInvalidArgument, i/f.k, i%f.k, inf.Bone)
		}
		if inf.Bone > maxBone {
			maxBone = inf.Bone
		}
	}
	return maxBone, nil
}

func (f *animatedMeshFactory) checkSubmesh(s Submesh) error {
	for _, existing := range f.submeshes {
		if existing.Name == s.Name {
			return fmt.Errorf("%w: duplicate submesh %q", ErrInvalidArgument, s.Name)
		}
	}
	if len(s.Indices)%3 != 0 {
		return fmt.Errorf("%w: submesh %q has %d indices, not a triangle list", ErrInvalidArgument, s.Name, len(s.Indices))
	}
	n := uint32(len(f.positions))
	for i, idx := range s.Indices {
		if idx >= n {
			return fmt.Errorf("%w: submesh %q index %d references vertex %d of %d", ErrInvalidArgument, s.Name, i, idx, n)
		}
	}
	limit := f.boneLimit()
	for i, b := range s.BoneRemap {
		if b < 0 || (limit >= 0 && int(b) >= limit) {
			return fmt.Errorf("%w: submesh %q remap entry %d references bone %d", ErrInvalidArgument, s.Name, i, b)
		}
	}
	return nil
}

func (f *animatedMeshFactory) checkSocket(s SocketFactory) error {
	for _, existing := range f.sockets {
		if existing.Name == s.Name {
			return fmt.Errorf("%w: duplicate socket %q", ErrInvalidArgument, s.Name)
		}
	}
	limit := f.boneLimit()
	if s.Bone < 0 || (limit >= 0 && int(s.Bone) >= limit) {
		return fmt.Errorf("%w: socket %q references bone %d", ErrInvalidArgument, s.Name, s.Bone)
	}
	return nil
}

func (f *animatedMeshFactory) morphIndex(name string) (int, bool) {
	for i, m := range f.morphs {
		if m.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (f *animatedMeshFactory) VertexCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.positions)
}

func (f *animatedMeshFactory) InfluencesPerVertex() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.k
}

func (f *animatedMeshFactory) Positions() []mgl32.Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.positions
}

func (f *animatedMeshFactory) Normals() []mgl32.Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.normals
}

func (f *animatedMeshFactory) Tangents() []mgl32.Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tangents
}

func (f *animatedMeshFactory) Binormals() []mgl32.Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.binormals
}

func (f *animatedMeshFactory) TexCoords() []mgl32.Vec2 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.texCoords
}

func (f *animatedMeshFactory) Colors() []mgl32.Vec4 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.colors
}

func (f *animatedMeshFactory) Influences() []BoneInfluence {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.influences
}

func (f *animatedMeshFactory) MaxInfluenceBone() common.BoneID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.maxBone
}

func (f *animatedMeshFactory) Submeshes() []Submesh {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.submeshes
}

func (f *animatedMeshFactory) MorphTargets() []MorphTarget {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.morphs
}

func (f *animatedMeshFactory) MorphTargetIndex(name string) (int, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.morphIndex(name)
}

func (f *animatedMeshFactory) SocketFactories() []SocketFactory {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sockets
}

func (f *animatedMeshFactory) SkeletonFactory() skeleton.SkeletonFactory {
	return f.skeleton
}

func (f *animatedMeshFactory) SetPositions(positions []mgl32.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkLen("positions", len(positions), len(f.positions), false); err != nil {
		return err
	}
	f.positions = positions
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) SetNormals(normals []mgl32.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkLen("normals", len(normals), len(f.positions), true); err != nil {
		return err
	}
	if len(normals) == 0 && len(f.tangents) > 0 {
		return fmt.Errorf("%w: cannot remove normals while a tangent frame is set", ErrInvalidArgument)
	}
	f.normals = normals
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) SetTangents(tangents, binormals []mgl32.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkTangentFrame(tangents, binormals); err != nil {
		return err
	}
	f.tangents, f.binormals = tangents, binormals
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) SetInfluences(influences []BoneInfluence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxBone, err := f.checkInfluences(influences)
	if err != nil {
		return err
	}
	f.influences = influences
	f.maxBone = maxBone
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) SetMorphTarget(target MorphTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkLen("morph target "+target.Name, len(target.Offsets), len(f.positions), false); err != nil {
		return err
	}
	if i, ok := f.morphIndex(target.Name); ok {
		f.morphs[i] = target
	} else {
		f.morphs = append(f.morphs, target)
	}
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) AddSubmesh(submesh Submesh) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkSubmesh(submesh); err != nil {
		return err
	}
	f.submeshes = append(f.submeshes, submesh)
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) AddSocket(socket SocketFactory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkSocket(socket); err != nil {
		return err
	}
	f.sockets = append(f.sockets, socket)
	f.pending = true
	return nil
}

func (f *animatedMeshFactory) NormalizeInfluences() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for v := 0; v+f.k <= len(f.influences); v += f.k {
		slots := f.influences[v : v+f.k]
		var sum float32
		for _, inf := range slots {
			sum += inf.Weight
		}
		if sum == 0 || sum == 1 {
			continue
		}
		for j := range slots {
			slots[j].Weight /= sum
		}
	}
	f.pending = true
}

func (f *animatedMeshFactory) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.pending = false
}

func (f *animatedMeshFactory) Pending() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pending
}

func (f *animatedMeshFactory) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}
