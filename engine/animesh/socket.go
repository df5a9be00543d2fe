package animesh

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/skeleton"
)

// SceneNode is an externally owned scene-graph node that follows a socket. The socket only notifies
// it; the node's lifetime is independent of the socket's.
type SceneNode interface {
	// SetTransform receives the socket's new world transform.
	//
	// Parameters:
	//   - t: the socket world transform
	SetTransform(t common.Transform)
}

// socket is the implementation of the Socket interface.
type socket struct {
	name   string
	bone   common.BoneID
	offset common.Transform

	world   common.Transform
	version uint64
	valid   bool

	node SceneNode
}

// Socket is a live attachment point: a bone plus a rigid offset, with a cached world transform that
// is recomputed only when the skeleton has changed since the last update.
type Socket interface {
	// Name returns the socket's name.
	Name() string

	// Bone returns the bone the socket is fixed to.
	Bone() common.BoneID

	// Offset returns the bone-to-socket transform.
	Offset() common.Transform

	// SetOffset replaces the bone-to-socket transform; the next Update recomputes unconditionally.
	//
	// Parameters:
	//   - offset: the new bone-to-socket transform
	SetOffset(offset common.Transform)

	// WorldTransform returns the world transform cached at the last Update.
	//
	// Returns:
	//   - common.Transform: the cached socket world transform
	WorldTransform() common.Transform

	// Attach sets the scene node that follows this socket, replacing any previous one. If the socket
	// already has a world transform the node is notified immediately.
	//
	// Parameters:
	//   - node: the node to notify; not owned by the socket
	Attach(node SceneNode)

	// Detach drops the scene node reference.
	Detach()

	// Node returns the attached scene node, or nil.
	Node() SceneNode

	// Update recomputes the world transform when the skeleton version differs from the cached one,
	// and notifies the attached node.
	//
	// Parameters:
	//   - skel: the skeleton providing the bone's world transform
	//
	// Returns:
	//   - bool: true if the transform was recomputed
	Update(skel skeleton.Skeleton) bool
}

var _ Socket = &socket{}

// UpdateSocket composes a socket's world transform: the socket offset is applied first, then the
// bone's world placement.
//
// Parameters:
//   - boneWorld: the owning bone's world transform
//   - offset: the bone-to-socket transform
//
// Returns:
//   - common.Transform: boneWorld ∘ offset
func UpdateSocket(boneWorld, offset common.Transform) common.Transform {
	return common.Compose(boneWorld, offset)
}

func newSocket(def SocketFactory) *socket {
	return &socket{
		name:   def.Name,
		bone:   def.Bone,
		offset: def.Offset,
		world:  common.IdentityTransform(),
	}
}

func (s *socket) Name() string {
	return s.name
}

func (s *socket) Bone() common.BoneID {
	return s.bone
}

func (s *socket) Offset() common.Transform {
	return s.offset
}

func (s *socket) SetOffset(offset common.Transform) {
	s.offset = offset
	s.valid = false
}

func (s *socket) WorldTransform() common.Transform {
	return s.world
}

func (s *socket) Attach(node SceneNode) {
	s.node = node
	if node != nil && s.valid {
		node.SetTransform(s.world)
	}
}

func (s *socket) Detach() {
	s.node = nil
}

func (s *socket) Node() SceneNode {
	return s.node
}

func (s *socket) Update(skel skeleton.Skeleton) bool {
	v := skel.GetVersion()
	if s.valid && v == s.version {
		return false
	}
	boneWorld, _ := skel.GetBoneWorldTransform(s.bone)
	s.world = UpdateSocket(boneWorld, s.offset)
	s.version = v
	s.valid = true
	if s.node != nil {
		s.node.SetTransform(s.world)
	}
	return true
}
