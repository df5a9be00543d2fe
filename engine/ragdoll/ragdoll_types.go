package ragdoll

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
)

// RagdollState selects which side drives a chain's bones.
type RagdollState int

const (
	// StateInactive leaves the chain to forward kinematics. Bodies are neither read nor written.
	StateInactive RagdollState = iota

	// StateDynamic lets the simulation drive the chain. After every physics step each body's
	// world transform replaces the bone's forward-kinematics result.
	StateDynamic

	// StateKinematic lets animation drive the bodies. Bones are pushed into their bodies before
	// every physics step so other bodies can collide with the animated pose.
	StateKinematic
)

// String returns the lowercase state name.
func (s RagdollState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateDynamic:
		return "dynamic"
	case StateKinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

// ChainID identifies a chain registered with a Bridge.
type ChainID int

// JointDefinition connects a chain bone to its skeleton parent. Limits are in radians; zero means unlimited.
type JointDefinition struct {
	Parent     string  `yaml:"parent"`
	Child      string  `yaml:"child"`
	SwingLimit float32 `yaml:"swing_limit"`
	TwistLimit float32 `yaml:"twist_limit"`
}

// ChainDefinition names a group of bones simulated together, usually authored by asset tooling.
type ChainDefinition struct {
	Name       string            `yaml:"name"`
	Bones      []string          `yaml:"bones"`
	Joints     []JointDefinition `yaml:"joints"`
	BodyRadius float32           `yaml:"body_radius"`
	Mass       float32           `yaml:"mass"`
}

// BodyDescriptor is what the bridge asks a DynamicSystem to create for one bone.
type BodyDescriptor struct {
	Name      string
	Transform common.Transform
	Radius    float32
	Mass      float32
	Kinematic bool
}

// JointDescriptor is what the bridge asks a DynamicSystem to create between two bodies.
// ParentAnchor is the child's pivot expressed in the parent body's frame; the pivot sits at the
// child body's origin.
type JointDescriptor struct {
	Name         string
	Parent       RigidBody
	Child        RigidBody
	ParentAnchor mgl32.Vec3
	SwingLimit   float32
	TwistLimit   float32
}

// RigidBody is a handle to a body owned by an external DynamicSystem.
type RigidBody interface {
	// GetWorldTransform returns the body's current pose.
	GetWorldTransform() common.Transform

	// SetWorldTransform teleports the body and clears its velocity.
	SetWorldTransform(t common.Transform)

	// SetKinematic switches the body between simulated and externally driven.
	SetKinematic(kinematic bool)

	// SetEnabled removes the body from, or returns it to, the simulation.
	SetEnabled(enabled bool)
}

// Joint is a handle to a constraint owned by an external DynamicSystem.
type Joint interface {
	// SetEnabled removes the joint from, or returns it to, the solver.
	SetEnabled(enabled bool)
}

// DynamicSystem is the rigid-body simulation the bridge couples to.
//
// Implementations own the step loop; the bridge only creates handles, steps the system and
// reads or writes body transforms between steps.
type DynamicSystem interface {
	// CreateBody adds a rigid body.
	//
	// Parameters:
	//   - desc: the body's initial pose and shape
	//
	// Returns:
	//   - RigidBody: the new body handle
	//   - error: an error if the system cannot create the body
	CreateBody(desc BodyDescriptor) (RigidBody, error)

	// CreateJoint adds a ball joint between two bodies created by this system.
	//
	// Parameters:
	//   - desc: the connected bodies, anchor and limits
	//
	// Returns:
	//   - Joint: the new joint handle
	//   - error: an error if the system cannot create the joint
	CreateJoint(desc JointDescriptor) (Joint, error)

	// Step advances the simulation by dt seconds.
	Step(dt float32)
}
