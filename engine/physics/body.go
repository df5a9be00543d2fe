package physics

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/go-gl/mathgl/mgl32"
)

// body is the implementation of the Body interface.
type body struct {
	world     *world
	name      string
	radius    float32
	mass      float32
	kinematic bool
	enabled   bool
	// joints in which this body is the parent; used to share rotation corrections
	childJoints int

	state    State
	prevPos  mgl32.Vec3
	prevQuat mgl32.Quat
}

// Body is a sphere-shaped rigid body owned by a World.
type Body interface {
	ragdoll.RigidBody

	// Name returns the name given at creation.
	Name() string

	// State returns a copy of the body's kinematic state.
	State() State

	// Kinematic reports whether the body is driven externally.
	Kinematic() bool

	// Enabled reports whether the body takes part in the simulation.
	Enabled() bool

	// Radius returns the collision radius.
	Radius() float32

	// Mass returns the body's mass.
	Mass() float32
}

var _ Body = &body{}

func (b *body) Name() string {
	return b.name
}

func (b *body) State() State {
	return b.state
}

func (b *body) Kinematic() bool {
	return b.kinematic
}

func (b *body) Enabled() bool {
	return b.enabled
}

func (b *body) Radius() float32 {
	return b.radius
}

func (b *body) Mass() float32 {
	return b.mass
}

func (b *body) GetWorldTransform() common.Transform {
	return common.Transform{Translation: b.state.Pos, Rotation: b.state.Quat}
}

func (b *body) SetWorldTransform(t common.Transform) {
	b.state.Teleport(t.Translation, t.Rotation)
	b.prevPos = b.state.Pos
	b.prevQuat = b.state.Quat
}

func (b *body) SetKinematic(kinematic bool) {
	b.kinematic = kinematic
	if kinematic {
		b.state.LinVel = mgl32.Vec3{}
		b.state.AngVel = mgl32.Vec3{}
	}
}

func (b *body) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// invMass is zero for bodies the solver must not move.
func (b *body) invMass() float32 {
	if !b.simulated() {
		return 0
	}
	return 1 / b.mass
}

// simulated reports whether integration and constraint solving may move the body.
func (b *body) simulated() bool {
	return b.enabled && !b.kinematic
}
