package physics

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultFixedStep is the substep length in seconds.
	DefaultFixedStep float32 = 1.0 / 120

	// DefaultMaxSubsteps caps the substeps run by a single Step call.
	DefaultMaxSubsteps = 8

	// DefaultSolverIterations is the number of joint projection passes per substep.
	DefaultSolverIterations = 8
)

// world is the implementation of the World interface.
type world struct {
	gravity          mgl32.Vec3
	fixedStep        float32
	maxSubsteps      int
	solverIterations int
	linearDamping    float32
	angularDamping   float32
	floor            float32
	hasFloor         bool

	bodies []*body
	joints []*ballJoint

	accumulator float32
	substeps    uint64
}

// World is a small deterministic rigid-body simulation of spheres connected by ball joints.
//
// Step consumes time in fixed substeps, carrying any remainder to the next call and dropping the
// backlog once the substep cap is hit. Within a substep, bodies integrate with semi-implicit Euler
// and joints are then enforced by iterative position projection, with velocities recovered from
// the corrected positions. Identical inputs always produce identical results.
//
// A World is not safe for concurrent use; give each independently updated object its own.
type World interface {
	ragdoll.DynamicSystem

	// Bodies returns every body in creation order.
	Bodies() []Body

	// JointCount returns the number of joints.
	JointCount() int

	// SubstepCount returns the total number of substeps run.
	SubstepCount() uint64

	// Gravity returns the gravity acceleration.
	Gravity() mgl32.Vec3

	// FixedStep returns the substep length in seconds.
	FixedStep() float32
}

var _ World = &world{}

// NewWorld creates an empty world.
//
// Parameters:
//   - options: functional options for gravity, stepping, damping and the floor plane
//
// Returns:
//   - World: the new world
func NewWorld(options ...WorldBuilderOption) World {
	w := &world{
		gravity:          mgl32.Vec3{0, -9.81, 0},
		fixedStep:        DefaultFixedStep,
		maxSubsteps:      DefaultMaxSubsteps,
		solverIterations: DefaultSolverIterations,
		linearDamping:    0.05,
		angularDamping:   0.1,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

func (w *world) CreateBody(desc ragdoll.BodyDescriptor) (ragdoll.RigidBody, error) {
	if desc.Radius < 0 || !finiteTransform(desc.Transform) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBody, desc.Name)
	}
	mass := desc.Mass
	if mass <= 0 {
		mass = 1
	}
	b := &body{
		world:     w,
		name:      desc.Name,
		radius:    desc.Radius,
		mass:      mass,
		kinematic: desc.Kinematic,
		enabled:   true,
	}
	b.SetWorldTransform(desc.Transform)
	w.bodies = append(w.bodies, b)
	return b, nil
}

func (w *world) CreateJoint(desc ragdoll.JointDescriptor) (ragdoll.Joint, error) {
	parent, ok := desc.Parent.(*body)
	if !ok || parent.world != w {
		return nil, fmt.Errorf("%w: joint %q parent", ErrForeignBody, desc.Name)
	}
	child, ok := desc.Child.(*body)
	if !ok || child.world != w {
		return nil, fmt.Errorf("%w: joint %q child", ErrForeignBody, desc.Name)
	}

	j := &ballJoint{
		name:    desc.Name,
		parent:  parent,
		child:   child,
		anchor:  desc.ParentAnchor,
		axis:    common.SafeNormalize(desc.ParentAnchor, mgl32.Vec3{0, 1, 0}),
		restRel: parent.state.Quat.Conjugate().Mul(child.state.Quat).Normalize(),
		swing:   desc.SwingLimit,
		twist:   desc.TwistLimit,
		enabled: true,
	}
	parent.childJoints++
	w.joints = append(w.joints, j)
	return j, nil
}

func (w *world) Step(dt float32) {
	if dt <= 0 || math32.IsNaN(dt) || math32.IsInf(dt, 0) {
		return
	}
	w.accumulator += dt
	n := 0
	for w.accumulator >= w.fixedStep && n < w.maxSubsteps {
		w.substep(w.fixedStep)
		w.accumulator -= w.fixedStep
		n++
	}
	if w.accumulator >= w.fixedStep {
		w.accumulator = 0
	}
}

func (w *world) Bodies() []Body {
	out := make([]Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b
	}
	return out
}

func (w *world) JointCount() int {
	return len(w.joints)
}

func (w *world) SubstepCount() uint64 {
	return w.substeps
}

func (w *world) Gravity() mgl32.Vec3 {
	return w.gravity
}

func (w *world) FixedStep() float32 {
	return w.fixedStep
}

// substep integrates, projects constraints, and derives velocities for one fixed step.
func (w *world) substep(h float32) {
	linDamp := math32.Max(0, 1-w.linearDamping*h)
	angDamp := math32.Max(0, 1-w.angularDamping*h)

	for _, b := range w.bodies {
		if !b.simulated() {
			continue
		}
		b.prevPos = b.state.Pos
		b.prevQuat = b.state.Quat
		b.state.LinVel = b.state.LinVel.Add(w.gravity.Mul(h)).Mul(linDamp)
		b.state.AngVel = b.state.AngVel.Mul(angDamp)
		b.state.StepByLinVel(h)
		b.state.StepByAngVel(h)
	}

	for range w.solverIterations {
		for _, j := range w.joints {
			j.solve()
		}
		if w.hasFloor {
			w.resolveFloor()
		}
	}

	for _, b := range w.bodies {
		if !b.simulated() {
			continue
		}
		b.state.LinVel = b.state.Pos.Sub(b.prevPos).Mul(1 / h)
		dq := b.state.Quat.Mul(b.prevQuat.Conjugate())
		if dq.W < 0 {
			dq = dq.Scale(-1)
		}
		b.state.AngVel = dq.V.Mul(2 / h)
	}
	w.substeps++
}

// resolveFloor pushes simulated bodies out of the floor plane.
func (w *world) resolveFloor() {
	for _, b := range w.bodies {
		if !b.simulated() {
			continue
		}
		if low := w.floor + b.radius; b.state.Pos[1] < low {
			b.state.Pos[1] = low
		}
	}
}

// finiteTransform rejects poses containing NaN or infinities.
func finiteTransform(t common.Transform) bool {
	vals := []float32{
		t.Translation[0], t.Translation[1], t.Translation[2],
		t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2],
	}
	for _, v := range vals {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
