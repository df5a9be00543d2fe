package physics

import "github.com/go-gl/mathgl/mgl32"

// WorldBuilderOption is a functional option for configuring a World during construction.
type WorldBuilderOption func(*world)

// WithGravity is an option builder that sets the gravity acceleration.
//
// Parameters:
//   - gravity: acceleration in units per second squared
//
// Returns:
//   - WorldBuilderOption: a function that applies the gravity option
func WithGravity(gravity mgl32.Vec3) WorldBuilderOption {
	return func(w *world) {
		w.gravity = gravity
	}
}

// WithFixedStep is an option builder that sets the substep length. Non-positive values are ignored.
//
// Parameters:
//   - step: the substep length in seconds
//
// Returns:
//   - WorldBuilderOption: a function that applies the fixed step option
func WithFixedStep(step float32) WorldBuilderOption {
	return func(w *world) {
		if step > 0 {
			w.fixedStep = step
		}
	}
}

// WithMaxSubsteps is an option builder that caps the substeps per Step call. Values below 1 are ignored.
//
// Parameters:
//   - n: the substep cap
//
// Returns:
//   - WorldBuilderOption: a function that applies the substep cap option
func WithMaxSubsteps(n int) WorldBuilderOption {
	return func(w *world) {
		if n >= 1 {
			w.maxSubsteps = n
		}
	}
}

// WithSolverIterations is an option builder that sets the joint projection passes per substep.
func WithSolverIterations(n int) WorldBuilderOption {
	return func(w *world) {
		if n >= 1 {
			w.solverIterations = n
		}
	}
}

// WithDamping is an option builder that sets linear and angular damping, as fractions of velocity
// removed per second.
//
// Parameters:
//   - linear: linear damping
//   - angular: angular damping
//
// Returns:
//   - WorldBuilderOption: a function that applies the damping option
func WithDamping(linear, angular float32) WorldBuilderOption {
	return func(w *world) {
		w.linearDamping = max(linear, 0)
		w.angularDamping = max(angular, 0)
	}
}

// WithFloor is an option builder that adds a horizontal floor plane at height y.
func WithFloor(y float32) WorldBuilderOption {
	return func(w *world) {
		w.floor = y
		w.hasFloor = true
	}
}
