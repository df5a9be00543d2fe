package physics

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// State is the kinematic state of a body: pose plus linear and angular velocity, all in world space.
type State struct {
	// position of the body origin
	Pos mgl32.Vec3

	// orientation
	Quat mgl32.Quat

	// linear velocity
	LinVel mgl32.Vec3

	// angular velocity, axis scaled by radians per second
	AngVel mgl32.Vec3
}

// AngMotionMax is the largest rotation a body may take in one substep.
const AngMotionMax = math.Pi / 4

// StepByLinVel advances Pos by the linear velocity.
func (s *State) StepByLinVel(step float32) {
	s.Pos = s.Pos.Add(s.LinVel.Mul(step))
}

// StepByAngVel advances Quat by the angular velocity, clamping the rotation to AngMotionMax.
func (s *State) StepByAngVel(step float32) {
	ang := s.AngVel.Len()
	if ang == 0 {
		return
	}
	if ang*step > AngMotionMax {
		ang = AngMotionMax / step
	}

	var axis mgl32.Vec3
	if ang < 0.001 {
		// Taylor expansion of sin(x/2)/x around zero
		axis = s.AngVel.Mul(0.5*step - (step*step*step)*0.020833333333*ang*ang)
	} else {
		axis = s.AngVel.Mul(math32.Sin(0.5*ang*step) / s.AngVel.Len())
	}
	dq := mgl32.Quat{W: math32.Cos(0.5 * ang * step), V: axis}
	s.Quat = dq.Mul(s.Quat).Normalize()
}

// Teleport moves the body to a pose and stops it.
func (s *State) Teleport(pos mgl32.Vec3, rot mgl32.Quat) {
	s.Pos = pos
	s.Quat = rot.Normalize()
	s.LinVel = mgl32.Vec3{}
	s.AngVel = mgl32.Vec3{}
}
