package physics

import (
	"github.com/Carmen-Shannon/oxy-animesh/engine/ragdoll"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-6

// ballJoint pins the child body's origin to an anchor fixed in the parent body's frame, with
// optional swing and twist limits on the child's rotation relative to the parent.
type ballJoint struct {
	name          string
	parent, child *body
	anchor        mgl32.Vec3 // parent frame
	axis          mgl32.Vec3 // twist axis, parent frame
	restRel       mgl32.Quat // child rotation relative to parent at creation
	swing, twist  float32
	enabled       bool
}

var _ ragdoll.Joint = &ballJoint{}

func (j *ballJoint) SetEnabled(enabled bool) {
	j.enabled = enabled
}

// solve runs one projection pass of the joint.
func (j *ballJoint) solve() {
	p, c := j.parent, j.child
	if !j.enabled || !p.enabled || !c.enabled {
		return
	}
	wp, wc := p.invMass(), c.invMass()
	total := wp + wc
	if total == 0 {
		return
	}

	// swing the parent so its anchor points at the child; shared between all of its joints
	if wp > 0 && j.anchor.LenSqr() > epsilon {
		cur := p.state.Quat.Rotate(j.anchor)
		want := c.state.Pos.Sub(p.state.Pos)
		if want.LenSqr() > epsilon {
			share := wp / total / float32(max(p.childJoints, 1))
			dq := mgl32.QuatSlerp(mgl32.QuatIdent(), mgl32.QuatBetweenVectors(cur.Normalize(), want.Normalize()), share)
			p.state.Quat = dq.Mul(p.state.Quat).Normalize()
		}
	}

	pivot := p.state.Pos.Add(p.state.Quat.Rotate(j.anchor))
	diff := c.state.Pos.Sub(pivot)
	c.state.Pos = c.state.Pos.Sub(diff.Mul(wc / total))
	p.state.Pos = p.state.Pos.Add(diff.Mul(wp / total))

	if wc > 0 && (j.swing > 0 || j.twist > 0) {
		j.limit()
	}
}

// limit clamps the child's deviation from its rest rotation, split into swing and twist about the
// joint axis.
func (j *ballJoint) limit() {
	p, c := j.parent, j.child
	rel := p.state.Quat.Conjugate().Mul(c.state.Quat)
	dev := rel.Mul(j.restRel.Conjugate())

	swing, twist := swingTwist(dev, j.axis)
	swing = clampAngle(swing, j.swing)
	twist = clampAngle(twist, j.twist)

	c.state.Quat = p.state.Quat.Mul(swing.Mul(twist)).Mul(j.restRel).Normalize()
}

// swingTwist decomposes q into swing * twist where twist rotates about axis.
func swingTwist(q mgl32.Quat, axis mgl32.Vec3) (swing, twist mgl32.Quat) {
	proj := axis.Mul(q.V.Dot(axis))
	twist = mgl32.Quat{W: q.W, V: proj}
	if twist.Len() < epsilon {
		twist = mgl32.QuatIdent()
	} else {
		twist = twist.Normalize()
	}
	return q.Mul(twist.Conjugate()), twist
}

// clampAngle limits the rotation angle of q to limit radians; zero means unlimited.
func clampAngle(q mgl32.Quat, limit float32) mgl32.Quat {
	if limit <= 0 {
		return q
	}
	if q.W < 0 {
		q = q.Scale(-1)
	}
	angle := 2 * math32.Acos(mgl32.Clamp(q.W, -1, 1))
	if angle <= limit {
		return q
	}
	return mgl32.QuatSlerp(mgl32.QuatIdent(), q, limit/angle)
}
