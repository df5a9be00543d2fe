package animator

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Vec3Key is a translation keyframe.
type Vec3Key struct {
	Time  float32
	Value mgl32.Vec3
}

// QuatKey is a rotation keyframe.
type QuatKey struct {
	Time  float32
	Value mgl32.Quat
}

// Channel animates one bone. Either key list may be empty, in which case that component is not
// driven by the channel. Keys must be sorted by time.
type Channel struct {
	Bone         common.BoneID
	Translations []Vec3Key
	Rotations    []QuatKey
}

// Clip is a named set of channels played over Duration seconds.
type Clip struct {
	Name     string
	Duration float32
	Channels []Channel
}

// Validate checks the clip against a skeleton of boneCount bones.
//
// Parameters:
//   - boneCount: the number of bones the clip may address
//
// Returns:
//   - error: ErrInvalidClip (wrapped) describing the first problem, or nil
func (c Clip) Validate(boneCount int) error {
	if c.Duration < 0 {
		return fmt.Errorf("%w: clip %q has negative duration", ErrInvalidClip, c.Name)
	}
	seen := make(map[common.BoneID]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if !ch.Bone.Valid(boneCount) {
			return fmt.Errorf("%w: clip %q targets bone %d of %d", ErrInvalidClip, c.Name, ch.Bone, boneCount)
		}
		if _, dup := seen[ch.Bone]; dup {
			return fmt.Errorf("%w: clip %q has two channels for bone %d", ErrInvalidClip, c.Name, ch.Bone)
		}
		seen[ch.Bone] = struct{}{}
		for i := 1; i < len(ch.Translations); i++ {
			if ch.Translations[i].Time < ch.Translations[i-1].Time {
				return fmt.Errorf("%w: clip %q bone %d translation keys out of order", ErrInvalidClip, c.Name, ch.Bone)
			}
		}
		for i := 1; i < len(ch.Rotations); i++ {
			if ch.Rotations[i].Time < ch.Rotations[i-1].Time {
				return fmt.Errorf("%w: clip %q bone %d rotation keys out of order", ErrInvalidClip, c.Name, ch.Bone)
			}
		}
	}
	return nil
}

// Sample evaluates the channel at time t, starting from base for any component the channel does
// not drive. Times outside the key range hold the first or last key.
//
// Parameters:
//   - t: the clip-local time in seconds
//   - base: the transform supplying undriven components
//
// Returns:
//   - common.Transform: the sampled local transform
func (ch Channel) Sample(t float32, base common.Transform) common.Transform {
	out := base
	if n := len(ch.Translations); n > 0 {
		i, f := locate(n, func(i int) float32 { return ch.Translations[i].Time }, t)
		if f == 0 {
			out.Translation = ch.Translations[i].Value
		} else {
			a, b := ch.Translations[i].Value, ch.Translations[i+1].Value
			out.Translation = a.Add(b.Sub(a).Mul(f))
		}
	}
	if n := len(ch.Rotations); n > 0 {
		i, f := locate(n, func(i int) float32 { return ch.Rotations[i].Time }, t)
		if f == 0 {
			out.Rotation = ch.Rotations[i].Value.Normalize()
		} else {
			out.Rotation = mgl32.QuatSlerp(ch.Rotations[i].Value, ch.Rotations[i+1].Value, f)
		}
	}
	return out
}

// locate finds the key segment containing t. It returns the index of the segment's first key and
// the interpolation factor towards the next key; f is 0 when t is clamped to an end key.
func locate(n int, timeAt func(int) float32, t float32) (int, float32) {
	if t <= timeAt(0) {
		return 0, 0
	}
	if t >= timeAt(n-1) {
		return n - 1, 0
	}
	// first key strictly after t; t lies in [i-1, i)
	i := sort.Search(n, func(i int) bool { return timeAt(i) > t })
	t0, t1 := timeAt(i-1), timeAt(i)
	if t1 <= t0 {
		return i, 0
	}
	return i - 1, (t - t0) / (t1 - t0)
}
