package animesh

import "github.com/go-gl/mathgl/mgl32"

// ApplyMorphs blends morph targets onto the base positions:
//
//	working[v] = base[v] + Σ weights[t] · targets[t].Offsets[v]
//
// Targets are summed left to right, skipping zero weights. Missing trailing weights count as 0.
// When every weight is 0 the base slice itself is returned and dst is left untouched.
//
// Parameters:
//   - base: the factory's base positions
//   - targets: the morph targets, each with len(base) offsets
//   - weights: one weight per target
//   - dst: working buffer, reused when large enough
//
// Returns:
//   - []mgl32.Vec3: the working positions, either base or dst
func ApplyMorphs(base []mgl32.Vec3, targets []MorphTarget, weights []float32, dst []mgl32.Vec3) []mgl32.Vec3 {
	if !anyActive(weights, len(targets)) {
		return base
	}

	dst = ensureLen(dst, len(base))
	copy(dst, base)
	for t, target := range targets {
		if t >= len(weights) {
			break
		}
		w := weights[t]
		if w == 0 {
			continue
		}
		for v, off := range target.Offsets[:len(base)] {
			dst[v] = dst[v].Add(off.Mul(w))
		}
	}
	return dst
}

// anyActive reports whether any of the first n weights is non-zero.
func anyActive(weights []float32, n int) bool {
	for i, w := range weights {
		if i >= n {
			break
		}
		if w != 0 {
			return true
		}
	}
	return false
}
