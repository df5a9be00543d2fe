package animesh

import (
	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/go-gl/mathgl/mgl32"
)

// SkinningMode selects one of the fixed skinning code paths.
type SkinningMode int

const (
	// SkinNone copies the input buffers through unchanged (static pose or unskinned mesh).
	SkinNone SkinningMode = iota

	// SkinPosition skins positions only.
	SkinPosition

	// SkinPositionNormal skins positions and normals.
	SkinPositionNormal

	// SkinPositionNormalTangent skins positions, normals, tangents and binormals.
	SkinPositionNormalTangent
)

// String returns a short name for the mode.
func (m SkinningMode) String() string {
	switch m {
	case SkinNone:
		return "none"
	case SkinPosition:
		return "position"
	case SkinPositionNormal:
		return "position+normal"
	case SkinPositionNormalTangent:
		return "position+normal+tangent"
	default:
		return "unknown"
	}
}

// SkinInput holds the unskinned geometry fed to Skin. Positions is usually the morph working buffer.
type SkinInput struct {
	Positions, Normals, Tangents, Binormals []mgl32.Vec3
}

// SkinOutput holds caller-owned destination buffers. Skin resizes a buffer only when its capacity is
// too small, so steady-state calls do not allocate.
type SkinOutput struct {
	Positions, Normals, Tangents, Binormals []mgl32.Vec3
}

var identityPalette = []mgl32.Mat4{mgl32.Ident4()}

// SelectSkinningMode returns the cheapest mode producing every requested output that the inputs can
// provide. Requesting tangents implies normals. Requests for missing inputs degrade to the next
// smaller mode instead of failing.
//
// Parameters:
//   - want: the outputs consumed this frame
//   - haveNormals: whether input normals exist
//   - haveTangents: whether input tangents and binormals exist
//
// Returns:
//   - SkinningMode: the selected mode; SkinNone when nothing is requested
func SelectSkinningMode(want SkinOutputs, haveNormals, haveTangents bool) SkinningMode {
	switch {
	case want == 0:
		return SkinNone
	case want.Has(OutputTangents) && haveNormals && haveTangents:
		return SkinPositionNormalTangent
	case (want.Has(OutputNormals) || want.Has(OutputTangents)) && haveNormals:
		return SkinPositionNormal
	default:
		return SkinPosition
	}
}

// Skin computes skinned geometry for every vertex of in.Positions.
//
// Each vertex accumulates weight × (palette[bone] · position) over its k influence slots; zero
// weights are skipped. Directions use the rotation part of each matrix and are renormalized after
// blending. A vertex whose slots all carry weight 0 keeps its input geometry. Bone ids outside the
// palette are clamped to its range.
//
// Parameters:
//   - mode: the code path to run
//   - in: the input geometry; Normals/Tangents/Binormals must be present for the modes that read them
//   - palette: one skinning matrix per bone, indexed by BoneID
//   - influences: N×k influences, vertex-major
//   - k: influence slots per vertex
//   - out: destination buffers, resized to N as needed
func Skin(mode SkinningMode, in SkinInput, palette []mgl32.Mat4, influences []BoneInfluence, k int, out *SkinOutput) {
	n := len(in.Positions)
	if len(palette) == 0 {
		palette = identityPalette
	}
	if k < 1 || len(influences) < n*k {
		mode = SkinNone
	}

	switch mode {
	case SkinPosition:
		out.Positions = ensureLen(out.Positions, n)
		skinPositions(in, palette, influences, k, out)
	case SkinPositionNormal:
		out.Positions = ensureLen(out.Positions, n)
		out.Normals = ensureLen(out.Normals, n)
		skinPositionsNormals(in, palette, influences, k, out)
	case SkinPositionNormalTangent:
		out.Positions = ensureLen(out.Positions, n)
		out.Normals = ensureLen(out.Normals, n)
		out.Tangents = ensureLen(out.Tangents, n)
		out.Binormals = ensureLen(out.Binormals, n)
		skinFullFrame(in, palette, influences, k, out)
	default:
		out.Positions = copyInto(out.Positions, in.Positions)
		out.Normals = copyInto(out.Normals, in.Normals)
		out.Tangents = copyInto(out.Tangents, in.Tangents)
		out.Binormals = copyInto(out.Binormals, in.Binormals)
	}
}

func skinPositions(in SkinInput, palette []mgl32.Mat4, influences []BoneInfluence, k int, out *SkinOutput) {
	last := common.BoneID(len(palette) - 1)
	for v, p := range in.Positions {
		var acc mgl32.Vec3
		var total float32
		for _, inf := range influences[v*k : v*k+k] {
			if inf.Weight == 0 {
				continue
			}
			m := &palette[clampBone(inf.Bone, last)]
			acc = acc.Add(mulPoint(m, p).Mul(inf.Weight))
			total += inf.Weight
		}
		if total == 0 {
			acc = p
		}
		out.Positions[v] = acc
	}
}

func skinPositionsNormals(in SkinInput, palette []mgl32.Mat4, influences []BoneInfluence, k int, out *SkinOutput) {
	last := common.BoneID(len(palette) - 1)
	for v, p := range in.Positions {
		nrm := in.Normals[v]
		var accP, accN mgl32.Vec3
		var total float32
		for _, inf := range influences[v*k : v*k+k] {
			if inf.Weight == 0 {
				continue
			}
			m := &palette[clampBone(inf.Bone, last)]
			accP = accP.Add(mulPoint(m, p).Mul(inf.Weight))
			accN = accN.Add(mulDir(m, nrm).Mul(inf.Weight))
			total += inf.Weight
		}
		if total == 0 {
			out.Positions[v], out.Normals[v] = p, nrm
			continue
		}
		out.Positions[v] = accP
		out.Normals[v] = common.SafeNormalize(accN, nrm)
	}
}

func skinFullFrame(in SkinInput, palette []mgl32.Mat4, influences []BoneInfluence, k int, out *SkinOutput) {
	last := common.BoneID(len(palette) - 1)
	for v, p := range in.Positions {
		nrm, tan, bin := in.Normals[v], in.Tangents[v], in.Binormals[v]
		var accP, accN, accT, accB mgl32.Vec3
		var total float32
		for _, inf := range influences[v*k : v*k+k] {
			if inf.Weight == 0 {
				continue
			}
			m := &palette[clampBone(inf.Bone, last)]
			accP = accP.Add(mulPoint(m, p).Mul(inf.Weight))
			accN = accN.Add(mulDir(m, nrm).Mul(inf.Weight))
			accT = accT.Add(mulDir(m, tan).Mul(inf.Weight))
			accB = accB.Add(mulDir(m, bin).Mul(inf.Weight))
			total += inf.Weight
		}
		if total == 0 {
			out.Positions[v], out.Normals[v], out.Tangents[v], out.Binormals[v] = p, nrm, tan, bin
			continue
		}
		out.Positions[v] = accP
		out.Normals[v] = common.SafeNormalize(accN, nrm)
		out.Tangents[v] = common.SafeNormalize(accT, tan)
		out.Binormals[v] = common.SafeNormalize(accB, bin)
	}
}

// clampBone keeps a bone id inside [0, last].
func clampBone(b, last common.BoneID) common.BoneID {
	if b < 0 {
		return 0
	}
	if b > last {
		return last
	}
	return b
}

// mulPoint applies a column-major affine matrix to a point.
func mulPoint(m *mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12],
		m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13],
		m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14],
	}
}

// mulDir applies only the upper 3x3 of a column-major matrix.
func mulDir(m *mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*d[0] + m[4]*d[1] + m[8]*d[2],
		m[1]*d[0] + m[5]*d[1] + m[9]*d[2],
		m[2]*d[0] + m[6]*d[1] + m[10]*d[2],
	}
}

// ensureLen returns buf resized to n, reallocating only when capacity is short.
func ensureLen(buf []mgl32.Vec3, n int) []mgl32.Vec3 {
	if cap(buf) < n {
		return make([]mgl32.Vec3, n)
	}
	return buf[:n]
}

// copyInto copies src into dst's storage, or returns nil when src is empty.
func copyInto(dst, src []mgl32.Vec3) []mgl32.Vec3 {
	if len(src) == 0 {
		return dst[:0]
	}
	dst = ensureLen(dst, len(src))
	copy(dst, src)
	return dst
}
