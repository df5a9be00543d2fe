package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a rigid transform: a rotation followed by a translation. It carries no scale, so it
// is always exactly invertible.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

// IdentityTransform returns the transform that leaves every point unchanged.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

// TranslationTransform returns a pure translation by (x, y, z).
//
// Parameters:
//   - x, y, z: the translation components
//
// Returns:
//   - Transform: the translation transform
func TranslationTransform(x, y, z float32) Transform {
	return Transform{Translation: mgl32.Vec3{x, y, z}, Rotation: mgl32.QuatIdent()}
}

// NewTransform builds a transform from a translation and a rotation. The rotation is normalized.
//
// Parameters:
//   - translation: the translation applied after rotating
//   - rotation: the rotation quaternion
//
// Returns:
//   - Transform: the resulting transform
func NewTransform(translation mgl32.Vec3, rotation mgl32.Quat) Transform {
	return Transform{Translation: translation, Rotation: rotation.Normalize()}
}

// Compose returns a ∘ b: the transform that applies b first and then a.
// For a bone, Compose(parentWorld, local) yields the bone's world transform.
//
// Parameters:
//   - a: the outer transform
//   - b: the inner transform
//
// Returns:
//   - Transform: the composed transform
func Compose(a, b Transform) Transform {
	return Transform{
		Translation: a.Rotation.Rotate(b.Translation).Add(a.Translation),
		Rotation:    a.Rotation.Mul(b.Rotation).Normalize(),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Translation: inv.Rotate(t.Translation).Mul(-1),
		Rotation:    inv,
	}
}

// Apply transforms a point (rotation and translation).
func (t Transform) Apply(p mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Translation)
}

// ApplyVector transforms a direction, using only the rotation.
func (t Transform) ApplyVector(v mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(v)
}

// Mat4 returns the column-major homogeneous matrix equivalent of t.
func (t Transform) Mat4() mgl32.Mat4 {
	m := t.Rotation.Mat4()
	m[12], m[13], m[14] = t.Translation[0], t.Translation[1], t.Translation[2]
	return m
}

// ApproxEqual reports whether two transforms match within eps, treating q and -q as the same rotation.
// Translations are compared by absolute distance and rotations by 1-|q·p|, so values near zero
// compare the same as any others.
//
// Parameters:
//   - o: the transform to compare against
//   - eps: the absolute tolerance
//
// Returns:
//   - bool: true if both translation and orientation match within eps
func (t Transform) ApproxEqual(o Transform, eps float32) bool {
	if t.Translation.Sub(o.Translation).Len() > eps {
		return false
	}
	return 1-math32.Abs(t.Rotation.Dot(o.Rotation)) <= eps
}

// TransformFromMat4 extracts the rigid part of a column-major matrix. Any scale in the upper 3x3 is
// divided out before the rotation is read.
//
// Parameters:
//   - m: a column-major affine matrix
//
// Returns:
//   - Transform: the translation and rotation of m
func TransformFromMat4(m mgl32.Mat4) Transform {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	r := m
	if sx > 0 && sy > 0 && sz > 0 {
		for i := 0; i < 3; i++ {
			r[i] /= sx
			r[4+i] /= sy
			r[8+i] /= sz
		}
	}
	return Transform{
		Translation: mgl32.Vec3{m[12], m[13], m[14]},
		Rotation:    mgl32.Mat4ToQuat(r).Normalize(),
	}
}

// SafeNormalize returns v scaled to unit length, or fallback when v has (near) zero length.
//
// Parameters:
//   - v: the vector to normalize
//   - fallback: returned unchanged when v cannot be normalized
//
// Returns:
//   - mgl32.Vec3: the unit vector
func SafeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.LenSqr()
	if l < 1e-20 || math32.IsInf(l, 0) || math32.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / math32.Sqrt(l))
}

// QuatFromXYZW converts a glTF-style [x, y, z, w] rotation into a normalized quaternion.
func QuatFromXYZW(r [4]float32) mgl32.Quat {
	return mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
