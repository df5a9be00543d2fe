package skeleton

import "github.com/Carmen-Shannon/oxy-animesh/common"

// SkeletonFactoryBuilderOption is a functional option for configuring a SkeletonFactory during construction.
type SkeletonFactoryBuilderOption func(*skeletonFactory)

// WithInverseBindTransforms supplies authored inverse bind transforms instead of deriving them from
// the bind pose. Importers use this when the asset's skin carries its own inverse bind matrices.
// The slice is indexed by definition order, not arena order, and must match the definition count.
//
// Parameters:
//   - inverseBinds: one inverse bind transform per bone definition
//
// Returns:
//   - SkeletonFactoryBuilderOption: a function that applies the inverse bind transforms
func WithInverseBindTransforms(inverseBinds []common.Transform) SkeletonFactoryBuilderOption {
	return func(f *skeletonFactory) {
		f.inverseBindOverride = append([]common.Transform{}, inverseBinds...)
	}
}
