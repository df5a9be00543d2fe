package animator

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithClips is an option builder that registers clips as NewAnimator returns, in order.
//
// Parameters:
//   - clips: the clips to register, usually produced by the glTF loader
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the clips option to an animator
func WithClips(clips ...Clip) AnimatorBuilderOption {
	return func(a *animator) {
		a.pending = append(a.pending, clips...)
	}
}
