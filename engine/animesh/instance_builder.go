package animesh

import "log/slog"

// AnimatedMeshInstanceBuilderOption is a functional option for configuring an AnimatedMeshInstance during construction.
type AnimatedMeshInstanceBuilderOption func(*animatedMeshInstance)

// WithInstanceName is an option builder that sets the name reported in logs.
//
// Parameters:
//   - name: the diagnostic name
//
// Returns:
//   - AnimatedMeshInstanceBuilderOption: a function that applies the name option
func WithInstanceName(name string) AnimatedMeshInstanceBuilderOption {
	return func(a *animatedMeshInstance) {
		a.name = name
	}
}

// WithInstanceLogger is an option builder that sets the logger used for per-frame failures.
// A nil logger keeps slog.Default().
//
// Parameters:
//   - logger: the structured logger
//
// Returns:
//   - AnimatedMeshInstanceBuilderOption: a function that applies the logger option
func WithInstanceLogger(logger *slog.Logger) AnimatedMeshInstanceBuilderOption {
	return func(a *animatedMeshInstance) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSkinningEnabled is an option builder that sets whether bones deform the mesh initially.
func WithSkinningEnabled(enabled bool) AnimatedMeshInstanceBuilderOption {
	return func(a *animatedMeshInstance) {
		a.skinningEnabled = enabled
	}
}
