package ragdoll

import "log/slog"

// BridgeBuilderOption is a functional option for configuring a Bridge during construction.
type BridgeBuilderOption func(*bridge)

// WithLogger is an option builder that sets the logger used for construction failures.
// A nil logger keeps slog.Default().
//
// Parameters:
//   - logger: the structured logger
//
// Returns:
//   - BridgeBuilderOption: a function that applies the logger option
func WithLogger(logger *slog.Logger) BridgeBuilderOption {
	return func(b *bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithChains is an option builder that registers chains as NewBridge returns, in order.
//
// Parameters:
//   - defs: the chain definitions, usually from LoadChainsFile
//
// Returns:
//   - BridgeBuilderOption: a function that applies the chains option
func WithChains(defs ...ChainDefinition) BridgeBuilderOption {
	return func(b *bridge) {
		b.pending = append(b.pending, defs...)
	}
}
