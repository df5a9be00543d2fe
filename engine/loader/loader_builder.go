package loader

import "log/slog"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger import warnings go to.
// A nil logger keeps slog.Default().
//
// Parameters:
//   - logger: the structured logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithInfluencesPerVertex is an option builder that sets K, the influence slots per imported
// vertex. When a file supplies more weights than K, the heaviest are kept. Values below 1 are
// ignored.
//
// Parameters:
//   - k: the slots per vertex
//
// Returns:
//   - LoaderBuilderOption: a function that applies the option to a loader
func WithInfluencesPerVertex(k int) LoaderBuilderOption {
	return func(l *loader) {
		if k >= 1 {
			l.influencesPerVertex = k
		}
	}
}

// WithAsset is an option builder that pre-populates the cache, for procedurally built assets.
//
// Parameters:
//   - key: the cache key for the asset
//   - asset: the asset to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the asset option to a loader
func WithAsset(key string, asset *Asset) LoaderBuilderOption {
	return func(l *loader) {
		l.cache[key] = asset
	}
}
