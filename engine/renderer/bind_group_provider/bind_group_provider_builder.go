package bind_group_provider

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-animesh/engine/renderer/material"
)

// MeshUploaderOption is a functional option used to configure a MeshUploader during construction.
type MeshUploaderOption func(*meshUploader)

// WithLogger sets the logger upload records go to. A nil logger keeps slog.Default().
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - MeshUploaderOption: a function that sets the logger
func WithLogger(logger *slog.Logger) MeshUploaderOption {
	return func(u *meshUploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithLabelPrefix sets the prefix of every buffer debug label.
//
// Parameters:
//   - prefix: the label prefix
//
// Returns:
//   - MeshUploaderOption: a function that sets the label prefix
func WithLabelPrefix(prefix string) MeshUploaderOption {
	return func(u *meshUploader) {
		u.labelPrefix = prefix
	}
}

// WithMaterials makes the uploader keep one uniform buffer of packed material parameters per
// material the uploaded meshes reference. Unknown names resolve to the library's default.
//
// Parameters:
//   - materials: the library mesh material names are resolved against
//
// Returns:
//   - MeshUploaderOption: a function that sets the material library
func WithMaterials(materials material.Library) MeshUploaderOption {
	return func(u *meshUploader) {
		u.materials = materials
	}
}
