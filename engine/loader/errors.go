package loader

import "errors"

var (
	// ErrUnsupportedFormat is returned for files the loader has no backend for, and for glTF
	// features the importer does not handle (sparse accessors, non-triangle primitives, ...).
	ErrUnsupportedFormat = errors.New("loader: unsupported format")

	// ErrMalformedAsset is returned when a document is structurally broken: bad headers,
	// out-of-range indices, truncated buffers.
	ErrMalformedAsset = errors.New("loader: malformed asset")
)
