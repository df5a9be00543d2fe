package loader

import "log/slog"

// loaderBackend imports one file format into an Asset.
type loaderBackend interface {
	// Import decodes raw file contents.
	//
	// Parameters:
	//   - name: the asset name, used for naming and log context
	//   - data: the raw file contents
	//   - baseDir: the directory relative resource URIs resolve against
	//   - isBinary: true for the format's binary container (GLB)
	//
	// Returns:
	//   - *Asset: the imported asset
	//   - error: error if the data cannot be imported
	Import(name string, data []byte, baseDir string, isBinary bool) (*Asset, error)
}

// gltfLoaderBackend imports glTF 2.0 JSON and GLB files.
type gltfLoaderBackend struct {
	logger              *slog.Logger
	influencesPerVertex int
}

var _ loaderBackend = &gltfLoaderBackend{}

func (b *gltfLoaderBackend) Import(name string, data []byte, baseDir string, isBinary bool) (*Asset, error) {
	parser := newGLTFParser(baseDir)
	if err := parser.Parse(data, isBinary); err != nil {
		return nil, err
	}
	return newGLTFImporter(parser, b.logger, b.influencesPerVertex).Import(name)
}
