package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir  string
	document *gltfDocument
	binChunk []byte
}

// gltfParser decodes glTF JSON or GLB containers, resolves their buffers and reads accessors as
// flat component slices.
type gltfParser interface {
	// Parse decodes a document and loads every buffer it references.
	//
	// Parameters:
	//   - data: the raw file contents
	//   - isGLB: true for the binary container format
	//
	// Returns:
	//   - error: ErrMalformedAsset or ErrUnsupportedFormat (wrapped) on failure
	Parse(data []byte, isGLB bool) error

	// Document returns the parsed document, or nil before a successful Parse.
	Document() *gltfDocument

	// ReadFloats reads an accessor as float32 components. Normalized integer accessors are mapped
	// to [0, 1] or [-1, 1]; other integer types are converted as-is.
	//
	// Parameters:
	//   - index: the accessor index
	//   - accessorType: the required element type (VEC3, MAT4, ...)
	//
	// Returns:
	//   - []float32: count × components values
	//   - error: error if the accessor cannot be read as requested
	ReadFloats(index int, accessorType string) ([]float32, error)

	// ReadUints reads an unsigned integer accessor (indices, joints).
	//
	// Parameters:
	//   - index: the accessor index
	//   - accessorType: the required element type
	//
	// Returns:
	//   - []uint32: count × components values
	//   - error: error if the accessor is not an unsigned integer type
	ReadUints(index int, accessorType string) ([]uint32, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a parser that resolves relative buffer URIs against baseDir.
func newGLTFParser(baseDir string) gltfParser {
	return &gltfParserImpl{baseDir: baseDir}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Parse(data []byte, isGLB bool) error {
	jsonData := data
	if isGLB || (len(data) >= 4 && binary.LittleEndian.Uint32(data) == gltfGLBMagic) {
		var err error
		if jsonData, p.binChunk, err = splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("%w: decode JSON: %v", ErrMalformedAsset, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return fmt.Errorf("%w: glTF version %q", ErrUnsupportedFormat, doc.Asset.Version)
	}
	if err := p.loadBuffers(&doc); err != nil {
		return err
	}
	p.document = &doc
	return nil
}

// splitGLB returns the JSON and BIN chunks of a GLB container.
func splitGLB(data []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(data)
	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("%w: GLB header: %v", ErrMalformedAsset, err)
	}
	if header.Magic != gltfGLBMagic {
		return nil, nil, fmt.Errorf("%w: bad GLB magic %#x", ErrMalformedAsset, header.Magic)
	}
	if header.Version != gltfGLBVersion {
		return nil, nil, fmt.Errorf("%w: GLB version %d", ErrUnsupportedFormat, header.Version)
	}

	var jsonChunk, binChunk []byte
	for {
		var ch gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("%w: GLB chunk header: %v", ErrMalformedAsset, err)
		}
		if int64(ch.ChunkLength) > int64(r.Len()) {
			return nil, nil, fmt.Errorf("%w: GLB chunk of %d bytes exceeds file", ErrMalformedAsset, ch.ChunkLength)
		}
		chunk := make([]byte, ch.ChunkLength)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, nil, fmt.Errorf("%w: GLB chunk: %v", ErrMalformedAsset, err)
		}
		switch ch.ChunkType {
		case gltfGLBChunkJSON:
			jsonChunk = chunk
		case gltfGLBChunkBIN:
			binChunk = chunk
		}
	}
	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("%w: GLB has no JSON chunk", ErrMalformedAsset)
	}
	return jsonChunk, binChunk, nil
}

// loadBuffers fills Data for every buffer from the GLB chunk, a data URI or a sibling file.
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.binChunk != nil:
			buf.Data = p.binChunk
		case buf.URI == "":
			return fmt.Errorf("%w: buffer %d has no data", ErrMalformedAsset, i)
		case strings.HasPrefix(buf.URI, "data:"):
			data, err := decodeDataURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		default:
			data, err := os.ReadFile(filepath.Join(p.baseDir, filepath.FromSlash(buf.URI)))
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("%w: buffer %d holds %d bytes, declares %d", ErrMalformedAsset, i, len(buf.Data), buf.ByteLength)
		}
	}
	return nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<payload>.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI without payload", ErrMalformedAsset)
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: data URI encoding %q", ErrUnsupportedFormat, header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data URI: %v", ErrMalformedAsset, err)
	}
	return data, nil
}

// elements returns the raw bytes of each accessor element, honoring byteStride.
func (p *gltfParserImpl) elements(index int, accessorType string) (*gltfAccessor, [][]byte, error) {
	if p.document == nil {
		return nil, nil, errors.New("loader: no document parsed")
	}
	doc := p.document
	if index < 0 || index >= len(doc.Accessors) {
		return nil, nil, fmt.Errorf("%w: accessor %d out of range", ErrMalformedAsset, index)
	}
	acc := &doc.Accessors[index]
	if acc.Type != accessorType {
		return nil, nil, fmt.Errorf("%w: accessor %d is %s, want %s", ErrMalformedAsset, index, acc.Type, accessorType)
	}
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("%w: sparse accessor %d", ErrUnsupportedFormat, index)
	}
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return nil, nil, fmt.Errorf("%w: accessor %d has no usable bufferView", ErrMalformedAsset, index)
	}
	bv := &doc.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, nil, fmt.Errorf("%w: bufferView %d references buffer %d", ErrMalformedAsset, *acc.BufferView, bv.Buffer)
	}
	data := doc.Buffers[bv.Buffer].Data

	size := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if size == 0 {
		return nil, nil, fmt.Errorf("%w: accessor %d component type %d", ErrUnsupportedFormat, index, acc.ComponentType)
	}
	stride := size
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	base := bv.ByteOffset + acc.ByteOffset
	out := make([][]byte, acc.Count)
	for i := range out {
		start := base + i*stride
		if start+size > len(data) || start+size > bv.ByteOffset+bv.ByteLength {
			return nil, nil, fmt.Errorf("%w: accessor %d element %d past end of buffer", ErrMalformedAsset, index, i)
		}
		out[i] = data[start : start+size]
	}
	return acc, out, nil
}

func (p *gltfParserImpl) ReadFloats(index int, accessorType string) ([]float32, error) {
	acc, elems, err := p.elements(index, accessorType)
	if err != nil {
		return nil, err
	}
	n := componentCount(acc.Type)
	cs := componentSize(acc.ComponentType)
	out := make([]float32, 0, len(elems)*n)
	for _, e := range elems {
		for c := 0; c < n; c++ {
			out = append(out, decodeComponent(e[c*cs:], acc.ComponentType, acc.Normalized))
		}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadUints(index int, accessorType string) ([]uint32, error) {
	acc, elems, err := p.elements(index, accessorType)
	if err != nil {
		return nil, err
	}
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt:
	default:
		return nil, fmt.Errorf("%w: accessor %d component type %d is not unsigned", ErrMalformedAsset, index, acc.ComponentType)
	}
	n := componentCount(acc.Type)
	cs := componentSize(acc.ComponentType)
	out := make([]uint32, 0, len(elems)*n)
	for _, e := range elems {
		for c := 0; c < n; c++ {
			b := e[c*cs:]
			switch cs {
			case 1:
				out = append(out, uint32(b[0]))
			case 2:
				out = append(out, uint32(binary.LittleEndian.Uint16(b)))
			default:
				out = append(out, binary.LittleEndian.Uint32(b))
			}
		}
	}
	return out, nil
}

// decodeComponent reads one little-endian component as float32.
func decodeComponent(b []byte, componentType int, normalized bool) float32 {
	switch componentType {
	case gltfComponentTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case gltfComponentTypeUnsignedByte:
		if normalized {
			return float32(b[0]) / 255
		}
		return float32(b[0])
	case gltfComponentTypeByte:
		if normalized {
			return math32.Max(float32(int8(b[0]))/127, -1)
		}
		return float32(int8(b[0]))
	case gltfComponentTypeUnsignedShort:
		v := binary.LittleEndian.Uint16(b)
		if normalized {
			return float32(v) / 65535
		}
		return float32(v)
	case gltfComponentTypeShort:
		v := int16(binary.LittleEndian.Uint16(b))
		if normalized {
			return math32.Max(float32(v)/32767, -1)
		}
		return float32(v)
	case gltfComponentTypeUnsignedInt:
		return float32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	}
	return 0
}

func componentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	}
	return 0
}
